package gfx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoContext is returned when a rendering context is not available.
	ErrNoContext = errors.New("gfx: rendering context is not available")
	// ErrAllocation wraps failures to create GPU objects.
	ErrAllocation = errors.New("gfx: allocation failed")
	// ErrIncompleteFramebuffer is returned when attachments do not form a usable target.
	ErrIncompleteFramebuffer = errors.New("gfx: framebuffer is incomplete")

	ErrCapacityExceeded = errors.New("gfx: instance capacity exceeded")
	ErrMalformedBuffer  = errors.New("gfx: malformed buffer")
	ErrInstanceCount    = errors.New("gfx: draw count exceeds uploaded instances")
	ErrInvalidSize      = errors.New("gfx: invalid size")

	// ErrStopped is returned by a frame driver that stopped after a fatal frame error.
	ErrStopped = errors.New("gfx: frame driver stopped")
)

// ShaderError reports a failed shader build. It carries the compiler log of
// both stages and the linker log; empty logs mean the step succeeded or was
// never reached.
type ShaderError struct {
	Stage       string
	VertexLog   string
	FragmentLog string
	LinkLog     string
}

func (e *ShaderError) Error() string {
	var sb strings.Builder
	sb.WriteString("gfx: shader ")
	sb.WriteString(e.Stage)
	sb.WriteString(" failed")
	writeLog(&sb, "vertex", e.VertexLog)
	writeLog(&sb, "fragment", e.FragmentLog)
	writeLog(&sb, "link", e.LinkLog)
	return sb.String()
}

func writeLog(sb *strings.Builder, name, log string) {
	log = strings.TrimRight(log, "\x00 \n\t")
	if log == "" {
		return
	}
	sb.WriteString("\n")
	sb.WriteString(name)
	sb.WriteString(" log: ")
	sb.WriteString(log)
}

// LayoutError reports a mismatch between an attribute descriptor table and
// the inputs a program declares.
type LayoutError struct {
	Attribute string
	Reason    string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("gfx: attribute %q: %s", e.Attribute, e.Reason)
}
