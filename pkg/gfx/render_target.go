package gfx

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Output slots of the offscreen framebuffer.
const (
	IdentitySlot = 0
	DiffuseSlot  = 1
)

// Target is a framebuffer together with the viewport a pass draws into.
type Target struct {
	Framebuffer Framebuffer
	Viewport    Rect
}

// attachmentSet is one complete generation of offscreen attachments.
type attachmentSet struct {
	width, height int
	identity      Texture
	diffuse       Texture
	depth         Renderbuffer
	fb            Framebuffer
}

// RenderTargets owns the offscreen surface: identity and diffuse color
// attachments plus a 16-bit depth buffer, all of the same size and bound to
// one framebuffer.
type RenderTargets struct {
	dev Device
	set attachmentSet
}

func NewRenderTargets(dev Device, width, height int) (*RenderTargets, error) {
	if dev == nil {
		return nil, ErrNoContext
	}
	set, err := allocateAttachments(dev, width, height)
	if err != nil {
		return nil, err
	}
	return &RenderTargets{dev: dev, set: set}, nil
}

// Resize replaces all attachments together. The new set is built completely
// before the old one is released, so a failed resize leaves the previous
// attachments bound and usable. Resizing to the current size does nothing.
func (rt *RenderTargets) Resize(width, height int) error {
	if width == rt.set.width && height == rt.set.height {
		return nil
	}
	set, err := allocateAttachments(rt.dev, width, height)
	if err != nil {
		return err
	}
	old := rt.set
	rt.set = set
	releaseAttachments(rt.dev, old)
	logger().Debug("render targets resized", "width", width, "height", height)
	return nil
}

func (rt *RenderTargets) Size() (width, height int) {
	return rt.set.width, rt.set.height
}

func (rt *RenderTargets) Identity() Texture { return rt.set.identity }

func (rt *RenderTargets) Diffuse() Texture { return rt.set.diffuse }

func (rt *RenderTargets) Depth() Renderbuffer { return rt.set.depth }

func (rt *RenderTargets) Framebuffer() Framebuffer { return rt.set.fb }

// BindForOffscreenDraw returns the offscreen target covering the attachments.
func (rt *RenderTargets) BindForOffscreenDraw() Target {
	return Target{
		Framebuffer: rt.set.fb,
		Viewport:    Rect{Width: rt.set.width, Height: rt.set.height},
	}
}

// BindForScreen returns the visible target. The visible surface always has
// the size of the offscreen attachments.
func (rt *RenderTargets) BindForScreen() Target {
	return Target{
		Framebuffer: DefaultFramebuffer,
		Viewport:    Rect{Width: rt.set.width, Height: rt.set.height},
	}
}

func (rt *RenderTargets) Close() {
	releaseAttachments(rt.dev, rt.set)
	rt.set = attachmentSet{}
}

func allocateAttachments(dev Device, width, height int) (set attachmentSet, err error) {
	if width <= 0 || height <= 0 {
		return attachmentSet{}, fmt.Errorf("%w: render targets %dx%d", ErrInvalidSize, width, height)
	}
	set.width, set.height = width, height
	defer func() {
		if err != nil {
			releaseAttachments(dev, set)
			set = attachmentSet{}
		}
	}()

	color := TextureDesc{
		Width:  width,
		Height: height,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Filter: FilterNearest,
	}
	if set.identity, err = dev.CreateTexture(color); err != nil {
		return set, fmt.Errorf("%w: identity attachment: %v", ErrAllocation, err)
	}
	if set.diffuse, err = dev.CreateTexture(color); err != nil {
		return set, fmt.Errorf("%w: diffuse attachment: %v", ErrAllocation, err)
	}
	if set.depth, err = dev.CreateRenderbuffer(gputypes.TextureFormatDepth16Unorm, width, height); err != nil {
		return set, fmt.Errorf("%w: depth attachment: %v", ErrAllocation, err)
	}

	colors := make([]Texture, 2)
	colors[IdentitySlot] = set.identity
	colors[DiffuseSlot] = set.diffuse
	if set.fb, err = dev.CreateFramebuffer(FramebufferDesc{Color: colors, Depth: set.depth}); err != nil {
		// Devices report ErrIncompleteFramebuffer or ErrAllocation themselves.
		return set, fmt.Errorf("offscreen framebuffer: %w", err)
	}
	return set, nil
}

func releaseAttachments(dev Device, set attachmentSet) {
	if set.fb != 0 {
		dev.DeleteFramebuffer(set.fb)
	}
	if set.depth != 0 {
		dev.DeleteRenderbuffer(set.depth)
	}
	if set.diffuse != 0 {
		dev.DeleteTexture(set.diffuse)
	}
	if set.identity != 0 {
		dev.DeleteTexture(set.identity)
	}
}
