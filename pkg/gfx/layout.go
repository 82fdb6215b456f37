package gfx

import (
	"fmt"
	"sort"

	"github.com/gogpu/gputypes"
)

// Attribute names one shader input and where it lives inside a record.
type Attribute struct {
	Name   string
	Format gputypes.VertexFormat
	Offset int
}

// VertexLayout is the descriptor table of one vertex buffer. Instance step
// mode advances once per instance (divisor 1).
type VertexLayout struct {
	Stride     int
	StepMode   gputypes.VertexStepMode
	Attributes []Attribute
}

type ResolvedAttribute struct {
	Attribute
	Location int
}

// ResolvedLayout is a VertexLayout whose attributes carry the locations the
// linked program assigned to them.
type ResolvedLayout struct {
	Stride     int
	StepMode   gputypes.VertexStepMode
	Attributes []ResolvedAttribute
}

// FormatSize returns the byte size of a vertex format, or 0 when the format
// is not supported by the pipeline.
func FormatSize(f gputypes.VertexFormat) int {
	switch f {
	case gputypes.VertexFormatFloat32:
		return 4
	case gputypes.VertexFormatFloat32x2:
		return 8
	case gputypes.VertexFormatFloat32x3:
		return 12
	case gputypes.VertexFormatFloat32x4:
		return 16
	case gputypes.VertexFormatUnorm8x4, gputypes.VertexFormatUint8x4:
		return 4
	default:
		return 0
	}
}

// FormatInputType returns the shader input type a vertex format feeds.
func FormatInputType(f gputypes.VertexFormat) InputType {
	switch f {
	case gputypes.VertexFormatFloat32:
		return InputFloat
	case gputypes.VertexFormatFloat32x2:
		return InputVec2
	case gputypes.VertexFormatFloat32x3:
		return InputVec3
	case gputypes.VertexFormatFloat32x4, gputypes.VertexFormatUnorm8x4:
		return InputVec4
	case gputypes.VertexFormatUint8x4:
		return InputUVec4
	default:
		return InputUnknown
	}
}

// FormatComponents returns the component count of a vertex format.
func FormatComponents(f gputypes.VertexFormat) int {
	switch f {
	case gputypes.VertexFormatFloat32:
		return 1
	case gputypes.VertexFormatFloat32x2:
		return 2
	case gputypes.VertexFormatFloat32x3:
		return 3
	case gputypes.VertexFormatFloat32x4, gputypes.VertexFormatUnorm8x4, gputypes.VertexFormatUint8x4:
		return 4
	default:
		return 0
	}
}

// FormatInteger reports whether the format is read as integers by the shader.
func FormatInteger(f gputypes.VertexFormat) bool {
	return f == gputypes.VertexFormatUint8x4
}

// FormatNormalized reports whether byte components are mapped to [0,1].
func FormatNormalized(f gputypes.VertexFormat) bool {
	return f == gputypes.VertexFormatUnorm8x4
}

// ResolveLayouts checks the descriptor tables against the inputs of a linked
// program and assigns locations. Every active input must be described exactly
// once and every described attribute must exist with a matching type.
func ResolveLayouts(inputs []ProgramInput, layouts ...VertexLayout) ([]ResolvedLayout, error) {
	byName := make(map[string]ProgramInput, len(inputs))
	for _, in := range inputs {
		byName[in.Name] = in
	}
	described := make(map[string]bool)
	out := make([]ResolvedLayout, 0, len(layouts))

	for _, layout := range layouts {
		if layout.Stride <= 0 {
			return nil, &LayoutError{Attribute: "*", Reason: fmt.Sprintf("invalid stride %d", layout.Stride)}
		}
		if layout.StepMode != gputypes.VertexStepModeVertex && layout.StepMode != gputypes.VertexStepModeInstance {
			return nil, &LayoutError{Attribute: "*", Reason: "unsupported step mode"}
		}
		resolved := ResolvedLayout{
			Stride:     layout.Stride,
			StepMode:   layout.StepMode,
			Attributes: make([]ResolvedAttribute, 0, len(layout.Attributes)),
		}
		for _, attr := range layout.Attributes {
			if described[attr.Name] {
				return nil, &LayoutError{Attribute: attr.Name, Reason: "described more than once"}
			}
			described[attr.Name] = true

			size := FormatSize(attr.Format)
			if size == 0 {
				return nil, &LayoutError{Attribute: attr.Name, Reason: "unsupported vertex format"}
			}
			if attr.Offset < 0 || attr.Offset+size > layout.Stride {
				return nil, &LayoutError{
					Attribute: attr.Name,
					Reason:    fmt.Sprintf("offset %d size %d does not fit stride %d", attr.Offset, size, layout.Stride),
				}
			}
			in, ok := byName[attr.Name]
			if !ok {
				return nil, &LayoutError{Attribute: attr.Name, Reason: "not declared by the program"}
			}
			if want := FormatInputType(attr.Format); want != in.Type {
				return nil, &LayoutError{
					Attribute: attr.Name,
					Reason:    fmt.Sprintf("format feeds %s but the program declares %s", want, in.Type),
				}
			}
			resolved.Attributes = append(resolved.Attributes, ResolvedAttribute{Attribute: attr, Location: in.Location})
		}
		if err := checkOverlap(resolved.Attributes); err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}

	for _, in := range inputs {
		if !described[in.Name] {
			return nil, &LayoutError{Attribute: in.Name, Reason: "declared by the program but has no descriptor"}
		}
	}
	return out, nil
}

func checkOverlap(attrs []ResolvedAttribute) error {
	sorted := make([]ResolvedAttribute, len(attrs))
	copy(sorted, attrs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if prev.Offset+FormatSize(prev.Format) > sorted[i].Offset {
			return &LayoutError{Attribute: sorted[i].Name, Reason: "overlaps " + prev.Name}
		}
	}
	return nil
}
