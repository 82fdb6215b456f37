package gfx_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

// spriteInputs lists the inputs the sprite vertex stage declares, in
// declaration order.
func spriteInputs() []gfx.ProgramInput {
	return []gfx.ProgramInput{
		{Name: gfx.AttrPosition, Type: gfx.InputVec2, Location: 0},
		{Name: gfx.AttrTexCoord, Type: gfx.InputVec2, Location: 1},
		{Name: gfx.AttrTransform, Type: gfx.InputVec2, Location: 2},
		{Name: gfx.AttrScale, Type: gfx.InputVec2, Location: 3},
		{Name: gfx.AttrTexTransform, Type: gfx.InputVec2, Location: 4},
		{Name: gfx.AttrTexScale, Type: gfx.InputVec2, Location: 5},
		{Name: gfx.AttrColor, Type: gfx.InputVec4, Location: 6},
		{Name: gfx.AttrID, Type: gfx.InputUVec4, Location: 7},
	}
}

func TestResolveLayouts_SpriteProgram(t *testing.T) {
	layouts, err := gfx.ResolveLayouts(spriteInputs(), gfx.QuadLayout, gfx.InstanceLayout)
	if err != nil {
		t.Fatalf("ResolveLayouts: %v", err)
	}
	if len(layouts) != 2 {
		t.Fatalf("got %d layouts, want 2", len(layouts))
	}
	inst := layouts[1]
	if inst.Stride != gfx.InstanceStride || inst.StepMode != gputypes.VertexStepModeInstance {
		t.Errorf("instance layout stride %d step %v", inst.Stride, inst.StepMode)
	}
	id := inst.Attributes[len(inst.Attributes)-1]
	if id.Name != gfx.AttrID || id.Offset != 36 || id.Location != 7 {
		t.Errorf("id attribute resolved to %+v", id)
	}
	if !gfx.FormatInteger(id.Format) || gfx.FormatNormalized(id.Format) {
		t.Errorf("id must be an integer, non-normalized attribute")
	}
	color := inst.Attributes[len(inst.Attributes)-2]
	if !gfx.FormatNormalized(color.Format) {
		t.Errorf("color must be normalized")
	}
}

func TestResolveLayouts_Errors(t *testing.T) {
	withAttr := func(layout gfx.VertexLayout, name string, edit func(*gfx.Attribute)) gfx.VertexLayout {
		out := layout
		out.Attributes = append([]gfx.Attribute(nil), layout.Attributes...)
		for i := range out.Attributes {
			if out.Attributes[i].Name == name {
				edit(&out.Attributes[i])
			}
		}
		return out
	}

	tests := []struct {
		name     string
		inputs   []gfx.ProgramInput
		layouts  []gfx.VertexLayout
		wantAttr string
		wantText string
	}{
		{
			name:     "input without descriptor",
			inputs:   spriteInputs(),
			layouts:  []gfx.VertexLayout{gfx.QuadLayout},
			wantAttr: gfx.AttrTransform,
			wantText: "no descriptor",
		},
		{
			name:     "descriptor without input",
			inputs:   spriteInputs()[:2],
			layouts:  []gfx.VertexLayout{gfx.QuadLayout, gfx.InstanceLayout},
			wantAttr: gfx.AttrTransform,
			wantText: "not declared",
		},
		{
			name:   "id read as floats",
			inputs: spriteInputs(),
			layouts: []gfx.VertexLayout{gfx.QuadLayout, withAttr(gfx.InstanceLayout, gfx.AttrID, func(a *gfx.Attribute) {
				a.Format = gputypes.VertexFormatUnorm8x4
			})},
			wantAttr: gfx.AttrID,
			wantText: "uvec4",
		},
		{
			name:   "attribute past stride",
			inputs: spriteInputs(),
			layouts: []gfx.VertexLayout{gfx.QuadLayout, withAttr(gfx.InstanceLayout, gfx.AttrID, func(a *gfx.Attribute) {
				a.Offset = 38
			})},
			wantAttr: gfx.AttrID,
			wantText: "does not fit stride",
		},
		{
			name:   "overlapping attributes",
			inputs: spriteInputs(),
			layouts: []gfx.VertexLayout{gfx.QuadLayout, withAttr(gfx.InstanceLayout, gfx.AttrScale, func(a *gfx.Attribute) {
				a.Offset = 4
			})},
			wantAttr: gfx.AttrScale,
			wantText: "overlaps",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gfx.ResolveLayouts(tt.inputs, tt.layouts...)
			var le *gfx.LayoutError
			if !errors.As(err, &le) {
				t.Fatalf("error = %v, want *LayoutError", err)
			}
			if le.Attribute != tt.wantAttr {
				t.Errorf("attribute = %q, want %q", le.Attribute, tt.wantAttr)
			}
			if !strings.Contains(le.Reason, tt.wantText) {
				t.Errorf("reason %q does not contain %q", le.Reason, tt.wantText)
			}
		})
	}
}

func TestShaderError_CarriesAllLogs(t *testing.T) {
	err := &gfx.ShaderError{
		Stage:       "link",
		VertexLog:   "vertex warning\n",
		FragmentLog: "",
		LinkLog:     "missing input\x00",
	}
	msg := err.Error()
	for _, want := range []string{"link failed", "vertex log: vertex warning", "link log: missing input"} {
		if !strings.Contains(msg, want) {
			t.Errorf("%q does not contain %q", msg, want)
		}
	}
	if strings.Contains(msg, "fragment log") {
		t.Errorf("empty fragment log was printed: %q", msg)
	}
}
