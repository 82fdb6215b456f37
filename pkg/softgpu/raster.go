package softgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

// fetch reads one kernel input for a vertex and instance.
type fetch struct {
	buf    []byte
	attr   gfx.ResolvedAttribute
	stride int
	step   gputypes.VertexStepMode
	bound  bool
}

func (f *fetch) read(vertexID, instanceID int) mgl32.Vec4 {
	out := mgl32.Vec4{0, 0, 0, 1}
	if !f.bound {
		return out
	}
	index := vertexID
	if f.step == gputypes.VertexStepModeInstance {
		index = instanceID
	}
	base := index*f.stride + f.attr.Offset
	switch f.attr.Format {
	case gputypes.VertexFormatUnorm8x4:
		for i := 0; i < 4; i++ {
			out[i] = float32(f.buf[base+i]) / 255
		}
	case gputypes.VertexFormatUint8x4:
		for i := 0; i < 4; i++ {
			out[i] = float32(f.buf[base+i])
		}
	default:
		for i := 0; i < gfx.FormatComponents(f.attr.Format); i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(f.buf[base+4*i:]))
		}
	}
	return out
}

type shadedVertex struct {
	x, y, z  float64
	varyings [maxVaryings]float32
}

type drawState struct {
	kernel   kernel
	uniforms uniformSet
	fetches  []fetch
	textures []*surface
	colors   []*surface
	depth    *depthSurface
	depthOn  bool
	viewport gfx.Rect
	// clip bounds in window coordinates
	minX, minY, maxX, maxY int
}

// Draw runs the program's kernel over the requested vertices and instances.
func (d *Device) Draw(desc gfx.DrawDesc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gfx.ErrNoContext
	}
	st, err := d.prepare(desc)
	if err != nil {
		return err
	}
	instances := desc.Instances
	if instances == 0 {
		instances = 1
	} else {
		d.stats.InstancedDraws++
		d.stats.LastInstances = desc.Instances
	}
	d.stats.Draws++

	attrs := make([]mgl32.Vec4, len(st.fetches))
	shade := func(vertexID, instanceID int) shadedVertex {
		for i := range st.fetches {
			attrs[i] = st.fetches[i].read(vertexID, instanceID)
		}
		var v shadedVertex
		clip := st.kernel.vertex(attrs, st.uniforms, v.varyings[:st.kernel.varyings()])
		w := float64(clip[3])
		if w == 0 {
			w = math.SmallestNonzeroFloat32
		}
		nx, ny, nz := float64(clip[0])/w, float64(clip[1])/w, float64(clip[2])/w
		v.x = float64(st.viewport.X) + (nx+1)*float64(st.viewport.Width)/2
		v.y = float64(st.viewport.Y) + (ny+1)*float64(st.viewport.Height)/2
		v.z = (nz + 1) / 2
		return v
	}

	for inst := 0; inst < instances; inst++ {
		switch desc.Primitive {
		case gfx.PrimitiveTriangleFan:
			if desc.Count < 3 {
				continue
			}
			v0 := shade(desc.First, inst)
			prev := shade(desc.First+1, inst)
			for i := 2; i < desc.Count; i++ {
				cur := shade(desc.First+i, inst)
				st.triangle(v0, prev, cur)
				prev = cur
			}
		case gfx.PrimitiveTriangles:
			for i := 0; i+2 < desc.Count; i += 3 {
				st.triangle(shade(desc.First+i, inst), shade(desc.First+i+1, inst), shade(desc.First+i+2, inst))
			}
		default:
			return fmt.Errorf("softgpu: unsupported primitive %d", desc.Primitive)
		}
	}
	return nil
}

func (d *Device) prepare(desc gfx.DrawDesc) (*drawState, error) {
	p, ok := d.programs[desc.Program]
	if !ok || !p.linked {
		return nil, fmt.Errorf("%w: program %d", errUnknownObject, desc.Program)
	}
	va, ok := d.vertexArrays[desc.VertexArray]
	if !ok {
		return nil, fmt.Errorf("%w: vertex array %d", errUnknownObject, desc.VertexArray)
	}
	if desc.Count < 0 || desc.First < 0 || desc.Instances < 0 {
		return nil, fmt.Errorf("softgpu: invalid draw range first=%d count=%d instances=%d", desc.First, desc.Count, desc.Instances)
	}
	if desc.Viewport.Width <= 0 || desc.Viewport.Height <= 0 {
		return nil, fmt.Errorf("%w: viewport %dx%d", gfx.ErrInvalidSize, desc.Viewport.Width, desc.Viewport.Height)
	}
	if desc.Target == gfx.DefaultFramebuffer &&
		(d.screen.width != desc.Viewport.X+desc.Viewport.Width || d.screen.height != desc.Viewport.Y+desc.Viewport.Height) {
		// The visible surface follows the size the host presents at.
		d.screen = newSurface(desc.Viewport.X+desc.Viewport.Width, desc.Viewport.Y+desc.Viewport.Height, filterNearest)
	}
	colors, depth, err := d.colorTargets(desc.Target)
	if err != nil {
		return nil, err
	}
	if len(colors) < p.kernel.outputs() && desc.Target != gfx.DefaultFramebuffer {
		return nil, fmt.Errorf("softgpu: program writes %d outputs, framebuffer has %d", p.kernel.outputs(), len(colors))
	}

	st := &drawState{
		kernel:   p.kernel,
		uniforms: uniformSet(p.uniforms),
		colors:   colors,
		depth:    depth,
		depthOn:  desc.DepthTest && depth != nil,
		viewport: desc.Viewport,
	}
	for _, t := range desc.Textures {
		s, ok := d.textures[t]
		if !ok {
			return nil, fmt.Errorf("%w: texture %d", errUnknownObject, t)
		}
		st.textures = append(st.textures, s)
	}

	// Locations come from the program; the kernel reads by name.
	location := make(map[string]int, len(p.inputs))
	for _, in := range p.inputs {
		location[in.Name] = in.Location
	}
	vertices := desc.First + desc.Count
	instances := max(desc.Instances, 1)
	for _, in := range p.kernel.inputs() {
		f := fetch{}
		loc := location[in.name]
		for _, b := range va.bindings {
			for _, a := range b.Layout.Attributes {
				if a.Location != loc {
					continue
				}
				buf, ok := d.buffers[b.Buffer]
				if !ok {
					return nil, fmt.Errorf("%w: buffer %d", errUnknownObject, b.Buffer)
				}
				records := vertices
				if b.Layout.StepMode == gputypes.VertexStepModeInstance {
					records = instances
				}
				if records > 0 && (records-1)*b.Layout.Stride+a.Offset+gfx.FormatSize(a.Format) > len(buf) {
					return nil, fmt.Errorf("%w: attribute %s reads past buffer %d", gfx.ErrMalformedBuffer, a.Name, b.Buffer)
				}
				f = fetch{buf: buf, attr: a, stride: b.Layout.Stride, step: b.Layout.StepMode, bound: true}
			}
		}
		st.fetches = append(st.fetches, f)
	}

	w, h := colors[0].width, colors[0].height
	st.minX = max(desc.Viewport.X, 0)
	st.minY = max(desc.Viewport.Y, 0)
	st.maxX = min(desc.Viewport.X+desc.Viewport.Width, w)
	st.maxY = min(desc.Viewport.Y+desc.Viewport.Height, h)
	return st, nil
}

func (st *drawState) sample(unit int, u, v float32) mgl32.Vec4 {
	if unit < 0 || unit >= len(st.textures) {
		return mgl32.Vec4{0, 0, 0, 1}
	}
	return st.textures[unit].sample(u, v)
}

func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// topLeft reports whether the edge a->b of a counter-clockwise triangle is
// a top or left edge, which own the pixels lying exactly on them.
func topLeft(ax, ay, bx, by float64) bool {
	dy := by - ay
	return dy < 0 || (dy == 0 && bx-ax < 0)
}

func (st *drawState) triangle(a, b, c shadedVertex) {
	area := edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if area == 0 || math.IsNaN(area) {
		return
	}
	flatFrom := a
	if area < 0 {
		b, c = c, b
		area = -area
	}

	minX := max(int(math.Floor(min(a.x, b.x, c.x))), st.minX)
	maxX := min(int(math.Ceil(max(a.x, b.x, c.x))), st.maxX)
	minY := max(int(math.Floor(min(a.y, b.y, c.y))), st.minY)
	maxY := min(int(math.Ceil(max(a.y, b.y, c.y))), st.maxY)

	tl0 := topLeft(b.x, b.y, c.x, c.y)
	tl1 := topLeft(c.x, c.y, a.x, a.y)
	tl2 := topLeft(a.x, a.y, b.x, b.y)

	n := st.kernel.varyings()
	var in [maxVaryings]float32
	out := make([]mgl32.Vec4, st.kernel.outputs())

	for py := minY; py < maxY; py++ {
		cy := float64(py) + 0.5
		for px := minX; px < maxX; px++ {
			cx := float64(px) + 0.5
			w0 := edge(b.x, b.y, c.x, c.y, cx, cy)
			w1 := edge(c.x, c.y, a.x, a.y, cx, cy)
			w2 := edge(a.x, a.y, b.x, b.y, cx, cy)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			if (w0 == 0 && !tl0) || (w1 == 0 && !tl1) || (w2 == 0 && !tl2) {
				continue
			}
			l0, l1, l2 := w0/area, w1/area, w2/area

			if st.depthOn {
				z := toDepth(float32(l0*a.z + l1*b.z + l2*c.z))
				i := py*st.depth.width + px
				if z >= st.depth.values[i] {
					continue
				}
				st.depth.values[i] = z
			}

			for k := 0; k < n; k++ {
				if st.kernel.flat(k) {
					in[k] = flatFrom.varyings[k]
					continue
				}
				in[k] = float32(l0*float64(a.varyings[k]) + l1*float64(b.varyings[k]) + l2*float64(c.varyings[k]))
			}
			st.kernel.fragment(in[:n], st.sample, out)
			for k, s := range st.colors {
				if k >= len(out) {
					break
				}
				s.set(px, py, out[k])
			}
		}
	}
}
