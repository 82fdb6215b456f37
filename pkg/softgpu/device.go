// Package softgpu is a software implementation of gfx.Device. It runs the
// pipeline passes as Go kernels selected by the PASS_ define of each shader,
// rasterizes with the usual pixel-center and top-left fill rules, and keeps
// every surface in memory, so the whole pipeline can run without a display.
package softgpu

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

const (
	defaultMaxTextureSize = 16384
	maxColorAttachments   = 8
)

var errUnknownObject = errors.New("softgpu: unknown object")

type framebuffer struct {
	colors []gfx.Texture
	depth  gfx.Renderbuffer
}

type vertexArray struct {
	bindings []gfx.VertexBinding
}

// Stats counts the work submitted to the device.
type Stats struct {
	Draws          int
	InstancedDraws int
	LastInstances  int
	Clears         int
	PixelReads     int
}

type Option func(*Device)

// WithMaxTextureSize limits texture and renderbuffer dimensions. Larger
// allocations fail with gfx.ErrAllocation.
func WithMaxTextureSize(n int) Option {
	return func(d *Device) { d.maxTextureSize = n }
}

// WithScreenSize sets the initial size of the visible surface.
func WithScreenSize(width, height int) Option {
	return func(d *Device) { d.screen = newSurface(width, height, filterNearest) }
}

// Device is safe for concurrent use; calls are serialized.
type Device struct {
	mu             sync.Mutex
	next           uint32
	maxTextureSize int

	shaders       map[gfx.Shader]*shader
	programs      map[gfx.Program]*program
	buffers       map[gfx.Buffer][]byte
	vertexArrays  map[gfx.VertexArray]*vertexArray
	textures      map[gfx.Texture]*surface
	renderbuffers map[gfx.Renderbuffer]*depthSurface
	framebuffers  map[gfx.Framebuffer]*framebuffer

	screen *surface
	stats  Stats
	closed bool
}

var _ gfx.Device = (*Device)(nil)

func New(opts ...Option) *Device {
	d := &Device{
		maxTextureSize: defaultMaxTextureSize,
		shaders:        make(map[gfx.Shader]*shader),
		programs:       make(map[gfx.Program]*program),
		buffers:        make(map[gfx.Buffer][]byte),
		vertexArrays:   make(map[gfx.VertexArray]*vertexArray),
		textures:       make(map[gfx.Texture]*surface),
		renderbuffers:  make(map[gfx.Renderbuffer]*depthSurface),
		framebuffers:   make(map[gfx.Framebuffer]*framebuffer),
		screen:         newSurface(0, 0, filterNearest),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Name() string { return "softgpu" }

func (d *Device) ShaderHeader() string {
	return "#version 300 es\nprecision highp float;\nprecision highp int;\n"
}

func (d *Device) id() uint32 {
	d.next++
	return d.next
}

func (d *Device) CreateShader(stage gfx.ShaderStage, source string) (gfx.Shader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, gfx.ErrNoContext
	}
	if stage != gfx.StageVertex && stage != gfx.StageFragment {
		return 0, fmt.Errorf("softgpu: unknown shader stage %d", stage)
	}
	h := gfx.Shader(d.id())
	d.shaders[h] = &shader{stage: stage, source: source}
	return h, nil
}

func (d *Device) CompileShader(h gfx.Shader) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.shaders[h]
	if !ok {
		return false, "ERROR: invalid shader object"
	}
	compile(s)
	return s.compiled, s.log
}

func (d *Device) DeleteShader(h gfx.Shader) {
	d.mu.Lock()
	delete(d.shaders, h)
	d.mu.Unlock()
}

func (d *Device) CreateProgram() (gfx.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, gfx.ErrNoContext
	}
	h := gfx.Program(d.id())
	d.programs[h] = &program{}
	return h, nil
}

func (d *Device) LinkProgram(h gfx.Program, vs, fs gfx.Shader) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.programs[h]
	if !ok {
		return false, "ERROR: invalid program object"
	}
	link(p, d.shaders[vs], d.shaders[fs])
	return p.linked, p.log
}

func (d *Device) ProgramInputs(h gfx.Program) ([]gfx.ProgramInput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.programs[h]
	if !ok || !p.linked {
		return nil, fmt.Errorf("%w: program %d", errUnknownObject, h)
	}
	return append([]gfx.ProgramInput(nil), p.inputs...), nil
}

func (d *Device) SetUniformFloat(h gfx.Program, name string, values ...float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.activeUniform(h, name)
	if err != nil {
		return err
	}
	p.uniforms[name] = append([]float32(nil), values...)
	return nil
}

func (d *Device) SetUniformInt(h gfx.Program, name string, value int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.activeUniform(h, name)
	if err != nil {
		return err
	}
	p.uniforms[name] = []float32{float32(value)}
	return nil
}

func (d *Device) activeUniform(h gfx.Program, name string) (*program, error) {
	p, ok := d.programs[h]
	if !ok || !p.linked {
		return nil, fmt.Errorf("%w: program %d", errUnknownObject, h)
	}
	for _, u := range p.kernel.uniforms() {
		if u == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("softgpu: uniform %q is not active in program %d", name, h)
}

func (d *Device) DeleteProgram(h gfx.Program) {
	d.mu.Lock()
	delete(d.programs, h)
	d.mu.Unlock()
}

func (d *Device) CreateBuffer(size int, _ gfx.BufferUsage) (gfx.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, gfx.ErrNoContext
	}
	if size <= 0 {
		return 0, fmt.Errorf("%w: buffer of %d bytes", gfx.ErrAllocation, size)
	}
	h := gfx.Buffer(d.id())
	d.buffers[h] = make([]byte, size)
	return h, nil
}

func (d *Device) WriteBuffer(h gfx.Buffer, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("%w: buffer %d", errUnknownObject, h)
	}
	if offset < 0 || offset+len(data) > len(buf) {
		return fmt.Errorf("%w: write of %d bytes at %d into %d", gfx.ErrMalformedBuffer, len(data), offset, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

func (d *Device) DeleteBuffer(h gfx.Buffer) {
	d.mu.Lock()
	delete(d.buffers, h)
	d.mu.Unlock()
}

func (d *Device) CreateVertexArray(bindings []gfx.VertexBinding) (gfx.VertexArray, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, gfx.ErrNoContext
	}
	for _, b := range bindings {
		if _, ok := d.buffers[b.Buffer]; !ok {
			return 0, fmt.Errorf("%w: buffer %d", errUnknownObject, b.Buffer)
		}
	}
	h := gfx.VertexArray(d.id())
	d.vertexArrays[h] = &vertexArray{bindings: append([]gfx.VertexBinding(nil), bindings...)}
	return h, nil
}

func (d *Device) DeleteVertexArray(h gfx.VertexArray) {
	d.mu.Lock()
	delete(d.vertexArrays, h)
	d.mu.Unlock()
}

func (d *Device) checkSize(width, height int) error {
	if width <= 0 || height <= 0 || width > d.maxTextureSize || height > d.maxTextureSize {
		return fmt.Errorf("%w: %dx%d exceeds limits (max %d)", gfx.ErrAllocation, width, height, d.maxTextureSize)
	}
	return nil
}

func (d *Device) CreateTexture(desc gfx.TextureDesc) (gfx.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, gfx.ErrNoContext
	}
	if desc.Format != gputypes.TextureFormatRGBA8Unorm {
		return 0, fmt.Errorf("%w: unsupported texture format %v", gfx.ErrAllocation, desc.Format)
	}
	if err := d.checkSize(desc.Width, desc.Height); err != nil {
		return 0, err
	}
	filter := filterNearest
	if desc.Filter == gfx.FilterLinear {
		filter = filterLinear
	}
	h := gfx.Texture(d.id())
	d.textures[h] = newSurface(desc.Width, desc.Height, filter)
	return h, nil
}

func (d *Device) WriteTexture(h gfx.Texture, x, y, width, height int, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.textures[h]
	if !ok {
		return fmt.Errorf("%w: texture %d", errUnknownObject, h)
	}
	if x < 0 || y < 0 || width < 0 || height < 0 || x+width > s.width || y+height > s.height {
		return fmt.Errorf("softgpu: texture write %dx%d at %d,%d outside %dx%d", width, height, x, y, s.width, s.height)
	}
	if len(pixels) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d texels", gfx.ErrMalformedBuffer, len(pixels), width, height)
	}
	for row := 0; row < height; row++ {
		dst := ((y+row)*s.width + x) * 4
		copy(s.pix[dst:dst+width*4], pixels[row*width*4:])
	}
	return nil
}

func (d *Device) DeleteTexture(h gfx.Texture) {
	d.mu.Lock()
	delete(d.textures, h)
	d.mu.Unlock()
}

func (d *Device) CreateRenderbuffer(format gputypes.TextureFormat, width, height int) (gfx.Renderbuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, gfx.ErrNoContext
	}
	if format != gputypes.TextureFormatDepth16Unorm {
		return 0, fmt.Errorf("%w: unsupported renderbuffer format %v", gfx.ErrAllocation, format)
	}
	if err := d.checkSize(width, height); err != nil {
		return 0, err
	}
	h := gfx.Renderbuffer(d.id())
	d.renderbuffers[h] = newDepthSurface(width, height)
	return h, nil
}

func (d *Device) DeleteRenderbuffer(h gfx.Renderbuffer) {
	d.mu.Lock()
	delete(d.renderbuffers, h)
	d.mu.Unlock()
}

func (d *Device) CreateFramebuffer(desc gfx.FramebufferDesc) (gfx.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, gfx.ErrNoContext
	}
	if len(desc.Color) == 0 || len(desc.Color) > maxColorAttachments {
		return 0, fmt.Errorf("%w: %d color attachments", gfx.ErrIncompleteFramebuffer, len(desc.Color))
	}
	w, h := -1, -1
	for _, t := range desc.Color {
		s, ok := d.textures[t]
		if !ok {
			return 0, fmt.Errorf("%w: missing color attachment %d", gfx.ErrIncompleteFramebuffer, t)
		}
		if w < 0 {
			w, h = s.width, s.height
		} else if s.width != w || s.height != h {
			return 0, fmt.Errorf("%w: attachment sizes differ", gfx.ErrIncompleteFramebuffer)
		}
	}
	if desc.Depth != 0 {
		ds, ok := d.renderbuffers[desc.Depth]
		if !ok {
			return 0, fmt.Errorf("%w: missing depth attachment %d", gfx.ErrIncompleteFramebuffer, desc.Depth)
		}
		if ds.width != w || ds.height != h {
			return 0, fmt.Errorf("%w: depth size differs from color size", gfx.ErrIncompleteFramebuffer)
		}
	}
	fb := gfx.Framebuffer(d.id())
	d.framebuffers[fb] = &framebuffer{colors: append([]gfx.Texture(nil), desc.Color...), depth: desc.Depth}
	return fb, nil
}

func (d *Device) DeleteFramebuffer(h gfx.Framebuffer) {
	d.mu.Lock()
	delete(d.framebuffers, h)
	d.mu.Unlock()
}

// colorTargets returns the color surfaces and depth buffer behind a
// framebuffer handle. DefaultFramebuffer maps to the screen with no depth.
func (d *Device) colorTargets(h gfx.Framebuffer) ([]*surface, *depthSurface, error) {
	if h == gfx.DefaultFramebuffer {
		return []*surface{d.screen}, nil, nil
	}
	fb, ok := d.framebuffers[h]
	if !ok {
		return nil, nil, fmt.Errorf("%w: framebuffer %d", errUnknownObject, h)
	}
	colors := make([]*surface, len(fb.colors))
	for i, t := range fb.colors {
		s, ok := d.textures[t]
		if !ok {
			return nil, nil, fmt.Errorf("%w: attachment %d was deleted", gfx.ErrIncompleteFramebuffer, t)
		}
		colors[i] = s
	}
	var depth *depthSurface
	if fb.depth != 0 {
		if depth, ok = d.renderbuffers[fb.depth]; !ok {
			return nil, nil, fmt.Errorf("%w: depth attachment was deleted", gfx.ErrIncompleteFramebuffer)
		}
	}
	return colors, depth, nil
}

func (d *Device) Clear(target gfx.Framebuffer, desc gfx.ClearDesc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	colors, depth, err := d.colorTargets(target)
	if err != nil {
		return
	}
	d.stats.Clears++
	if desc.ClearColor {
		rgba := [4]byte{toByte(desc.Color[0]), toByte(desc.Color[1]), toByte(desc.Color[2]), toByte(desc.Color[3])}
		for _, s := range colors {
			s.fill(rgba)
		}
	}
	if desc.ClearDepth && depth != nil {
		depth.fill(desc.Depth)
	}
}

func (d *Device) ReadPixels(fb gfx.Framebuffer, attachment, x, y, width, height int, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	colors, _, err := d.colorTargets(fb)
	if err != nil {
		return err
	}
	if attachment < 0 || attachment >= len(colors) {
		return fmt.Errorf("softgpu: framebuffer %d has no attachment %d", fb, attachment)
	}
	s := colors[attachment]
	if x < 0 || y < 0 || width < 0 || height < 0 || x+width > s.width || y+height > s.height {
		return fmt.Errorf("softgpu: read %dx%d at %d,%d outside %dx%d", width, height, x, y, s.width, s.height)
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d pixels", gfx.ErrMalformedBuffer, len(dst), width, height)
	}
	for row := 0; row < height; row++ {
		src := ((y+row)*s.width + x) * 4
		copy(dst[row*width*4:(row+1)*width*4], s.pix[src:src+width*4])
	}
	d.stats.PixelReads++
	return nil
}

// SetScreenSize resizes the visible surface, clearing it.
func (d *Device) SetScreenSize(width, height int) {
	d.mu.Lock()
	d.screen = newSurface(width, height, filterNearest)
	d.mu.Unlock()
}

// Screen returns a top-down copy of the visible surface.
func (d *Device) Screen() *image.NRGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.screen
	img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	stride := s.width * 4
	for y := 0; y < s.height; y++ {
		copy(img.Pix[y*img.Stride:], s.pix[(s.height-1-y)*stride:(s.height-y)*stride])
	}
	return img
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Device) ResetStats() {
	d.mu.Lock()
	d.stats = Stats{}
	d.mu.Unlock()
}

// Objects returns the number of live objects, which tests use to detect
// leaks.
func (d *Device) Objects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shaders) + len(d.programs) + len(d.buffers) + len(d.vertexArrays) +
		len(d.textures) + len(d.renderbuffers) + len(d.framebuffers)
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	clear(d.shaders)
	clear(d.programs)
	clear(d.buffers)
	clear(d.vertexArrays)
	clear(d.textures)
	clear(d.renderbuffers)
	clear(d.framebuffers)
	return nil
}
