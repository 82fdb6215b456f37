//go:build js && wasm

package gldevice

import (
	"fmt"
	"strings"
	"syscall/js"

	"github.com/gogpu/gputypes"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

type glConsts struct {
	arrayBuffer       int
	staticDraw        int
	dynamicDraw       int
	floatType         int
	unsignedByte      int
	triangles         int
	triangleFan       int
	framebuffer       int
	readFramebuffer   int
	framebufferOK     int
	colorAttachment0  int
	depthAttachment   int
	back              int
	renderbuffer      int
	depthComponent16  int
	texture2D         int
	texture0          int
	rgba8             int
	rgba              int
	textureMinFilter  int
	textureMagFilter  int
	textureWrapS      int
	textureWrapT      int
	nearest           int
	linear            int
	clampToEdge       int
	colorBufferBit    int
	depthBufferBit    int
	depthTest         int
	less              int
	blend             int
	scissorTest       int
	packAlignment     int
	unpackAlignment   int
	compileStatus     int
	linkStatus        int
	vertexShader      int
	fragmentShader    int
	activeAttributes  int
	maxTextureSize    int
	noError           int
	outOfMemory       int
	typeFloat         int
	typeFloatVec2     int
	typeFloatVec3     int
	typeFloatVec4     int
	typeUnsignedInt   int
	typeUnsignedIntV2 int
	typeUnsignedIntV3 int
	typeUnsignedIntV4 int
}

type jsBuffer struct {
	value js.Value
	size  int
}

type jsProgram struct {
	value    js.Value
	uniforms map[string]js.Value
}

// device implements gfx.Device on a WebGL2 rendering context. WebGL objects
// are JS values, so the device hands out numeric handles and keeps the
// values in tables.
type device struct {
	gl     js.Value
	consts glConsts
	next   uint32

	shaders       map[gfx.Shader]js.Value
	programs      map[gfx.Program]*jsProgram
	buffers       map[gfx.Buffer]*jsBuffer
	vertexArrays  map[gfx.VertexArray]js.Value
	textures      map[gfx.Texture]js.Value
	renderbuffers map[gfx.Renderbuffer]js.Value
	framebuffers  map[gfx.Framebuffer]js.Value
	attachments   map[gfx.Framebuffer]int
	closed        bool
}

func newDevice(ctx any) (gfx.Device, error) {
	gl, ok := ctx.(js.Value)
	if !ok || gl.IsUndefined() || gl.IsNull() {
		return nil, fmt.Errorf("%w: webgl2 context is required", gfx.ErrNoContext)
	}
	d := &device{
		gl:            gl,
		shaders:       make(map[gfx.Shader]js.Value),
		programs:      make(map[gfx.Program]*jsProgram),
		buffers:       make(map[gfx.Buffer]*jsBuffer),
		vertexArrays:  make(map[gfx.VertexArray]js.Value),
		textures:      make(map[gfx.Texture]js.Value),
		renderbuffers: make(map[gfx.Renderbuffer]js.Value),
		framebuffers:  make(map[gfx.Framebuffer]js.Value),
		attachments:   make(map[gfx.Framebuffer]int),
	}
	d.initConsts()
	d.gl.Call("disable", d.consts.blend)
	d.gl.Call("disable", d.consts.scissorTest)
	gfx.Logger().Info("webgl device ready",
		"version", d.gl.Call("getParameter", d.gl.Get("VERSION")).String(),
		"maxTextureSize", d.consts.maxTextureSize,
	)
	return d, nil
}

func (d *device) initConsts() {
	get := func(name string) int { return d.gl.Get(name).Int() }
	d.consts = glConsts{
		arrayBuffer:       get("ARRAY_BUFFER"),
		staticDraw:        get("STATIC_DRAW"),
		dynamicDraw:       get("DYNAMIC_DRAW"),
		floatType:         get("FLOAT"),
		unsignedByte:      get("UNSIGNED_BYTE"),
		triangles:         get("TRIANGLES"),
		triangleFan:       get("TRIANGLE_FAN"),
		framebuffer:       get("FRAMEBUFFER"),
		readFramebuffer:   get("READ_FRAMEBUFFER"),
		framebufferOK:     get("FRAMEBUFFER_COMPLETE"),
		colorAttachment0:  get("COLOR_ATTACHMENT0"),
		depthAttachment:   get("DEPTH_ATTACHMENT"),
		back:              get("BACK"),
		renderbuffer:      get("RENDERBUFFER"),
		depthComponent16:  get("DEPTH_COMPONENT16"),
		texture2D:         get("TEXTURE_2D"),
		texture0:          get("TEXTURE0"),
		rgba8:             get("RGBA8"),
		rgba:              get("RGBA"),
		textureMinFilter:  get("TEXTURE_MIN_FILTER"),
		textureMagFilter:  get("TEXTURE_MAG_FILTER"),
		textureWrapS:      get("TEXTURE_WRAP_S"),
		textureWrapT:      get("TEXTURE_WRAP_T"),
		nearest:           get("NEAREST"),
		linear:            get("LINEAR"),
		clampToEdge:       get("CLAMP_TO_EDGE"),
		colorBufferBit:    get("COLOR_BUFFER_BIT"),
		depthBufferBit:    get("DEPTH_BUFFER_BIT"),
		depthTest:         get("DEPTH_TEST"),
		less:              get("LESS"),
		blend:             get("BLEND"),
		scissorTest:       get("SCISSOR_TEST"),
		packAlignment:     get("PACK_ALIGNMENT"),
		unpackAlignment:   get("UNPACK_ALIGNMENT"),
		compileStatus:     get("COMPILE_STATUS"),
		linkStatus:        get("LINK_STATUS"),
		vertexShader:      get("VERTEX_SHADER"),
		fragmentShader:    get("FRAGMENT_SHADER"),
		activeAttributes:  get("ACTIVE_ATTRIBUTES"),
		noError:           get("NO_ERROR"),
		outOfMemory:       get("OUT_OF_MEMORY"),
		typeFloat:         get("FLOAT"),
		typeFloatVec2:     get("FLOAT_VEC2"),
		typeFloatVec3:     get("FLOAT_VEC3"),
		typeFloatVec4:     get("FLOAT_VEC4"),
		typeUnsignedInt:   get("UNSIGNED_INT"),
		typeUnsignedIntV2: get("UNSIGNED_INT_VEC2"),
		typeUnsignedIntV3: get("UNSIGNED_INT_VEC3"),
		typeUnsignedIntV4: get("UNSIGNED_INT_VEC4"),
	}
	d.consts.maxTextureSize = d.gl.Call("getParameter", d.gl.Get("MAX_TEXTURE_SIZE")).Int()
}

func (d *device) handle() uint32 {
	d.next++
	return d.next
}

func (d *device) Name() string { return "webgl2" }

func (d *device) ShaderHeader() string {
	return "#version 300 es\nprecision highp float;\nprecision highp int;\n"
}

func (d *device) CreateShader(stage gfx.ShaderStage, source string) (gfx.Shader, error) {
	shaderType := d.consts.vertexShader
	if stage == gfx.StageFragment {
		shaderType = d.consts.fragmentShader
	}
	shader := d.gl.Call("createShader", shaderType)
	if !shader.Truthy() {
		return 0, d.glError("createShader")
	}
	d.gl.Call("shaderSource", shader, source)
	h := gfx.Shader(d.handle())
	d.shaders[h] = shader
	return h, nil
}

func (d *device) CompileShader(shader gfx.Shader) (bool, string) {
	s, ok := d.shaders[shader]
	if !ok {
		return false, fmt.Sprintf("unknown shader %d", shader)
	}
	d.gl.Call("compileShader", s)
	status := d.gl.Call("getShaderParameter", s, d.consts.compileStatus).Bool()
	return status, d.gl.Call("getShaderInfoLog", s).String()
}

func (d *device) DeleteShader(shader gfx.Shader) {
	if s, ok := d.shaders[shader]; ok {
		d.gl.Call("deleteShader", s)
		delete(d.shaders, shader)
	}
}

func (d *device) CreateProgram() (gfx.Program, error) {
	program := d.gl.Call("createProgram")
	if !program.Truthy() {
		return 0, d.glError("createProgram")
	}
	h := gfx.Program(d.handle())
	d.programs[h] = &jsProgram{value: program, uniforms: make(map[string]js.Value)}
	return h, nil
}

func (d *device) LinkProgram(program gfx.Program, vs, fs gfx.Shader) (bool, string) {
	p, ok := d.programs[program]
	if !ok {
		return false, fmt.Sprintf("unknown program %d", program)
	}
	v, fv := d.shaders[vs], d.shaders[fs]
	d.gl.Call("attachShader", p.value, v)
	d.gl.Call("attachShader", p.value, fv)
	d.gl.Call("linkProgram", p.value)
	d.gl.Call("detachShader", p.value, v)
	d.gl.Call("detachShader", p.value, fv)
	status := d.gl.Call("getProgramParameter", p.value, d.consts.linkStatus).Bool()
	return status, d.gl.Call("getProgramInfoLog", p.value).String()
}

func (d *device) ProgramInputs(program gfx.Program) ([]gfx.ProgramInput, error) {
	p, ok := d.programs[program]
	if !ok {
		return nil, fmt.Errorf("webgl: unknown program %d", program)
	}
	count := d.gl.Call("getProgramParameter", p.value, d.consts.activeAttributes).Int()
	inputs := make([]gfx.ProgramInput, 0, count)
	for i := 0; i < count; i++ {
		info := d.gl.Call("getActiveAttrib", p.value, i)
		name := info.Get("name").String()
		if strings.HasPrefix(name, "gl_") {
			continue
		}
		inputs = append(inputs, gfx.ProgramInput{
			Name:     name,
			Type:     d.inputType(info.Get("type").Int()),
			Location: d.gl.Call("getAttribLocation", p.value, name).Int(),
		})
	}
	return inputs, nil
}

func (d *device) inputType(t int) gfx.InputType {
	switch t {
	case d.consts.typeFloat:
		return gfx.InputFloat
	case d.consts.typeFloatVec2:
		return gfx.InputVec2
	case d.consts.typeFloatVec3:
		return gfx.InputVec3
	case d.consts.typeFloatVec4:
		return gfx.InputVec4
	case d.consts.typeUnsignedInt:
		return gfx.InputUint
	case d.consts.typeUnsignedIntV2:
		return gfx.InputUVec2
	case d.consts.typeUnsignedIntV3:
		return gfx.InputUVec3
	case d.consts.typeUnsignedIntV4:
		return gfx.InputUVec4
	default:
		return gfx.InputUnknown
	}
}

func (d *device) uniform(program gfx.Program, name string) (js.Value, error) {
	p, ok := d.programs[program]
	if !ok {
		return js.Null(), fmt.Errorf("webgl: unknown program %d", program)
	}
	loc, ok := p.uniforms[name]
	if !ok {
		loc = d.gl.Call("getUniformLocation", p.value, name)
		p.uniforms[name] = loc
	}
	if loc.IsNull() {
		return js.Null(), fmt.Errorf("webgl: uniform %q is not active in program %d", name, program)
	}
	d.gl.Call("useProgram", p.value)
	return loc, nil
}

func (d *device) SetUniformFloat(program gfx.Program, name string, values ...float32) error {
	loc, err := d.uniform(program, name)
	if err != nil {
		return err
	}
	switch len(values) {
	case 1:
		d.gl.Call("uniform1f", loc, values[0])
	case 2:
		d.gl.Call("uniform2f", loc, values[0], values[1])
	case 3:
		d.gl.Call("uniform3f", loc, values[0], values[1], values[2])
	case 4:
		d.gl.Call("uniform4f", loc, values[0], values[1], values[2], values[3])
	default:
		return fmt.Errorf("webgl: uniform %q: %d components", name, len(values))
	}
	return nil
}

func (d *device) SetUniformInt(program gfx.Program, name string, value int32) error {
	loc, err := d.uniform(program, name)
	if err != nil {
		return err
	}
	d.gl.Call("uniform1i", loc, value)
	return nil
}

func (d *device) DeleteProgram(program gfx.Program) {
	if p, ok := d.programs[program]; ok {
		d.gl.Call("deleteProgram", p.value)
		delete(d.programs, program)
	}
}

func (d *device) CreateBuffer(size int, usage gfx.BufferUsage) (gfx.Buffer, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: buffer of %d bytes", gfx.ErrAllocation, size)
	}
	glUsage := d.consts.staticDraw
	if usage == gfx.UsageDynamic {
		glUsage = d.consts.dynamicDraw
	}
	buf := d.gl.Call("createBuffer")
	d.gl.Call("bindBuffer", d.consts.arrayBuffer, buf)
	d.gl.Call("bufferData", d.consts.arrayBuffer, size, glUsage)
	d.gl.Call("bindBuffer", d.consts.arrayBuffer, js.Null())
	if err := d.glError("bufferData"); err != nil {
		d.gl.Call("deleteBuffer", buf)
		return 0, err
	}
	h := gfx.Buffer(d.handle())
	d.buffers[h] = &jsBuffer{value: buf, size: size}
	return h, nil
}

func (d *device) WriteBuffer(buffer gfx.Buffer, offset int, data []byte) error {
	b, ok := d.buffers[buffer]
	if !ok {
		return fmt.Errorf("webgl: unknown buffer %d", buffer)
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("%w: write of %d bytes at %d into %d", gfx.ErrMalformedBuffer, len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	d.gl.Call("bindBuffer", d.consts.arrayBuffer, b.value)
	d.gl.Call("bufferSubData", d.consts.arrayBuffer, offset, uint8Array(data))
	d.gl.Call("bindBuffer", d.consts.arrayBuffer, js.Null())
	return nil
}

func (d *device) DeleteBuffer(buffer gfx.Buffer) {
	if b, ok := d.buffers[buffer]; ok {
		d.gl.Call("deleteBuffer", b.value)
		delete(d.buffers, buffer)
	}
}

func (d *device) CreateVertexArray(bindings []gfx.VertexBinding) (gfx.VertexArray, error) {
	vao := d.gl.Call("createVertexArray")
	d.gl.Call("bindVertexArray", vao)
	for _, b := range bindings {
		buf, ok := d.buffers[b.Buffer]
		if !ok {
			d.gl.Call("bindVertexArray", js.Null())
			d.gl.Call("deleteVertexArray", vao)
			return 0, fmt.Errorf("webgl: unknown buffer %d", b.Buffer)
		}
		d.gl.Call("bindBuffer", d.consts.arrayBuffer, buf.value)
		for _, a := range b.Layout.Attributes {
			comps := gfx.FormatComponents(a.Format)
			d.gl.Call("enableVertexAttribArray", a.Location)
			switch {
			case gfx.FormatInteger(a.Format):
				d.gl.Call("vertexAttribIPointer", a.Location, comps, d.consts.unsignedByte, b.Layout.Stride, a.Offset)
			case gfx.FormatNormalized(a.Format):
				d.gl.Call("vertexAttribPointer", a.Location, comps, d.consts.unsignedByte, true, b.Layout.Stride, a.Offset)
			default:
				d.gl.Call("vertexAttribPointer", a.Location, comps, d.consts.floatType, false, b.Layout.Stride, a.Offset)
			}
			if b.Layout.StepMode == gputypes.VertexStepModeInstance {
				d.gl.Call("vertexAttribDivisor", a.Location, 1)
			}
		}
	}
	d.gl.Call("bindVertexArray", js.Null())
	d.gl.Call("bindBuffer", d.consts.arrayBuffer, js.Null())
	h := gfx.VertexArray(d.handle())
	d.vertexArrays[h] = vao
	return h, nil
}

func (d *device) DeleteVertexArray(va gfx.VertexArray) {
	if v, ok := d.vertexArrays[va]; ok {
		d.gl.Call("deleteVertexArray", v)
		delete(d.vertexArrays, va)
	}
}

func (d *device) checkSize(width, height int) error {
	limit := d.consts.maxTextureSize
	if width <= 0 || height <= 0 || width > limit || height > limit {
		return fmt.Errorf("%w: %dx%d exceeds limits (max %d)", gfx.ErrAllocation, width, height, limit)
	}
	return nil
}

func (d *device) CreateTexture(desc gfx.TextureDesc) (gfx.Texture, error) {
	if desc.Format != gputypes.TextureFormatRGBA8Unorm {
		return 0, fmt.Errorf("%w: unsupported texture format %v", gfx.ErrAllocation, desc.Format)
	}
	if err := d.checkSize(desc.Width, desc.Height); err != nil {
		return 0, err
	}
	filter := d.consts.nearest
	if desc.Filter == gfx.FilterLinear {
		filter = d.consts.linear
	}
	tex := d.gl.Call("createTexture")
	d.gl.Call("bindTexture", d.consts.texture2D, tex)
	d.gl.Call("texParameteri", d.consts.texture2D, d.consts.textureMinFilter, filter)
	d.gl.Call("texParameteri", d.consts.texture2D, d.consts.textureMagFilter, filter)
	d.gl.Call("texParameteri", d.consts.texture2D, d.consts.textureWrapS, d.consts.clampToEdge)
	d.gl.Call("texParameteri", d.consts.texture2D, d.consts.textureWrapT, d.consts.clampToEdge)
	d.gl.Call("texImage2D", d.consts.texture2D, 0, d.consts.rgba8, desc.Width, desc.Height, 0, d.consts.rgba, d.consts.unsignedByte, nil)
	d.gl.Call("bindTexture", d.consts.texture2D, js.Null())
	if err := d.glError("texImage2D"); err != nil {
		d.gl.Call("deleteTexture", tex)
		return 0, err
	}
	h := gfx.Texture(d.handle())
	d.textures[h] = tex
	return h, nil
}

func (d *device) WriteTexture(tex gfx.Texture, x, y, width, height int, pixels []byte) error {
	t, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("webgl: unknown texture %d", tex)
	}
	if len(pixels) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d texels", gfx.ErrMalformedBuffer, len(pixels), width, height)
	}
	if width == 0 || height == 0 {
		return nil
	}
	d.gl.Call("bindTexture", d.consts.texture2D, t)
	d.gl.Call("pixelStorei", d.consts.unpackAlignment, 1)
	d.gl.Call("texSubImage2D", d.consts.texture2D, 0, x, y, width, height, d.consts.rgba, d.consts.unsignedByte, uint8Array(pixels[:width*height*4]))
	d.gl.Call("bindTexture", d.consts.texture2D, js.Null())
	return d.glError("texSubImage2D")
}

func (d *device) DeleteTexture(tex gfx.Texture) {
	if t, ok := d.textures[tex]; ok {
		d.gl.Call("deleteTexture", t)
		delete(d.textures, tex)
	}
}

func (d *device) CreateRenderbuffer(format gputypes.TextureFormat, width, height int) (gfx.Renderbuffer, error) {
	if format != gputypes.TextureFormatDepth16Unorm {
		return 0, fmt.Errorf("%w: unsupported renderbuffer format %v", gfx.ErrAllocation, format)
	}
	if err := d.checkSize(width, height); err != nil {
		return 0, err
	}
	rb := d.gl.Call("createRenderbuffer")
	d.gl.Call("bindRenderbuffer", d.consts.renderbuffer, rb)
	d.gl.Call("renderbufferStorage", d.consts.renderbuffer, d.consts.depthComponent16, width, height)
	d.gl.Call("bindRenderbuffer", d.consts.renderbuffer, js.Null())
	if err := d.glError("renderbufferStorage"); err != nil {
		d.gl.Call("deleteRenderbuffer", rb)
		return 0, err
	}
	h := gfx.Renderbuffer(d.handle())
	d.renderbuffers[h] = rb
	return h, nil
}

func (d *device) DeleteRenderbuffer(rb gfx.Renderbuffer) {
	if r, ok := d.renderbuffers[rb]; ok {
		d.gl.Call("deleteRenderbuffer", r)
		delete(d.renderbuffers, rb)
	}
}

func (d *device) CreateFramebuffer(desc gfx.FramebufferDesc) (gfx.Framebuffer, error) {
	fbo := d.gl.Call("createFramebuffer")
	d.gl.Call("bindFramebuffer", d.consts.framebuffer, fbo)
	drawBuffers := make([]any, len(desc.Color))
	for i, tex := range desc.Color {
		attachment := d.consts.colorAttachment0 + i
		d.gl.Call("framebufferTexture2D", d.consts.framebuffer, attachment, d.consts.texture2D, d.textures[tex], 0)
		drawBuffers[i] = attachment
	}
	if desc.Depth != 0 {
		d.gl.Call("framebufferRenderbuffer", d.consts.framebuffer, d.consts.depthAttachment, d.consts.renderbuffer, d.renderbuffers[desc.Depth])
	}
	d.gl.Call("drawBuffers", js.ValueOf(drawBuffers))
	status := d.gl.Call("checkFramebufferStatus", d.consts.framebuffer).Int()
	d.gl.Call("bindFramebuffer", d.consts.framebuffer, js.Null())
	if status != d.consts.framebufferOK {
		d.gl.Call("deleteFramebuffer", fbo)
		return 0, fmt.Errorf("%w: status 0x%X", gfx.ErrIncompleteFramebuffer, status)
	}
	h := gfx.Framebuffer(d.handle())
	d.framebuffers[h] = fbo
	d.attachments[h] = len(desc.Color)
	return h, nil
}

func (d *device) DeleteFramebuffer(fb gfx.Framebuffer) {
	if f, ok := d.framebuffers[fb]; ok {
		d.gl.Call("deleteFramebuffer", f)
		delete(d.framebuffers, fb)
		delete(d.attachments, fb)
	}
}

// framebufferValue maps DefaultFramebuffer to null, the canvas.
func (d *device) framebufferValue(fb gfx.Framebuffer) js.Value {
	if fb == gfx.DefaultFramebuffer {
		return js.Null()
	}
	return d.framebuffers[fb]
}

func (d *device) Clear(target gfx.Framebuffer, desc gfx.ClearDesc) {
	d.gl.Call("bindFramebuffer", d.consts.framebuffer, d.framebufferValue(target))
	mask := 0
	if desc.ClearColor {
		d.gl.Call("clearColor", desc.Color[0], desc.Color[1], desc.Color[2], desc.Color[3])
		mask |= d.consts.colorBufferBit
	}
	if desc.ClearDepth {
		d.gl.Call("depthMask", true)
		d.gl.Call("clearDepth", desc.Depth)
		mask |= d.consts.depthBufferBit
	}
	if mask != 0 {
		d.gl.Call("clear", mask)
	}
}

func (d *device) Draw(desc gfx.DrawDesc) error {
	p, ok := d.programs[desc.Program]
	if !ok {
		return fmt.Errorf("webgl: unknown program %d", desc.Program)
	}
	va, ok := d.vertexArrays[desc.VertexArray]
	if !ok {
		return fmt.Errorf("webgl: unknown vertex array %d", desc.VertexArray)
	}
	mode := d.consts.triangles
	if desc.Primitive == gfx.PrimitiveTriangleFan {
		mode = d.consts.triangleFan
	}
	d.gl.Call("bindFramebuffer", d.consts.framebuffer, d.framebufferValue(desc.Target))
	d.gl.Call("viewport", desc.Viewport.X, desc.Viewport.Y, desc.Viewport.Width, desc.Viewport.Height)
	if desc.DepthTest {
		d.gl.Call("enable", d.consts.depthTest)
		d.gl.Call("depthFunc", d.consts.less)
	} else {
		d.gl.Call("disable", d.consts.depthTest)
	}
	d.gl.Call("useProgram", p.value)
	for i, tex := range desc.Textures {
		d.gl.Call("activeTexture", d.consts.texture0+i)
		d.gl.Call("bindTexture", d.consts.texture2D, d.textures[tex])
	}
	d.gl.Call("bindVertexArray", va)
	if desc.Instances > 0 {
		d.gl.Call("drawArraysInstanced", mode, desc.First, desc.Count, desc.Instances)
	} else {
		d.gl.Call("drawArrays", mode, desc.First, desc.Count)
	}
	d.gl.Call("bindVertexArray", js.Null())
	d.gl.Call("activeTexture", d.consts.texture0)
	return d.glError("draw")
}

func (d *device) ReadPixels(fb gfx.Framebuffer, attachment, x, y, width, height int, dst []byte) error {
	n := width * height * 4
	if len(dst) < n {
		return fmt.Errorf("%w: %d bytes for %dx%d pixels", gfx.ErrMalformedBuffer, len(dst), width, height)
	}
	if n == 0 {
		return nil
	}
	d.gl.Call("bindFramebuffer", d.consts.readFramebuffer, d.framebufferValue(fb))
	if fb == gfx.DefaultFramebuffer {
		d.gl.Call("readBuffer", d.consts.back)
	} else {
		if attachment < 0 || attachment >= d.attachments[fb] {
			d.gl.Call("bindFramebuffer", d.consts.readFramebuffer, js.Null())
			return fmt.Errorf("webgl: framebuffer %d has no attachment %d", fb, attachment)
		}
		d.gl.Call("readBuffer", d.consts.colorAttachment0+attachment)
	}
	d.gl.Call("pixelStorei", d.consts.packAlignment, 1)
	arr := js.Global().Get("Uint8Array").New(n)
	d.gl.Call("readPixels", x, y, width, height, d.consts.rgba, d.consts.unsignedByte, arr)
	d.gl.Call("bindFramebuffer", d.consts.readFramebuffer, js.Null())
	js.CopyBytesToGo(dst[:n], arr)
	return d.glError("readPixels")
}

func (d *device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	for fb := range d.framebuffers {
		d.DeleteFramebuffer(fb)
	}
	for rb := range d.renderbuffers {
		d.DeleteRenderbuffer(rb)
	}
	for tex := range d.textures {
		d.DeleteTexture(tex)
	}
	for va := range d.vertexArrays {
		d.DeleteVertexArray(va)
	}
	for buf := range d.buffers {
		d.DeleteBuffer(buf)
	}
	for p := range d.programs {
		d.DeleteProgram(p)
	}
	for s := range d.shaders {
		d.DeleteShader(s)
	}
	return nil
}

func (d *device) glError(op string) error {
	code := d.gl.Call("getError").Int()
	switch code {
	case d.consts.noError:
		return nil
	case d.consts.outOfMemory:
		return fmt.Errorf("%w: %s: out of memory", gfx.ErrAllocation, op)
	default:
		return fmt.Errorf("webgl: %s: error 0x%X", op, code)
	}
}
