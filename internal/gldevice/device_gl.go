//go:build !js

package gldevice

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/gputypes"
	"github.com/kjkrol/gokpick/pkg/gfx"
)

// device implements gfx.Device on an OpenGL 3.3 core context. The context
// must be current on the calling thread for the lifetime of the device.
type device struct {
	maxTextureSize int32
	buffers        map[gfx.Buffer]int
	textures       map[gfx.Texture]struct{}
	renderbuffers  map[gfx.Renderbuffer]struct{}
	framebuffers   map[gfx.Framebuffer]int
	vertexArrays   map[gfx.VertexArray]struct{}
	programs       map[gfx.Program]struct{}
	closed         bool
}

func newDevice(_ any) (gfx.Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("%w: gl.Init: %v", gfx.ErrNoContext, err)
	}
	d := &device{
		buffers:       make(map[gfx.Buffer]int),
		textures:      make(map[gfx.Texture]struct{}),
		renderbuffers: make(map[gfx.Renderbuffer]struct{}),
		framebuffers:  make(map[gfx.Framebuffer]int),
		vertexArrays:  make(map[gfx.VertexArray]struct{}),
		programs:      make(map[gfx.Program]struct{}),
	}
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &d.maxTextureSize)
	gl.Disable(gl.BLEND)
	gl.Disable(gl.SCISSOR_TEST)
	gl.DepthFunc(gl.LESS)
	gfx.Logger().Info("opengl device ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"maxTextureSize", d.maxTextureSize,
	)
	return d, nil
}

func (d *device) Name() string { return "opengl" }

func (d *device) ShaderHeader() string { return "#version 330 core\n" }

func (d *device) CreateShader(stage gfx.ShaderStage, source string) (gfx.Shader, error) {
	shaderType := uint32(gl.VERTEX_SHADER)
	if stage == gfx.StageFragment {
		shaderType = gl.FRAGMENT_SHADER
	}
	shader := gl.CreateShader(shaderType)
	if shader == 0 {
		return 0, glError("createShader")
	}
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	return gfx.Shader(shader), nil
}

func (d *device) CompileShader(shader gfx.Shader) (bool, string) {
	gl.CompileShader(uint32(shader))
	var status int32
	gl.GetShaderiv(uint32(shader), gl.COMPILE_STATUS, &status)
	var logLength int32
	gl.GetShaderiv(uint32(shader), gl.INFO_LOG_LENGTH, &logLength)
	log := ""
	if logLength > 0 {
		log = strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(uint32(shader), logLength, nil, gl.Str(log))
	}
	return status != gl.FALSE, strings.TrimRight(log, "\x00")
}

func (d *device) DeleteShader(shader gfx.Shader) {
	gl.DeleteShader(uint32(shader))
}

func (d *device) CreateProgram() (gfx.Program, error) {
	program := gl.CreateProgram()
	if program == 0 {
		return 0, glError("createProgram")
	}
	d.programs[gfx.Program(program)] = struct{}{}
	return gfx.Program(program), nil
}

func (d *device) LinkProgram(program gfx.Program, vs, fs gfx.Shader) (bool, string) {
	p := uint32(program)
	gl.AttachShader(p, uint32(vs))
	gl.AttachShader(p, uint32(fs))
	gl.LinkProgram(p)
	gl.DetachShader(p, uint32(vs))
	gl.DetachShader(p, uint32(fs))

	var status int32
	gl.GetProgramiv(p, gl.LINK_STATUS, &status)
	var logLength int32
	gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, &logLength)
	log := ""
	if logLength > 0 {
		log = strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(p, logLength, nil, gl.Str(log))
	}
	return status != gl.FALSE, strings.TrimRight(log, "\x00")
}

func (d *device) ProgramInputs(program gfx.Program) ([]gfx.ProgramInput, error) {
	p := uint32(program)
	var count, maxLen int32
	gl.GetProgramiv(p, gl.ACTIVE_ATTRIBUTES, &count)
	gl.GetProgramiv(p, gl.ACTIVE_ATTRIBUTE_MAX_LENGTH, &maxLen)
	name := make([]uint8, maxLen+1)
	inputs := make([]gfx.ProgramInput, 0, count)
	for i := int32(0); i < count; i++ {
		var length, size int32
		var xtype uint32
		gl.GetActiveAttrib(p, uint32(i), maxLen+1, &length, &size, &xtype, &name[0])
		n := string(name[:length])
		if strings.HasPrefix(n, "gl_") {
			continue
		}
		inputs = append(inputs, gfx.ProgramInput{
			Name:     n,
			Type:     inputType(xtype),
			Location: int(gl.GetAttribLocation(p, gl.Str(n+"\x00"))),
		})
	}
	return inputs, nil
}

func inputType(xtype uint32) gfx.InputType {
	switch xtype {
	case gl.FLOAT:
		return gfx.InputFloat
	case gl.FLOAT_VEC2:
		return gfx.InputVec2
	case gl.FLOAT_VEC3:
		return gfx.InputVec3
	case gl.FLOAT_VEC4:
		return gfx.InputVec4
	case gl.UNSIGNED_INT:
		return gfx.InputUint
	case gl.UNSIGNED_INT_VEC2:
		return gfx.InputUVec2
	case gl.UNSIGNED_INT_VEC3:
		return gfx.InputUVec3
	case gl.UNSIGNED_INT_VEC4:
		return gfx.InputUVec4
	default:
		return gfx.InputUnknown
	}
}

func (d *device) uniformLocation(program gfx.Program, name string) (int32, error) {
	loc := gl.GetUniformLocation(uint32(program), gl.Str(name+"\x00"))
	if loc < 0 {
		return 0, fmt.Errorf("opengl: uniform %q is not active in program %d", name, program)
	}
	gl.UseProgram(uint32(program))
	return loc, nil
}

func (d *device) SetUniformFloat(program gfx.Program, name string, values ...float32) error {
	loc, err := d.uniformLocation(program, name)
	if err != nil {
		return err
	}
	switch len(values) {
	case 1:
		gl.Uniform1f(loc, values[0])
	case 2:
		gl.Uniform2f(loc, values[0], values[1])
	case 3:
		gl.Uniform3f(loc, values[0], values[1], values[2])
	case 4:
		gl.Uniform4f(loc, values[0], values[1], values[2], values[3])
	default:
		return fmt.Errorf("opengl: uniform %q: %d components", name, len(values))
	}
	return nil
}

func (d *device) SetUniformInt(program gfx.Program, name string, value int32) error {
	loc, err := d.uniformLocation(program, name)
	if err != nil {
		return err
	}
	gl.Uniform1i(loc, value)
	return nil
}

func (d *device) DeleteProgram(program gfx.Program) {
	gl.DeleteProgram(uint32(program))
	delete(d.programs, program)
}

func (d *device) CreateBuffer(size int, usage gfx.BufferUsage) (gfx.Buffer, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: buffer of %d bytes", gfx.ErrAllocation, size)
	}
	glUsage := uint32(gl.STATIC_DRAW)
	if usage == gfx.UsageDynamic {
		glUsage = gl.DYNAMIC_DRAW
	}
	var buf uint32
	gl.GenBuffers(1, &buf)
	gl.BindBuffer(gl.ARRAY_BUFFER, buf)
	gl.BufferData(gl.ARRAY_BUFFER, size, nil, glUsage)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if err := glError("bufferData"); err != nil {
		gl.DeleteBuffers(1, &buf)
		return 0, err
	}
	d.buffers[gfx.Buffer(buf)] = size
	return gfx.Buffer(buf), nil
}

func (d *device) WriteBuffer(buffer gfx.Buffer, offset int, data []byte) error {
	size, ok := d.buffers[buffer]
	if !ok {
		return fmt.Errorf("opengl: unknown buffer %d", buffer)
	}
	if offset < 0 || offset+len(data) > size {
		return fmt.Errorf("%w: write of %d bytes at %d into %d", gfx.ErrMalformedBuffer, len(data), offset, size)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(buffer))
	gl.BufferSubData(gl.ARRAY_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

func (d *device) DeleteBuffer(buffer gfx.Buffer) {
	b := uint32(buffer)
	gl.DeleteBuffers(1, &b)
	delete(d.buffers, buffer)
}

func (d *device) CreateVertexArray(bindings []gfx.VertexBinding) (gfx.VertexArray, error) {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	for _, b := range bindings {
		gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b.Buffer))
		stride := int32(b.Layout.Stride)
		for _, a := range b.Layout.Attributes {
			loc := uint32(a.Location)
			comps := int32(gfx.FormatComponents(a.Format))
			gl.EnableVertexAttribArray(loc)
			switch {
			case gfx.FormatInteger(a.Format):
				gl.VertexAttribIPointer(loc, comps, gl.UNSIGNED_BYTE, stride, gl.PtrOffset(a.Offset))
			case gfx.FormatNormalized(a.Format):
				gl.VertexAttribPointer(loc, comps, gl.UNSIGNED_BYTE, true, stride, gl.PtrOffset(a.Offset))
			default:
				gl.VertexAttribPointer(loc, comps, gl.FLOAT, false, stride, gl.PtrOffset(a.Offset))
			}
			if b.Layout.StepMode == gputypes.VertexStepModeInstance {
				gl.VertexAttribDivisor(loc, 1)
			}
		}
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if err := glError("vertex array"); err != nil {
		gl.DeleteVertexArrays(1, &vao)
		return 0, err
	}
	d.vertexArrays[gfx.VertexArray(vao)] = struct{}{}
	return gfx.VertexArray(vao), nil
}

func (d *device) DeleteVertexArray(va gfx.VertexArray) {
	v := uint32(va)
	gl.DeleteVertexArrays(1, &v)
	delete(d.vertexArrays, va)
}

func (d *device) checkSize(width, height int) error {
	if width <= 0 || height <= 0 || width > int(d.maxTextureSize) || height > int(d.maxTextureSize) {
		return fmt.Errorf("%w: %dx%d exceeds limits (max %d)", gfx.ErrAllocation, width, height, d.maxTextureSize)
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
	filter := int32(gl.NEAREST)
	if desc.Filter == gfx.FilterLinear {
		filter = gl.LINEAR
	}
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(desc.Width), int32(desc.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glError("texImage2D"); err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, err
	}
	d.textures[gfx.Texture(tex)] = struct{}{}
	return gfx.Texture(tex), nil
}

func (d *device) WriteTexture(tex gfx.Texture, x, y, width, height int, pixels []byte) error {
	if len(pixels) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d texels", gfx.ErrMalformedBuffer, len(pixels), width, height)
	}
	if width == 0 || height == 0 {
		return nil
	}
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return glError("texSubImage2D")
}

func (d *device) DeleteTexture(tex gfx.Texture) {
	t := uint32(tex)
	gl.DeleteTextures(1, &t)
	delete(d.textures, tex)
}

func (d *device) CreateRenderbuffer(format gputypes.TextureFormat, width, height int) (gfx.Renderbuffer, error) {
	if format != gputypes.TextureFormatDepth16Unorm {
		return 0, fmt.Errorf("%w: unsupported renderbuffer format %v", gfx.ErrAllocation, format)
	}
	if err := d.checkSize(width, height); err != nil {
		return 0, err
	}
	var rb uint32
	gl.GenRenderbuffers(1, &rb)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rb)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT16, int32(width), int32(height))
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
	if err := glError("renderbufferStorage"); err != nil {
		gl.DeleteRenderbuffers(1, &rb)
		return 0, err
	}
	d.renderbuffers[gfx.Renderbuffer(rb)] = struct{}{}
	return gfx.Renderbuffer(rb), nil
}

func (d *device) DeleteRenderbuffer(rb gfx.Renderbuffer) {
	r := uint32(rb)
	gl.DeleteRenderbuffers(1, &r)
	delete(d.renderbuffers, rb)
}

func (d *device) CreateFramebuffer(desc gfx.FramebufferDesc) (gfx.Framebuffer, error) {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	drawBuffers := make([]uint32, len(desc.Color))
	for i, tex := range desc.Color {
		attachment := uint32(gl.COLOR_ATTACHMENT0 + i)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, attachment, gl.TEXTURE_2D, uint32(tex), 0)
		drawBuffers[i] = attachment
	}
	if desc.Depth != 0 {
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, uint32(desc.Depth))
	}
	if len(drawBuffers) > 0 {
		gl.DrawBuffers(int32(len(drawBuffers)), &drawBuffers[0])
	}
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &fbo)
		return 0, fmt.Errorf("%w: status 0x%X", gfx.ErrIncompleteFramebuffer, status)
	}
	d.framebuffers[gfx.Framebuffer(fbo)] = len(desc.Color)
	return gfx.Framebuffer(fbo), nil
}

func (d *device) DeleteFramebuffer(fb gfx.Framebuffer) {
	f := uint32(fb)
	gl.DeleteFramebuffers(1, &f)
	delete(d.framebuffers, fb)
}

func (d *device) Clear(target gfx.Framebuffer, desc gfx.ClearDesc) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(target))
	var mask uint32
	if desc.ClearColor {
		gl.ClearColor(desc.Color[0], desc.Color[1], desc.Color[2], desc.Color[3])
		mask |= gl.COLOR_BUFFER_BIT
	}
	if desc.ClearDepth {
		gl.DepthMask(true)
		gl.ClearDepth(float64(desc.Depth))
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if mask != 0 {
		gl.Clear(mask)
	}
}

func (d *device) Draw(desc gfx.DrawDesc) error {
	mode := uint32(gl.TRIANGLES)
	if desc.Primitive == gfx.PrimitiveTriangleFan {
		mode = gl.TRIANGLE_FAN
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(desc.Target))
	gl.Viewport(int32(desc.Viewport.X), int32(desc.Viewport.Y), int32(desc.Viewport.Width), int32(desc.Viewport.Height))
	if desc.DepthTest {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LESS)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.UseProgram(uint32(desc.Program))
	for i, tex := range desc.Textures {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
	}
	gl.BindVertexArray(uint32(desc.VertexArray))
	if desc.Instances > 0 {
		gl.DrawArraysInstanced(mode, int32(desc.First), int32(desc.Count), int32(desc.Instances))
	} else {
		gl.DrawArrays(mode, int32(desc.First), int32(desc.Count))
	}
	gl.BindVertexArray(0)
	gl.ActiveTexture(gl.TEXTURE0)
	return glError("draw")
}

func (d *device) ReadPixels(fb gfx.Framebuffer, attachment, x, y, width, height int, dst []byte) error {
	if len(dst) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d pixels", gfx.ErrMalformedBuffer, len(dst), width, height)
	}
	if width == 0 || height == 0 {
		return nil
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(fb))
	if fb == gfx.DefaultFramebuffer {
		gl.ReadBuffer(gl.BACK)
	} else {
		if n := d.framebuffers[fb]; attachment < 0 || attachment >= n {
			gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
			return fmt.Errorf("opengl: framebuffer %d has no attachment %d", fb, attachment)
		}
		gl.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(attachment))
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(dst))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	return glError("readPixels")
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
	return nil
}

func glError(op string) error {
	code := gl.GetError()
	switch code {
	case gl.NO_ERROR:
		return nil
	case gl.OUT_OF_MEMORY:
		return fmt.Errorf("%w: %s: out of memory", gfx.ErrAllocation, op)
	default:
		return fmt.Errorf("opengl: %s: error 0x%X", op, code)
	}
}
