package gfx

import "github.com/gogpu/gputypes"

// Handles name objects owned by a Device. Zero is never a valid object,
// except for DefaultFramebuffer which names the visible surface.
type (
	Buffer       uint32
	Texture      uint32
	Renderbuffer uint32
	Framebuffer  uint32
	Shader       uint32
	Program      uint32
	VertexArray  uint32
)

const DefaultFramebuffer Framebuffer = 0

type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

type BufferUsage int

const (
	UsageStatic BufferUsage = iota
	UsageDynamic
)

type Primitive int

const (
	PrimitiveTriangles Primitive = iota
	PrimitiveTriangleFan
)

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

// InputType is the declared GLSL type of an active vertex shader input.
type InputType int

const (
	InputUnknown InputType = iota
	InputFloat
	InputVec2
	InputVec3
	InputVec4
	InputUint
	InputUVec2
	InputUVec3
	InputUVec4
)

func (t InputType) String() string {
	switch t {
	case InputFloat:
		return "float"
	case InputVec2:
		return "vec2"
	case InputVec3:
		return "vec3"
	case InputVec4:
		return "vec4"
	case InputUint:
		return "uint"
	case InputUVec2:
		return "uvec2"
	case InputUVec3:
		return "uvec3"
	case InputUVec4:
		return "uvec4"
	default:
		return "unknown"
	}
}

// ProgramInput describes one active vertex input of a linked program.
type ProgramInput struct {
	Name     string
	Type     InputType
	Location int
}

type TextureDesc struct {
	Width  int
	Height int
	Format gputypes.TextureFormat
	Filter Filter
}

// FramebufferDesc lists color attachments in output slot order.
type FramebufferDesc struct {
	Color []Texture
	Depth Renderbuffer
}

// VertexBinding pairs a buffer with the resolved layout used to read it.
type VertexBinding struct {
	Buffer Buffer
	Layout ResolvedLayout
}

type Rect struct {
	X, Y          int
	Width, Height int
}

type ClearDesc struct {
	Color      [4]float32
	Depth      float32
	ClearColor bool
	ClearDepth bool
}

// DrawDesc carries every piece of state a draw depends on. Nothing is
// inherited from a previous call.
type DrawDesc struct {
	Program     Program
	VertexArray VertexArray
	Target      Framebuffer
	Viewport    Rect
	// Textures are bound to texture units in slice order.
	Textures  []Texture
	Primitive Primitive
	First     int
	Count     int
	// Instances is the instance count; zero issues a non-instanced draw.
	Instances int
	DepthTest bool
}

// Device is the explicit GPU context. Every pipeline component owns a
// reference to it and passes its target objects on each call.
type Device interface {
	Name() string
	// ShaderHeader is prepended to every shader stage (version and precision lines).
	ShaderHeader() string

	CreateShader(stage ShaderStage, source string) (Shader, error)
	CompileShader(shader Shader) (ok bool, log string)
	DeleteShader(shader Shader)
	CreateProgram() (Program, error)
	LinkProgram(program Program, vertex, fragment Shader) (ok bool, log string)
	ProgramInputs(program Program) ([]ProgramInput, error)
	SetUniformFloat(program Program, name string, values ...float32) error
	SetUniformInt(program Program, name string, value int32) error
	DeleteProgram(program Program)

	CreateBuffer(size int, usage BufferUsage) (Buffer, error)
	WriteBuffer(buffer Buffer, offset int, data []byte) error
	DeleteBuffer(buffer Buffer)

	CreateVertexArray(bindings []VertexBinding) (VertexArray, error)
	DeleteVertexArray(va VertexArray)

	CreateTexture(desc TextureDesc) (Texture, error)
	WriteTexture(tex Texture, x, y, width, height int, pixels []byte) error
	DeleteTexture(tex Texture)
	CreateRenderbuffer(format gputypes.TextureFormat, width, height int) (Renderbuffer, error)
	DeleteRenderbuffer(rb Renderbuffer)
	CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error)
	DeleteFramebuffer(fb Framebuffer)

	Clear(target Framebuffer, desc ClearDesc)
	Draw(desc DrawDesc) error
	// ReadPixels copies RGBA8 pixels of a color attachment into dst.
	// Rows are bottom-up, x and y are framebuffer coordinates.
	ReadPixels(fb Framebuffer, attachment, x, y, width, height int, dst []byte) error

	Close() error
}
