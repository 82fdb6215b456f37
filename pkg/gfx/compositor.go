package gfx

import "fmt"

// Compositor copies a texture onto a target with one full-viewport quad.
type Compositor struct {
	dev     Device
	program Program
	quad    Buffer
	va      VertexArray
	clear   [4]float32
}

func NewCompositor(dev Device, source string) (c *Compositor, err error) {
	if dev == nil {
		return nil, ErrNoContext
	}
	c = &Compositor{dev: dev}
	defer func() {
		if err != nil {
			c.Close()
			c = nil
		}
	}()

	if c.program, err = BuildPass(dev, PassScreen, source); err != nil {
		return c, err
	}
	inputs, err := dev.ProgramInputs(c.program)
	if err != nil {
		return c, fmt.Errorf("screen program inputs: %w", err)
	}
	layouts, err := ResolveLayouts(inputs, QuadLayout)
	if err != nil {
		return c, err
	}
	if c.quad, err = dev.CreateBuffer(QuadGeometrySize, UsageStatic); err != nil {
		return c, fmt.Errorf("%w: screen quad: %v", ErrAllocation, err)
	}
	if err = dev.WriteBuffer(c.quad, 0, EncodeQuad(FullscreenQuad())); err != nil {
		return c, err
	}
	if c.va, err = dev.CreateVertexArray([]VertexBinding{{Buffer: c.quad, Layout: layouts[0]}}); err != nil {
		return c, fmt.Errorf("%w: screen vertex array: %v", ErrAllocation, err)
	}
	if err = dev.SetUniformInt(c.program, uniformTexture, 0); err != nil {
		return c, err
	}
	return c, nil
}

// SetClearColor sets the color the visible target is cleared to before the
// quad is drawn.
func (c *Compositor) SetClearColor(rgba [4]float32) {
	c.clear = rgba
}

// Draw clears target and samples source over the whole viewport.
func (c *Compositor) Draw(target Target, source Texture) error {
	c.dev.Clear(target.Framebuffer, ClearDesc{Color: c.clear, ClearColor: true})
	return c.dev.Draw(DrawDesc{
		Program:     c.program,
		VertexArray: c.va,
		Target:      target.Framebuffer,
		Viewport:    target.Viewport,
		Textures:    []Texture{source},
		Primitive:   PrimitiveTriangleFan,
		Count:       QuadVertexCount,
	})
}

func (c *Compositor) Close() {
	if c.va != 0 {
		c.dev.DeleteVertexArray(c.va)
		c.va = 0
	}
	if c.quad != 0 {
		c.dev.DeleteBuffer(c.quad)
		c.quad = 0
	}
	if c.program != 0 {
		c.dev.DeleteProgram(c.program)
		c.program = 0
	}
}
