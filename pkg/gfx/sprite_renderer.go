package gfx

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gogpu/gputypes"
)

// SpriteRenderer owns the shared quad geometry, the per-instance buffer and
// the atlas texture, and issues one instanced draw per frame that writes the
// identity and diffuse attachments.
type SpriteRenderer struct {
	dev       Device
	program   Program
	quad      Buffer
	instances Buffer
	va        VertexArray

	atlas          Texture
	atlasW, atlasH int

	// uploaded is the number of records written by the last SetInstances.
	uploaded   int
	resolution [2]float32
}

// NewSpriteRenderer builds the sprite program from source, validates the
// quad and instance descriptor tables against it and allocates the
// capacity-sized buffers. Until SetAtlas is called a transparent 1x1
// texture is bound, so sprites claim no identity pixels.
func NewSpriteRenderer(dev Device, source string, width, height int) (r *SpriteRenderer, err error) {
	if dev == nil {
		return nil, ErrNoContext
	}
	r = &SpriteRenderer{dev: dev}
	defer func() {
		if err != nil {
			r.Close()
			r = nil
		}
	}()

	if r.program, err = BuildPass(dev, PassSprite, source); err != nil {
		return r, err
	}
	inputs, err := dev.ProgramInputs(r.program)
	if err != nil {
		return r, fmt.Errorf("sprite program inputs: %w", err)
	}
	layouts, err := ResolveLayouts(inputs, QuadLayout, InstanceLayout)
	if err != nil {
		return r, err
	}

	if r.quad, err = dev.CreateBuffer(QuadGeometrySize, UsageStatic); err != nil {
		return r, fmt.Errorf("%w: quad buffer: %v", ErrAllocation, err)
	}
	if r.instances, err = dev.CreateBuffer(InstanceCapacity*InstanceStride, UsageDynamic); err != nil {
		return r, fmt.Errorf("%w: instance buffer: %v", ErrAllocation, err)
	}
	r.va, err = dev.CreateVertexArray([]VertexBinding{
		{Buffer: r.quad, Layout: layouts[0]},
		{Buffer: r.instances, Layout: layouts[1]},
	})
	if err != nil {
		return r, fmt.Errorf("%w: vertex array: %v", ErrAllocation, err)
	}

	if err = r.replaceAtlas(1, 1, make([]byte, 4)); err != nil {
		return r, err
	}
	if err = dev.SetUniformInt(r.program, uniformAtlas, 0); err != nil {
		return r, err
	}
	if err = r.Resize(width, height); err != nil {
		return r, err
	}
	logger().Debug("sprite renderer ready", "capacity", InstanceCapacity, "inputs", len(inputs))
	return r, nil
}

// SetGeometry uploads the four shared quad corners (64 bytes).
func (r *SpriteRenderer) SetGeometry(quad []byte) error {
	if len(quad) != QuadGeometrySize {
		return fmt.Errorf("%w: quad geometry has %d bytes, want %d", ErrMalformedBuffer, len(quad), QuadGeometrySize)
	}
	return r.dev.WriteBuffer(r.quad, 0, quad)
}

// SetInstances overwrites the instance data used by the next Draw. records
// must hold a whole number of 40-byte records, at most InstanceCapacity.
// On error the previously uploaded data stays in place.
func (r *SpriteRenderer) SetInstances(records []byte) error {
	if len(records)%InstanceStride != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrMalformedBuffer, len(records), InstanceStride)
	}
	n := len(records) / InstanceStride
	if n > InstanceCapacity {
		return fmt.Errorf("%w: %d records", ErrCapacityExceeded, n)
	}
	if n > 0 {
		if err := r.dev.WriteBuffer(r.instances, 0, records); err != nil {
			return err
		}
	}
	r.uploaded = n
	return nil
}

// SetTransforms is SetInstances under the name hosts use when they stream
// per-entity transform records.
func (r *SpriteRenderer) SetTransforms(records []byte) error {
	return r.SetInstances(records)
}

// Uploaded returns the number of instance records available to Draw.
func (r *SpriteRenderer) Uploaded() int {
	return r.uploaded
}

// SetAtlas replaces the atlas texture. Rows are uploaded top-down, so texture
// coordinate v=0 addresses the top row of img.
func (r *SpriteRenderer) SetAtlas(img image.Image) error {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: atlas %dx%d", ErrInvalidSize, b.Dx(), b.Dy())
	}
	rgba, ok := img.(*image.NRGBA)
	if !ok || rgba.Stride != 4*b.Dx() {
		rgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	if err := r.replaceAtlas(b.Dx(), b.Dy(), rgba.Pix); err != nil {
		return err
	}
	logger().Info("atlas uploaded", "width", b.Dx(), "height", b.Dy())
	return nil
}

// AtlasSize returns the size of the bound atlas texture.
func (r *SpriteRenderer) AtlasSize() (width, height int) {
	return r.atlasW, r.atlasH
}

func (r *SpriteRenderer) replaceAtlas(width, height int, pixels []byte) error {
	tex, err := r.dev.CreateTexture(TextureDesc{
		Width:  width,
		Height: height,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Filter: FilterNearest,
	})
	if err != nil {
		return fmt.Errorf("%w: atlas texture: %v", ErrAllocation, err)
	}
	if err := r.dev.WriteTexture(tex, 0, 0, width, height, pixels); err != nil {
		r.dev.DeleteTexture(tex)
		return err
	}
	if r.atlas != 0 {
		r.dev.DeleteTexture(r.atlas)
	}
	r.atlas, r.atlasW, r.atlasH = tex, width, height
	return nil
}

// Resize updates the resolution the vertex stage divides by. It must run
// before the first draw at the new size.
func (r *SpriteRenderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	res := [2]float32{float32(width), float32(height)}
	if res == r.resolution {
		return nil
	}
	if err := r.dev.SetUniformFloat(r.program, uniformResolution, res[0], res[1]); err != nil {
		return err
	}
	r.resolution = res
	return nil
}

// Draw clears target and issues one instanced draw of n quads with depth
// testing enabled. n must not exceed the capacity or the uploaded records.
func (r *SpriteRenderer) Draw(target Target, n int) error {
	if n > InstanceCapacity {
		return fmt.Errorf("%w: draw of %d instances", ErrCapacityExceeded, n)
	}
	if n < 0 || n > r.uploaded {
		return fmt.Errorf("%w: draw of %d instances, %d uploaded", ErrInstanceCount, n, r.uploaded)
	}
	r.dev.Clear(target.Framebuffer, ClearDesc{Depth: 1, ClearColor: true, ClearDepth: true})
	if n == 0 {
		return nil
	}
	return r.dev.Draw(DrawDesc{
		Program:     r.program,
		VertexArray: r.va,
		Target:      target.Framebuffer,
		Viewport:    target.Viewport,
		Textures:    []Texture{r.atlas},
		Primitive:   PrimitiveTriangleFan,
		Count:       QuadVertexCount,
		Instances:   n,
		DepthTest:   true,
	})
}

func (r *SpriteRenderer) Close() {
	if r.va != 0 {
		r.dev.DeleteVertexArray(r.va)
		r.va = 0
	}
	if r.instances != 0 {
		r.dev.DeleteBuffer(r.instances)
		r.instances = 0
	}
	if r.quad != 0 {
		r.dev.DeleteBuffer(r.quad)
		r.quad = 0
	}
	if r.atlas != 0 {
		r.dev.DeleteTexture(r.atlas)
		r.atlas = 0
	}
	if r.program != 0 {
		r.dev.DeleteProgram(r.program)
		r.program = 0
	}
}
