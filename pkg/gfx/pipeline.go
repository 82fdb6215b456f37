package gfx

import (
	"fmt"
	"image"
)

type pipelineConfig struct {
	source     string
	clearColor [4]float32
	geometry   []byte
}

type PipelineOption func(*pipelineConfig)

// WithShaderSource replaces the embedded shader source. It must provide the
// sprite and screen passes with the same inputs and uniforms.
func WithShaderSource(source string) PipelineOption {
	return func(c *pipelineConfig) { c.source = source }
}

func WithClearColor(rgba [4]float32) PipelineOption {
	return func(c *pipelineConfig) { c.clearColor = rgba }
}

// WithGeometry uploads quad geometry at construction.
func WithGeometry(quad [QuadVertexCount]QuadVertex) PipelineOption {
	return func(c *pipelineConfig) { c.geometry = EncodeQuad(quad) }
}

// Pipeline wires the render targets, sprite renderer, picker and compositor
// to one device. It is not safe for concurrent use; FrameDriver serializes
// access to it.
type Pipeline struct {
	dev        Device
	targets    *RenderTargets
	sprites    *SpriteRenderer
	compositor *Compositor
	picker     *Picker
}

func NewPipeline(dev Device, width, height int, opts ...PipelineOption) (p *Pipeline, err error) {
	if dev == nil {
		return nil, ErrNoContext
	}
	cfg := pipelineConfig{source: ShaderSource}
	for _, opt := range opts {
		opt(&cfg)
	}

	p = &Pipeline{dev: dev}
	defer func() {
		if err != nil {
			p.Close()
			p = nil
		}
	}()

	if p.targets, err = NewRenderTargets(dev, width, height); err != nil {
		return p, fmt.Errorf("render targets: %w", err)
	}
	if p.sprites, err = NewSpriteRenderer(dev, cfg.source, width, height); err != nil {
		return p, fmt.Errorf("sprite renderer: %w", err)
	}
	if p.compositor, err = NewCompositor(dev, cfg.source); err != nil {
		return p, fmt.Errorf("compositor: %w", err)
	}
	p.compositor.SetClearColor(cfg.clearColor)
	p.picker = NewPicker(dev, p.targets)
	if cfg.geometry != nil {
		if err = p.sprites.SetGeometry(cfg.geometry); err != nil {
			return p, err
		}
	}
	logger().Info("pipeline ready", "device", dev.Name(), "width", width, "height", height)
	return p, nil
}

func (p *Pipeline) Device() Device            { return p.dev }
func (p *Pipeline) Targets() *RenderTargets   { return p.targets }
func (p *Pipeline) Sprites() *SpriteRenderer  { return p.sprites }
func (p *Pipeline) Compositor() *Compositor   { return p.compositor }
func (p *Pipeline) Picker() *Picker           { return p.picker }
func (p *Pipeline) Size() (width, height int) { return p.targets.Size() }

func (p *Pipeline) SetAtlas(img image.Image) error { return p.sprites.SetAtlas(img) }

func (p *Pipeline) SetGeometry(quad []byte) error { return p.sprites.SetGeometry(quad) }

func (p *Pipeline) SetInstances(records []byte) error { return p.sprites.SetInstances(records) }

// Resize reallocates the attachments and updates the sprite resolution. A
// failure leaves both at the previous size.
func (p *Pipeline) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	oldW, oldH := p.targets.Size()
	if err := p.targets.Resize(width, height); err != nil {
		return err
	}
	if err := p.sprites.Resize(width, height); err != nil {
		// Put the targets back so both halves agree on the size.
		if rerr := p.targets.Resize(oldW, oldH); rerr != nil {
			return fmt.Errorf("%w (restoring %dx%d: %v)", err, oldW, oldH, rerr)
		}
		return err
	}
	logger().Info("pipeline resized", "width", width, "height", height)
	return nil
}

// Render runs the passes of one frame in their fixed order: offscreen
// clear and draw of n uploaded instances, pick at query, composite of the
// diffuse attachment onto the visible surface.
func (p *Pipeline) Render(n int, query Coord) (EntityID, error) {
	if err := p.sprites.Draw(p.targets.BindForOffscreenDraw(), n); err != nil {
		return NoTarget, fmt.Errorf("offscreen pass: %w", err)
	}
	target, err := p.picker.Resolve(query)
	if err != nil {
		return NoTarget, err
	}
	if err := p.compositor.Draw(p.targets.BindForScreen(), p.targets.Diffuse()); err != nil {
		return NoTarget, fmt.Errorf("composite pass: %w", err)
	}
	return target, nil
}

// ReadDiffuse returns the diffuse attachment as a top-down image.
func (p *Pipeline) ReadDiffuse() (*image.NRGBA, error) {
	return p.readAttachment(DiffuseSlot)
}

// ReadIdentity returns the identity attachment as a top-down image. Each
// pixel holds the bytes of an EntityID.
func (p *Pipeline) ReadIdentity() (*image.NRGBA, error) {
	return p.readAttachment(IdentitySlot)
}

func (p *Pipeline) readAttachment(slot int) (*image.NRGBA, error) {
	w, h := p.targets.Size()
	raw := make([]byte, w*h*4)
	if err := p.dev.ReadPixels(p.targets.Framebuffer(), slot, 0, 0, w, h, raw); err != nil {
		return nil, fmt.Errorf("read attachment %d: %w", slot, err)
	}
	return FlipRows(raw, w, h), nil
}

// FlipRows turns bottom-up RGBA rows, as returned by ReadPixels, into a
// top-down image.
func FlipRows(raw []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	stride := width * 4
	for y := 0; y < height; y++ {
		src := raw[(height-1-y)*stride : (height-y)*stride]
		copy(img.Pix[y*img.Stride:], src)
	}
	return img
}

func (p *Pipeline) Close() {
	if p.compositor != nil {
		p.compositor.Close()
		p.compositor = nil
	}
	if p.sprites != nil {
		p.sprites.Close()
		p.sprites = nil
	}
	if p.targets != nil {
		p.targets.Close()
		p.targets = nil
	}
	p.picker = nil
}
