package app

import (
	"fmt"
	"image"
	_ "image/png"
	"os"

	"github.com/kjkrol/gokpick/internal/demo"
	"github.com/kjkrol/gokpick/pkg/gfx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

func (c Config) AtlasLayout() demo.AtlasLayout {
	return demo.AtlasLayout{
		Columns:    c.Sprites.Columns,
		Rows:       c.Sprites.Rows,
		CellWidth:  c.Sprites.CellWidth,
		CellHeight: c.Sprites.CellHeight,
	}
}

// LoadAtlas decodes the configured atlas image (png, bmp or webp) or
// generates one when none is configured. A loaded image must match the
// configured grid exactly.
func LoadAtlas(c Config) (image.Image, error) {
	layout := c.AtlasLayout()
	if c.Atlas == "" {
		return demo.GenerateAtlas(layout), nil
	}
	f, err := os.Open(c.Atlas)
	if err != nil {
		return nil, fmt.Errorf("open atlas: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode atlas %s: %w", c.Atlas, err)
	}
	w, h := layout.Size()
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("atlas %s is %dx%d, layout needs %dx%d", c.Atlas, b.Dx(), b.Dy(), w, h)
	}
	gfx.Logger().Debug("atlas loaded", "path", c.Atlas, "format", format, "width", w, "height", h)
	return img, nil
}
