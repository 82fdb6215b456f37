package gfx

import _ "embed"

// ShaderSource holds both pipeline passes. It follows the single-source
// convention BuildPass expects.
//
//go:embed shaders/pipeline.glsl
var ShaderSource string

const (
	PassSprite = "sprite"
	PassScreen = "screen"
)

const (
	uniformResolution = "uResolution"
	uniformAtlas      = "uAtlas"
	uniformTexture    = "uTexture"
)
