package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/neonmeme/internal/config"
	"github.com/timmy/neonmeme/internal/render"
)

func renderConfig() config.RenderConfig {
	return config.RenderConfig{
		OutlineMode: "dilate",
		MaxFontSize: 300,
		MaxOutline:  20,
		Defaults: config.DefaultsConfig{
			TopText:          "NEON MEME",
			BottomText:       "GENERATOR",
			Font:             "impact.ttf",
			FontSize:         48,
			FillColor:        "#00FFFF",
			OutlineColor:     "#FFFF00",
			OutlineThickness: 2,
		},
	}
}

func TestRenderSettings(t *testing.T) {
	p, limits, err := RenderSettings(renderConfig())
	require.NoError(t, err)

	want := render.DefaultParams()
	want.OutlineMode = render.OutlineDilate
	assert.Equal(t, want, p)
	assert.Equal(t, render.DefaultLimits(), limits)
}

func TestRenderSettings_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.RenderConfig)
		want   string
	}{
		{"mode", func(c *config.RenderConfig) { c.OutlineMode = "glow" }, "outline_mode"},
		{"fill", func(c *config.RenderConfig) { c.Defaults.FillColor = "cyan" }, "fill_color"},
		{"outline", func(c *config.RenderConfig) { c.Defaults.OutlineColor = "#12" }, "outline_color"},
		{"size over limit", func(c *config.RenderConfig) { c.Defaults.FontSize = 400 }, "render.defaults"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := renderConfig()
			tt.mutate(&cfg)
			_, _, err := RenderSettings(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.ErrorIs(t, err, render.ErrInvalidParams)
		})
	}
}
