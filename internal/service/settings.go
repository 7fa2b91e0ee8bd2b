package service

import (
	"fmt"

	"github.com/timmy/neonmeme/internal/config"
	"github.com/timmy/neonmeme/internal/render"
)

// RenderSettings turns the render section of the config into session
// defaults and renderer limits.
func RenderSettings(cfg config.RenderConfig) (render.Params, render.Limits, error) {
	limits := render.Limits{MaxFontSize: cfg.MaxFontSize, MaxOutline: cfg.MaxOutline}

	mode, err := render.ParseOutlineMode(cfg.OutlineMode)
	if err != nil {
		return render.Params{}, limits, fmt.Errorf("render.outline_mode: %w", err)
	}
	fill, err := render.ParseColor(cfg.Defaults.FillColor)
	if err != nil {
		return render.Params{}, limits, fmt.Errorf("render.defaults.fill_color: %w", err)
	}
	outline, err := render.ParseColor(cfg.Defaults.OutlineColor)
	if err != nil {
		return render.Params{}, limits, fmt.Errorf("render.defaults.outline_color: %w", err)
	}

	p := render.Params{
		TopText:          cfg.Defaults.TopText,
		BottomText:       cfg.Defaults.BottomText,
		Font:             cfg.Defaults.Font,
		FontSize:         cfg.Defaults.FontSize,
		FillColor:        fill,
		OutlineColor:     outline,
		OutlineThickness: cfg.Defaults.OutlineThickness,
		OutlineMode:      mode,
	}
	if err := p.Validate(limits); err != nil {
		return render.Params{}, limits, fmt.Errorf("render.defaults: %w", err)
	}
	return p, limits, nil
}
