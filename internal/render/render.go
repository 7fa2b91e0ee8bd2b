package render

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/timmy/neonmeme/internal/logger"
)

// Result is a finished meme plus what the renderer learned making it.
type Result struct {
	Image    *image.RGBA `json:"-"`
	Captions []Placement `json:"captions"`
	Font     string      `json:"font"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Renderer turns a base image and Params into a captioned, stylised meme.
// It is safe for concurrent use.
type Renderer struct {
	fonts  *FontSet
	limits Limits
}

// NewRenderer returns a Renderer resolving fonts through fonts.
func NewRenderer(fonts *FontSet, limits Limits) *Renderer {
	if fonts == nil {
		fonts = NewFontSet(nil)
	}
	return &Renderer{fonts: fonts, limits: limits}
}

// Limits returns the parameter bounds the renderer enforces.
func (r *Renderer) Limits() Limits {
	return r.limits
}

// Render draws the captions of p onto an RGB copy of base and applies the
// neon filter. base is never modified. Font problems are reported in
// Result.Warnings; only invalid parameters fail the render.
func (r *Renderer) Render(ctx context.Context, base image.Image, p Params) (*Result, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: no base image", ErrInvalidParams)
	}
	p = p.Normalize()
	if err := p.Validate(r.limits); err != nil {
		return nil, err
	}

	start := time.Now()
	canvas := ToRGB(base)

	res := &Result{}
	if p.TopText != "" || p.BottomText != "" {
		fr, err := r.fonts.Face(ctx, p.Font, p.FontSize)
		if err != nil {
			return nil, err
		}
		defer fr.Face.Close()

		res.Font = fr.Name
		if fr.Warning != "" {
			res.Warnings = append(res.Warnings, fr.Warning)
			logger.With(logger.Fields{logger.FieldFont: p.Font}).Warn(ctx, "%s", fr.Warning)
		}
		res.Captions = drawCaptions(canvas, fr.Face, p)
	}

	res.Image = Stylize(canvas)

	b := canvas.Bounds()
	logger.With(logger.Fields{
		logger.FieldWidth:  b.Dx(),
		logger.FieldHeight: b.Dy(),
		logger.FieldCount:  len(res.Captions),
	}).Since(start).Info(ctx, "Meme rendered")

	return res, nil
}
