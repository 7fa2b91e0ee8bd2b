package render

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// CaptionMargin is the distance between a caption's ink box and the
// nearest horizontal image edge.
const CaptionMargin = 20

// Position says which edge a caption is pinned to.
type Position string

const (
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
)

// Placement records where a caption's measured ink box landed.
type Placement struct {
	Position Position        `json:"position"`
	Text     string          `json:"text"`
	Bounds   image.Rectangle `json:"bounds"`
}

// caption is a rasterised line of text: a coverage mask padded by pad pixels
// on every side, and the canvas rectangle its ink box occupies.
type caption struct {
	mask *image.Alpha
	pad  int
	ink  image.Rectangle
}

// measure returns the integer ink box of text relative to the drawing dot.
func measure(face font.Face, text string) image.Rectangle {
	b, _ := font.BoundString(face, text)
	return image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
}

// layoutCaption centres text horizontally in a canvas of the given size and
// pins it to pos, then rasterises its coverage with pad pixels of slack.
func layoutCaption(face font.Face, text string, pos Position, canvas image.Rectangle, pad int) *caption {
	box := measure(face, text)
	tw, th := box.Dx(), box.Dy()

	x := canvas.Min.X + (canvas.Dx()-tw)/2
	y := canvas.Min.Y + CaptionMargin
	if pos == PositionBottom {
		y = canvas.Max.Y - th - CaptionMargin
	}

	mask := image.NewAlpha(image.Rect(0, 0, tw+2*pad, th+2*pad))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(pad-box.Min.X, pad-box.Min.Y),
	}
	d.DrawString(text)

	return &caption{
		mask: mask,
		pad:  pad,
		ink:  image.Rect(x, y, x+tw, y+th),
	}
}

// maskRect is where the padded mask lands on the canvas, shifted by (dx, dy).
func (c *caption) maskRect(dx, dy int) image.Rectangle {
	return c.mask.Bounds().Add(c.ink.Min.Sub(image.Pt(c.pad, c.pad))).Add(image.Pt(dx, dy))
}

func (c *caption) paint(dst draw.Image, mask *image.Alpha, col Color, dx, dy int) {
	src := image.NewUniform(col.ToRGBA())
	draw.DrawMask(dst, c.maskRect(dx, dy), src, image.Point{}, mask, mask.Bounds().Min, draw.Over)
}

// stroke paints the outline of thickness t, then the fill on top.
func (c *caption) stroke(dst draw.Image, p Params) {
	t := p.OutlineThickness
	if t > 0 {
		switch p.OutlineMode {
		case OutlineDilate:
			c.paint(dst, dilate(c.mask, t), p.OutlineColor, 0, 0)
		default:
			for dx := -t; dx <= t; dx++ {
				for dy := -t; dy <= t; dy++ {
					if dx != 0 || dy != 0 {
						c.paint(dst, c.mask, p.OutlineColor, dx, dy)
					}
				}
			}
		}
	}
	c.paint(dst, c.mask, p.FillColor, 0, 0)
}

// dilate grows mask by a Euclidean disc of radius r, taking the maximum
// coverage under the disc at every pixel.
func dilate(mask *image.Alpha, r int) *image.Alpha {
	b := mask.Bounds()
	out := image.NewAlpha(b)

	type offset struct{ dx, dy int }
	var disc []offset
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				disc = append(disc, offset{dx, dy})
			}
		}
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var best uint8
			for _, o := range disc {
				sx, sy := x+o.dx, y+o.dy
				if sx < b.Min.X || sx >= b.Max.X || sy < b.Min.Y || sy >= b.Max.Y {
					continue
				}
				if a := mask.Pix[mask.PixOffset(sx, sy)]; a > best {
					best = a
					if best == 0xff {
						break
					}
				}
			}
			out.Pix[out.PixOffset(x, y)] = best
		}
	}
	return out
}

// drawCaptions draws the non-empty captions of p onto canvas.
func drawCaptions(canvas *image.RGBA, face font.Face, p Params) []Placement {
	var placed []Placement
	for _, c := range []struct {
		pos  Position
		text string
	}{
		{PositionTop, p.TopText},
		{PositionBottom, p.BottomText},
	} {
		if c.text == "" {
			continue
		}
		cp := layoutCaption(face, c.text, c.pos, canvas.Bounds(), p.OutlineThickness)
		cp.stroke(canvas, p)
		placed = append(placed, Placement{Position: c.pos, Text: c.text, Bounds: cp.ink})
	}
	return placed
}
