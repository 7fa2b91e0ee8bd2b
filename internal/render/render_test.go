package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	gray   = color.RGBA{128, 128, 128, 255}
	cyan   = MustParseColor("#00FFFF")
	yellow = MustParseColor("#FFFF00")
)

// fontFiles is an in-memory FontSource that counts opens.
type fontFiles struct {
	files map[string][]byte
	opens atomic.Int32
}

func (f *fontFiles) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f.opens.Add(1)
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("font %q not found", name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func scenarioParams() Params {
	p := DefaultParams()
	p.TopText = "A"
	p.BottomText = ""
	p.FontSize = 48
	p.OutlineThickness = 2
	p.OutlineColor = yellow
	p.FillColor = cyan
	return p
}

func newTestRenderer() *Renderer {
	return NewRenderer(NewFontSet(nil), DefaultLimits())
}

func isYellowish(r, g, b uint8) bool { return r > 200 && g > 180 && b < 80 }
func isCyanish(r, g, b uint8) bool   { return r < 60 && g > 180 && b > 200 }

// countAndBox counts pixels of img in region matching pred and returns their
// bounding box.
func countAndBox(img *image.RGBA, region image.Rectangle, pred func(r, g, b uint8) bool) (int, image.Rectangle) {
	n := 0
	box := image.Rectangle{}
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			i := img.PixOffset(x, y)
			if pred(img.Pix[i], img.Pix[i+1], img.Pix[i+2]) {
				n++
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return n, box
}

func TestStylize_WhiteIsClamped(t *testing.T) {
	out := Stylize(solid(16, 16, color.RGBA{255, 255, 255, 255}))

	for i := 0; i < len(out.Pix); i += 4 {
		require.Equal(t, []uint8{255, 242, 255, 255}, out.Pix[i:i+4], "pixel %d", i/4)
	}
}

func TestStylize_UniformGray(t *testing.T) {
	out := Stylize(solid(8, 8, gray))

	assert.Equal(t, []uint8{166, 122, 192, 255}, out.Pix[0:4])
	assert.Equal(t, out.Pix[0:4], out.Pix[len(out.Pix)-4:])
}

func TestStylize_SaturatesColour(t *testing.T) {
	// A muted red moves away from its grey level before the gains apply.
	out := Stylize(solid(4, 4, color.RGBA{160, 100, 100, 255}))
	l := luma(160, 100, 100)
	red := gainTable(GainRed)

	assert.Equal(t, red[blendChannel(l, 160, SaturationFactor)], out.Pix[0])
	assert.Less(t, out.Pix[1], uint8(100))
}

func TestStylize_LeavesInputAlone(t *testing.T) {
	src := solid(10, 10, color.RGBA{10, 200, 30, 255})
	before := Clone(src)

	_ = Stylize(src)

	assert.Equal(t, before.Pix, src.Pix)
}

func TestGaussianKernel_Normalised(t *testing.T) {
	k := gaussianKernel(BlurSigma)
	require.Len(t, k, 11)

	var sum float32
	for _, w := range k {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Equal(t, k[0], k[len(k)-1])
	assert.Greater(t, k[5], k[4])
}

func TestRender_Deterministic(t *testing.T) {
	r := newTestRenderer()
	base := solid(320, 240, color.RGBA{40, 90, 200, 255})
	p := DefaultParams()

	first, err := r.Render(context.Background(), base, p)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), base, p)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Image.Pix, second.Image.Pix))
	assert.Equal(t, first.Captions, second.Captions)
}

func TestRender_DoesNotMutateBase(t *testing.T) {
	base := solid(200, 200, gray)
	before := Clone(base)

	res, err := newTestRenderer().Render(context.Background(), base, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, before.Pix, base.Pix)
	assert.NotSame(t, base, res.Image)
}

func TestRender_EmptyCaptionSkipped(t *testing.T) {
	ctx := context.Background()
	base := solid(400, 300, gray)
	plain := Stylize(ToRGB(base))

	t.Run("bottom empty", func(t *testing.T) {
		res, err := newTestRenderer().Render(ctx, base, scenarioParams())
		require.NoError(t, err)
		require.Len(t, res.Captions, 1)
		assert.Equal(t, PositionTop, res.Captions[0].Position)

		for y := 150; y < 300; y++ {
			start := plain.PixOffset(0, y)
			end := plain.PixOffset(400, y)
			require.Equal(t, plain.Pix[start:end], res.Image.Pix[start:end], "row %d", y)
		}
	})

	t.Run("both empty", func(t *testing.T) {
		p := scenarioParams()
		p.TopText = ""
		p.Font = "does-not-matter.ttf"

		res, err := newTestRenderer().Render(ctx, base, p)
		require.NoError(t, err)

		assert.Empty(t, res.Captions)
		assert.Empty(t, res.Warnings, "no font is resolved when nothing is drawn")
		assert.Equal(t, plain.Pix, res.Image.Pix)
	})
}

func outlineCount(t *testing.T, mode OutlineMode, thickness int) int {
	t.Helper()
	fr, err := NewFontSet(nil).Face(context.Background(), "", 48)
	require.NoError(t, err)
	defer fr.Face.Close()

	p := scenarioParams()
	p.OutlineMode = mode
	p.OutlineThickness = thickness

	canvas := solid(400, 300, gray)
	drawCaptions(canvas, fr.Face, p)

	n, _ := countAndBox(canvas, image.Rect(0, 0, 400, 150), isYellowish)
	return n
}

func TestRender_OutlineGrowsWithThickness(t *testing.T) {
	for _, mode := range []OutlineMode{OutlineOffset, OutlineDilate} {
		t.Run(string(mode), func(t *testing.T) {
			prev := outlineCount(t, mode, 0)
			assert.Zero(t, prev)
			for thickness := 1; thickness <= 5; thickness++ {
				n := outlineCount(t, mode, thickness)
				assert.Greater(t, n, prev, "thickness %d", thickness)
				prev = n
			}
		})
	}
}

func TestRender_OffsetAndDilateDiffer(t *testing.T) {
	offset := outlineCount(t, OutlineOffset, 4)
	dilated := outlineCount(t, OutlineDilate, 4)

	// The square offset pattern covers the disc and its corners.
	assert.Greater(t, offset, dilated)
}

func TestRender_ModeSpellingIgnored(t *testing.T) {
	r := newTestRenderer()
	base := solid(320, 240, gray)

	p := DefaultParams()
	p.OutlineThickness = 4
	p.OutlineMode = OutlineDilate
	want, err := r.Render(context.Background(), base, p)
	require.NoError(t, err)

	p.OutlineMode = " DILATE"
	got, err := r.Render(context.Background(), base, p)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(want.Image.Pix, got.Image.Pix))
}

func TestRender_CaptionsCentred(t *testing.T) {
	fr, err := NewFontSet(nil).Face(context.Background(), "", 40)
	require.NoError(t, err)
	defer fr.Face.Close()

	for _, text := range []string{"A", "Hello", "WIDE TEXT HERE", "jqy"} {
		t.Run(text, func(t *testing.T) {
			p := scenarioParams()
			p.TopText = text
			p.BottomText = text
			p.FontSize = 40
			p.OutlineThickness = 0

			canvas := solid(401, 300, gray)
			placed := drawCaptions(canvas, fr.Face, p)
			require.Len(t, placed, 2)

			for _, pl := range placed {
				mid := float64(pl.Bounds.Min.X+pl.Bounds.Max.X) / 2
				assert.InDelta(t, 200.5, mid, 1, "%s measured midpoint", pl.Position)
			}

			top, bottom := placed[0].Bounds, placed[1].Bounds
			assert.Equal(t, CaptionMargin, top.Min.Y)
			assert.Equal(t, 300-CaptionMargin, bottom.Max.Y)

			// The ink actually drawn agrees with the measurement.
			differs := func(r, g, b uint8) bool { return r != gray.R || g != gray.G || b != gray.B }
			_, ink := countAndBox(canvas, image.Rect(0, 0, 401, 150), differs)
			assert.InDelta(t, 200.5, float64(ink.Min.X+ink.Max.X)/2, 1)
			assert.InDelta(t, CaptionMargin, ink.Min.Y, 1)
		})
	}
}

func TestRender_Scenario400x300(t *testing.T) {
	ctx := context.Background()
	base := solid(400, 300, gray)
	p := scenarioParams()

	res, err := newTestRenderer().Render(ctx, base, p)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 300), res.Image.Bounds())

	top := image.Rect(0, 0, 400, 120)
	nCyan, _ := countAndBox(res.Image, top, isCyanish)
	nYellow, _ := countAndBox(res.Image, top, isYellowish)
	assert.Positive(t, nCyan)
	assert.Positive(t, nYellow)

	// Before the filter, the cyan fill sits strictly inside the yellow ring.
	fr, err := NewFontSet(nil).Face(ctx, "", 48)
	require.NoError(t, err)
	defer fr.Face.Close()
	canvas := solid(400, 300, gray)
	drawCaptions(canvas, fr.Face, p)

	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d >= -3 && d <= 3
	}
	pure := func(c Color) func(r, g, b uint8) bool {
		return func(r, g, b uint8) bool { return near(r, c.R) && near(g, c.G) && near(b, c.B) }
	}
	_, cyanBox := countAndBox(canvas, top, pure(cyan))
	_, yellowBox := countAndBox(canvas, top, pure(yellow))
	require.False(t, cyanBox.Empty())
	require.False(t, yellowBox.Empty())
	assert.True(t, cyanBox.In(yellowBox))
	assert.Less(t, yellowBox.Min.X, cyanBox.Min.X)
	assert.Greater(t, yellowBox.Max.X, cyanBox.Max.X)

	// The bottom half only sees the global filter.
	for y := 200; y < 300; y++ {
		i := res.Image.PixOffset(0, y)
		require.Equal(t, []uint8{166, 122, 192, 255}, res.Image.Pix[i:i+4])
	}
}

func TestRender_FontResolution(t *testing.T) {
	ctx := context.Background()
	base := solid(300, 200, gray)

	t.Run("loads named font without warning", func(t *testing.T) {
		src := &fontFiles{files: map[string][]byte{"goregular.ttf": goregular.TTF}}
		r := NewRenderer(NewFontSet(src), DefaultLimits())
		p := DefaultParams()
		p.Font = "goregular.ttf"

		res, err := r.Render(ctx, base, p)
		require.NoError(t, err)
		assert.Equal(t, "goregular.ttf", res.Font)
		assert.Empty(t, res.Warnings)

		_, err = r.Render(ctx, base, p)
		require.NoError(t, err)
		assert.EqualValues(t, 1, src.opens.Load(), "parsed fonts are cached")
	})

	t.Run("missing font falls back with warning", func(t *testing.T) {
		src := &fontFiles{files: map[string][]byte{}}
		res, err := NewRenderer(NewFontSet(src), DefaultLimits()).Render(ctx, base, DefaultParams())
		require.NoError(t, err)

		assert.Equal(t, FallbackFontName, res.Font)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], `"impact.ttf"`)
		assert.Contains(t, res.Warnings[0], FallbackFontName)
		assert.NotEmpty(t, res.Captions)
	})

	t.Run("corrupt font falls back with warning", func(t *testing.T) {
		src := &fontFiles{files: map[string][]byte{"broken.ttf": []byte("not a font")}}
		p := DefaultParams()
		p.Font = "broken.ttf"

		res, err := NewRenderer(NewFontSet(src), DefaultLimits()).Render(ctx, base, p)
		require.NoError(t, err)
		assert.Equal(t, FallbackFontName, res.Font)
		require.Len(t, res.Warnings, 1)
		assert.True(t, strings.Contains(res.Warnings[0], "parse"))
	})

	t.Run("fallback output matches explicit fallback", func(t *testing.T) {
		missing, err := newTestRenderer().Render(ctx, base, DefaultParams())
		require.NoError(t, err)
		p := DefaultParams()
		p.Font = ""
		unnamed, err := newTestRenderer().Render(ctx, base, p)
		require.NoError(t, err)

		assert.Equal(t, missing.Image.Pix, unnamed.Image.Pix)
	})
}

func TestRender_InvalidParams(t *testing.T) {
	r := newTestRenderer()
	base := solid(50, 50, gray)

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative outline", func(p *Params) { p.OutlineThickness = -1 }},
		{"outline above limit", func(p *Params) { p.OutlineThickness = 21 }},
		{"zero font size", func(p *Params) { p.FontSize = 0 }},
		{"huge font size", func(p *Params) { p.FontSize = 301 }},
		{"unknown mode", func(p *Params) { p.OutlineMode = "zigzag" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			_, err := r.Render(context.Background(), base, p)
			assert.True(t, errors.Is(err, ErrInvalidParams), "got %v", err)
		})
	}

	_, err := r.Render(context.Background(), nil, DefaultParams())
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestRender_ZeroThicknessDrawsFillOnly(t *testing.T) {
	p := scenarioParams()
	p.OutlineThickness = 0

	assert.Zero(t, outlineCount(t, OutlineOffset, 0))

	res, err := newTestRenderer().Render(context.Background(), solid(400, 300, gray), p)
	require.NoError(t, err)
	n, _ := countAndBox(res.Image, image.Rect(0, 0, 400, 120), isCyanish)
	assert.Positive(t, n)
}
