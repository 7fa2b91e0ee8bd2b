package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
)

var (
	// ErrUnsupportedFormat is returned for images that are not JPEG or PNG.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTooLarge is returned for images with more pixels than allowed.
	ErrTooLarge = errors.New("image too large")
)

// DefaultMaxPixels bounds decoded images to 25 megapixels.
const DefaultMaxPixels = 25_000_000

// PNG export details.
const (
	DownloadName = "neon_meme.png"
	ContentType  = "image/png"
)

// ToRGB copies img into a new opaque RGBA anchored at the origin. Alpha is
// dropped, not composited: a half-transparent red pixel becomes plain red.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := out.PixOffset(x-b.Min.X, y-b.Min.Y)
			out.Pix[i+0] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			out.Pix[i+3] = 0xff
		}
	}
	return out
}

// Clone returns an independent copy of img.
func Clone(img *image.RGBA) *image.RGBA {
	out := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}

// Decode reads a JPEG or PNG image.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return img, format, nil
}

// DecodeBounded is Decode for untrusted data: the header dimensions are read
// first and images over maxPixels are rejected before any pixel is decoded.
// A maxPixels <= 0 means no limit.
func DecodeBounded(data []byte, maxPixels int64) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	return Decode(bytes.NewReader(data))
}

// EncodePNG serialises img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
