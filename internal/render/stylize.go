package render

import (
	"image"
	"math"
)

// Fixed parameters of the neon filter.
const (
	SaturationFactor = 1.5
	BlurSigma        = 1.5
	BlurMix          = 0.3
	GainRed          = 1.3
	GainGreen        = 0.95
	GainBlue         = 1.5
)

// Stylize applies the neon filter to an opaque RGB image and returns a new
// image: saturation boost, Gaussian blur mixed back in, then per-channel
// gains clamped at 255. Order matters.
func Stylize(src *image.RGBA) *image.RGBA {
	if b := src.Bounds(); src.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		src = ToRGB(src)
	}
	img := saturate(src, SaturationFactor)
	blurred := gaussianBlur(img, BlurSigma)
	mixed := blend(img, blurred, BlurMix)
	applyGains(mixed, GainRed, GainGreen, GainBlue)
	return mixed
}

// blendChannel interpolates from a towards b by alpha, clamping to 0..255 and
// truncating, so alpha > 1 extrapolates.
func blendChannel(a, b uint8, alpha float32) uint8 {
	v := float32(a) + alpha*(float32(b)-float32(a))
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// blend returns a + alpha*(b-a) per channel. a and b must share bounds.
func blend(a, b *image.RGBA, alpha float32) *image.RGBA {
	out := image.NewRGBA(a.Bounds())
	for i := 0; i < len(a.Pix); i += 4 {
		out.Pix[i+0] = blendChannel(a.Pix[i+0], b.Pix[i+0], alpha)
		out.Pix[i+1] = blendChannel(a.Pix[i+1], b.Pix[i+1], alpha)
		out.Pix[i+2] = blendChannel(a.Pix[i+2], b.Pix[i+2], alpha)
		out.Pix[i+3] = 0xff
	}
	return out
}

// luma is the ITU-R 601-2 grey level in 16.16 fixed point.
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}

// saturate extrapolates each pixel away from its grey level by factor.
func saturate(src *image.RGBA, factor float32) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		r, g, b := src.Pix[i], src.Pix[i+1], src.Pix[i+2]
		l := luma(r, g, b)
		out.Pix[i+0] = blendChannel(l, r, factor)
		out.Pix[i+1] = blendChannel(l, g, factor)
		out.Pix[i+2] = blendChannel(l, b, factor)
		out.Pix[i+3] = 0xff
	}
	return out
}

// gaussianKernel returns normalised weights for offsets -r..r, r = ceil(3σ).
func gaussianKernel(sigma float64) []float32 {
	r := int(math.Ceil(3 * sigma))
	weights := make([]float64, 2*r+1)
	var sum float64
	for i := -r; i <= r; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		weights[i+r] = w
		sum += w
	}
	kernel := make([]float32, len(weights))
	for i, w := range weights {
		kernel[i] = float32(w / sum)
	}
	return kernel
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// gaussianBlur runs a separable Gaussian with edge clamping. The
// intermediate pass stays in float32 so rounding happens once.
func gaussianBlur(src *image.RGBA, sigma float64) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(b)
	if w == 0 || h == 0 {
		return out
	}

	kernel := gaussianKernel(sigma)
	r := len(kernel) / 2

	tmp := make([]float32, w*h*3)
	for y := 0; y < h; y++ {
		row := y * src.Stride
		for x := 0; x < w; x++ {
			var acc [3]float32
			for k, weight := range kernel {
				sx := clampIndex(x+k-r, w)
				p := row + sx*4
				acc[0] += weight * float32(src.Pix[p])
				acc[1] += weight * float32(src.Pix[p+1])
				acc[2] += weight * float32(src.Pix[p+2])
			}
			t := (y*w + x) * 3
			tmp[t], tmp[t+1], tmp[t+2] = acc[0], acc[1], acc[2]
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [3]float32
			for k, weight := range kernel {
				sy := clampIndex(y+k-r, h)
				t := (sy*w + x) * 3
				acc[0] += weight * tmp[t]
				acc[1] += weight * tmp[t+1]
				acc[2] += weight * tmp[t+2]
			}
			p := y*out.Stride + x*4
			out.Pix[p+0] = roundChannel(acc[0])
			out.Pix[p+1] = roundChannel(acc[1])
			out.Pix[p+2] = roundChannel(acc[2])
			out.Pix[p+3] = 0xff
		}
	}
	return out
}

func roundChannel(v float32) uint8 {
	v += 0.5
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// gainTable maps every channel value through min(i*gain, 255), rounded.
func gainTable(gain float64) [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.Round(math.Min(float64(i)*gain, 255)))
	}
	return lut
}

// applyGains scales each channel in place through its lookup table.
func applyGains(img *image.RGBA, r, g, b float64) {
	lr, lg, lb := gainTable(r), gainTable(g), gainTable(b)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = lr[img.Pix[i+0]]
		img.Pix[i+1] = lg[img.Pix[i+1]]
		img.Pix[i+2] = lb[img.Pix[i+2]]
	}
}
