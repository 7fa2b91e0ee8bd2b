package render

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ErrInvalidParams is wrapped by every parameter validation failure.
var ErrInvalidParams = errors.New("invalid render parameters")

// OutlineMode selects how caption outlines are stroked.
type OutlineMode string

const (
	// OutlineOffset redraws the caption at every integer offset in
	// [-t, t]² except the origin. Diagonals overlap, so the stroke
	// grows faster than linearly with t.
	OutlineOffset OutlineMode = "offset"
	// OutlineDilate dilates the glyph coverage by a disc of radius t and
	// composites it once.
	OutlineDilate OutlineMode = "dilate"
)

// ParseOutlineMode accepts "offset", "dilate" or "" (offset).
func ParseOutlineMode(s string) (OutlineMode, error) {
	switch OutlineMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutlineOffset:
		return OutlineOffset, nil
	case OutlineDilate:
		return OutlineDilate, nil
	default:
		return "", fmt.Errorf("%w: unknown outline mode %q", ErrInvalidParams, s)
	}
}

// UnmarshalText accepts any spelling ParseOutlineMode does and stores the
// canonical mode.
func (m *OutlineMode) UnmarshalText(text []byte) error {
	parsed, err := ParseOutlineMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Color is an opaque RGB colour that travels as "#RRGGBB".
type Color color.RGBA

// ParseColor parses "#RRGGBB" or "#RGB"; the leading '#' is optional.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: bad colour %q", ErrInvalidParams, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: bad colour %q", ErrInvalidParams, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// MustParseColor is ParseColor for constants.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ToRGBA converts c to an opaque color.RGBA.
func (c Color) ToRGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Params are the user-controlled inputs of one render.
type Params struct {
	TopText          string      `json:"top_text"`
	BottomText       string      `json:"bottom_text"`
	Font             string      `json:"font"`
	FontSize         int         `json:"font_size"`
	FillColor        Color       `json:"fill_color"`
	OutlineColor     Color       `json:"outline_color"`
	OutlineThickness int         `json:"outline_thickness"`
	OutlineMode      OutlineMode `json:"outline_mode"`
}

// DefaultParams are the settings a fresh editing session starts with.
func DefaultParams() Params {
	return Params{
		TopText:          "NEON MEME",
		BottomText:       "GENERATOR",
		Font:             "impact.ttf",
		FontSize:         48,
		FillColor:        MustParseColor("#00FFFF"),
		OutlineColor:     MustParseColor("#FFFF00"),
		OutlineThickness: 2,
		OutlineMode:      OutlineOffset,
	}
}

// Limits bound the numeric parameters.
type Limits struct {
	MaxFontSize int
	MaxOutline  int
}

// DefaultLimits matches the shipped configuration.
func DefaultLimits() Limits {
	return Limits{MaxFontSize: 300, MaxOutline: 20}
}

// Normalize returns p with its outline mode in canonical form. Unknown
// modes are kept so Validate can reject them.
func (p Params) Normalize() Params {
	if m, err := ParseOutlineMode(string(p.OutlineMode)); err == nil {
		p.OutlineMode = m
	}
	return p
}

// Validate checks p against l.
func (p Params) Validate(l Limits) error {
	if p.FontSize < 1 || p.FontSize > l.MaxFontSize {
		return fmt.Errorf("%w: font size %d outside 1..%d", ErrInvalidParams, p.FontSize, l.MaxFontSize)
	}
	if p.OutlineThickness < 0 || p.OutlineThickness > l.MaxOutline {
		return fmt.Errorf("%w: outline thickness %d outside 0..%d", ErrInvalidParams, p.OutlineThickness, l.MaxOutline)
	}
	if _, err := ParseOutlineMode(string(p.OutlineMode)); err != nil {
		return err
	}
	return nil
}
