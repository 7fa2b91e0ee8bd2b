package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// FallbackFontName names the built-in face used whenever the requested font
// cannot be loaded. Warnings quote this name, and it is the face actually
// drawn.
const FallbackFontName = "Go Bold"

// FontSource opens font files by name. catalog.Provider satisfies it.
type FontSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// FontResult is a resolved face. Warning is set when the fallback was used.
type FontResult struct {
	Face    font.Face
	Name    string
	Warning string
}

// FontSet loads and caches parsed fonts from a FontSource. Faces are created
// per call because a font.Face must not be shared between goroutines.
type FontSet struct {
	source FontSource

	mu     sync.Mutex
	parsed map[string]*opentype.Font
}

// NewFontSet returns a FontSet reading from source. A nil source always
// yields the fallback font.
func NewFontSet(source FontSource) *FontSet {
	return &FontSet{
		source: source,
		parsed: make(map[string]*opentype.Font),
	}
}

var (
	fallbackOnce sync.Once
	fallbackFont *opentype.Font
	fallbackErr  error
)

func fallback() (*opentype.Font, error) {
	fallbackOnce.Do(func() {
		fallbackFont, fallbackErr = opentype.Parse(gobold.TTF)
	})
	return fallbackFont, fallbackErr
}

// Face resolves name at size pixels. Load failures are not errors: they
// produce the fallback face plus a warning. The only error is a broken
// fallback, which cannot happen with the embedded font.
func (s *FontSet) Face(ctx context.Context, name string, size int) (*FontResult, error) {
	f, loadErr := s.load(ctx, name)
	used := name
	warning := ""
	if loadErr != nil {
		fb, err := fallback()
		if err != nil {
			return nil, fmt.Errorf("failed to parse fallback font: %w", err)
		}
		f = fb
		used = FallbackFontName
		warning = fmt.Sprintf("Error loading font %q: %v. Using %s.", name, loadErr, FallbackFontName)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face for %q: %w", used, err)
	}

	return &FontResult{Face: face, Name: used, Warning: warning}, nil
}

func (s *FontSet) load(ctx context.Context, name string) (*opentype.Font, error) {
	if name == "" {
		return nil, fmt.Errorf("no font selected")
	}
	if s == nil || s.source == nil {
		return nil, fmt.Errorf("no font source configured")
	}

	s.mu.Lock()
	f, ok := s.parsed[name]
	s.mu.Unlock()
	if ok {
		return f, nil
	}

	rc, err := s.source.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	f, err = opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	s.mu.Lock()
	s.parsed[name] = f
	s.mu.Unlock()

	return f, nil
}
