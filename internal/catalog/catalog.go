package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a name is not in a provider's listing.
	ErrNotFound = errors.New("resource not found")
	// ErrNoTemplates is returned by Gallery when no template is available.
	ErrNoTemplates = errors.New("no templates available")
)

// DefaultGalleryLimit is how many templates the gallery offers.
const DefaultGalleryLimit = 9

var (
	// TemplateExtensions are the accepted template image extensions.
	TemplateExtensions = []string{".jpg", ".jpeg", ".png"}
	// FontExtensions are the accepted font file extensions.
	FontExtensions = []string{".ttf"}
)

// Resource is a named file offered by a provider.
type Resource struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Provider lists named resources and opens them by name.
type Provider interface {
	// List returns the available resources sorted by name.
	List(ctx context.Context) ([]Resource, error)

	// Open returns the content of a listed resource. Unknown names yield
	// an error wrapping ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Gallery returns the first limit templates of p. A limit <= 0 means
// DefaultGalleryLimit.
func Gallery(ctx context.Context, p Provider, limit int) ([]Resource, error) {
	if limit <= 0 {
		limit = DefaultGalleryLimit
	}

	items, err := p.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoTemplates
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// InGallery returns nil when name is one of the templates Gallery offers,
// ErrNotFound when it is not, and ErrNoTemplates when nothing is offered.
func InGallery(ctx context.Context, p Provider, limit int, name string) error {
	items, err := Gallery(ctx, p, limit)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.Name == name {
			return nil
		}
	}
	return notFound(name)
}

// Names returns the names of items in order.
func Names(items []Resource) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return names
}

// HasExtension reports whether name ends in one of exts, ignoring case.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// acceptable reports whether name is a visible plain base name with one of
// exts.
func acceptable(name string, exts []string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return HasExtension(name, exts)
}

func sortResources(items []Resource) {
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}
