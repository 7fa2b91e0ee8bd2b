package catalog

import (
	"bytes"
	"context"
	"io"
)

// StaticProvider serves resources held in memory, keyed by name.
type StaticProvider map[string][]byte

// List returns every entry sorted by name.
func (p StaticProvider) List(_ context.Context) ([]Resource, error) {
	items := make([]Resource, 0, len(p))
	for name, data := range p {
		items = append(items, Resource{Name: name, Size: int64(len(data))})
	}
	sortResources(items)
	return items, nil
}

func (p StaticProvider) Open(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := p[name]
	if !ok {
		return nil, notFound(name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
