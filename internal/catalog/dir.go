package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DirProvider serves the files of one directory whose extension is in exts.
// Subdirectories and hidden files are ignored.
type DirProvider struct {
	dir  string
	exts []string
}

// NewDirProvider creates a provider over dir. A missing directory lists as
// empty.
func NewDirProvider(dir string, exts ...string) *DirProvider {
	return &DirProvider{dir: dir, exts: exts}
}

// Dir returns the directory the provider reads.
func (p *DirProvider) Dir() string {
	return p.dir
}

// List returns the matching files sorted by name.
func (p *DirProvider) List(ctx context.Context) ([]Resource, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Resource{}, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", p.dir, err)
	}

	items := make([]Resource, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || !acceptable(e.Name(), p.exts) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, Resource{Name: e.Name(), Size: info.Size()})
	}

	sortResources(items)
	return items, nil
}

// Open opens a file from the listing. Names with path separators, hidden
// names and names with other extensions are treated as unknown.
func (p *DirProvider) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !acceptable(name, p.exts) {
		return nil, notFound(name)
	}

	f, err := os.Open(filepath.Join(p.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		return nil, notFound(name)
	}
	return f, nil
}
