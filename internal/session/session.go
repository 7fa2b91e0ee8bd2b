package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/timmy/neonmeme/internal/render"
)

// ErrNoImage is returned by actions that need a base image before one has
// been selected.
var ErrNoImage = errors.New("no image selected")

// SourceKind says where a session's base image came from.
type SourceKind string

const (
	SourceTemplate SourceKind = "template"
	SourceUpload   SourceKind = "upload"
	SourceURL      SourceKind = "url"
)

// Source identifies the current base image.
type Source struct {
	Kind SourceKind `json:"kind"`
	Name string     `json:"name"`
}

// Renderer is what a session needs to generate a meme.
type Renderer interface {
	Render(ctx context.Context, base image.Image, p render.Params) (*render.Result, error)
}

// Session is one client's editing context: the selected base image, the
// current parameters and the history of generated images. All methods are
// safe for concurrent use; actions on one session are serialised.
type Session struct {
	mu sync.Mutex

	id       string
	source   *Source
	base     *image.RGBA
	history  []*image.RGBA
	params   render.Params
	warnings []string
	captions []render.Placement
	font     string

	now       func() time.Time
	createdAt time.Time
	updatedAt time.Time
}

// newSession creates a session stamped by clock, the same clock its store
// expires it against.
func newSession(id string, params render.Params, clock func() time.Time) *Session {
	now := clock()
	return &Session{
		id:        id,
		params:    params,
		now:       clock,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetBase replaces the base image with an RGB copy of img and resets the
// history to that single entry.
func (s *Session) SetBase(src Source, img image.Image) {
	base := render.ToRGB(img)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.source = &src
	s.base = base
	s.history = []*image.RGBA{base}
	s.warnings = nil
	s.captions = nil
	s.font = ""
	s.updatedAt = s.now()
}

// Params returns the current render parameters.
func (s *Session) Params() render.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams replaces the render parameters. They are validated on generate.
func (s *Session) SetParams(p render.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	s.updatedAt = s.now()
}

// Generate renders the current parameters over the base image, appends the
// result to the history and makes it current. Earlier renders are never
// composited into the new one.
func (s *Session) Generate(ctx context.Context, r Renderer) (*render.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.base == nil {
		return nil, ErrNoImage
	}

	res, err := r.Render(ctx, s.base, s.params)
	if err != nil {
		return nil, err
	}

	s.history = append(s.history, res.Image)
	s.warnings = res.Warnings
	s.captions = res.Captions
	s.font = res.Font
	s.updatedAt = s.now()
	return res, nil
}

// Undo drops the newest history entry. It is a no-op, returning false, when
// only the base image is left.
func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.base == nil {
		return false, ErrNoImage
	}
	if len(s.history) <= 1 {
		return false, nil
	}

	s.history[len(s.history)-1] = nil
	s.history = s.history[:len(s.history)-1]
	s.captions = nil
	s.updatedAt = s.now()
	return true, nil
}

// Current returns the newest history entry. Callers must not modify it.
func (s *Session) Current() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return nil, ErrNoImage
	}
	return s.history[len(s.history)-1], nil
}

// HistoryLen returns the number of history entries, base included.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// idleBefore reports whether s was last active before cutoff. A session
// whose lock is held is in use and never idle, so the check never waits.
func (s *Session) idleBefore(cutoff time.Time) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	return s.updatedAt.Before(cutoff)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.updatedAt = now
	s.mu.Unlock()
}

// State is the serialisable view of a session.
type State struct {
	ID         string             `json:"id"`
	Source     *Source            `json:"source,omitempty"`
	HasImage   bool               `json:"has_image"`
	Width      int                `json:"width,omitempty"`
	Height     int                `json:"height,omitempty"`
	HistoryLen int                `json:"history_len"`
	CanUndo    bool               `json:"can_undo"`
	Params     render.Params      `json:"params"`
	Font       string             `json:"font,omitempty"`
	Captions   []render.Placement `json:"captions,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// State snapshots the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:         s.id,
		HistoryLen: len(s.history),
		CanUndo:    len(s.history) > 1,
		Params:     s.params,
		Font:       s.font,
		Captions:   append([]render.Placement(nil), s.captions...),
		Warnings:   append([]string(nil), s.warnings...),
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	}
	if s.source != nil {
		src := *s.source
		st.Source = &src
	}
	if s.base != nil {
		b := s.base.Bounds()
		st.HasImage = true
		st.Width, st.Height = b.Dx(), b.Dy()
	}
	return st
}
