package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/timmy/neonmeme/internal/catalog"
	"github.com/timmy/neonmeme/internal/logger"
	"github.com/timmy/neonmeme/internal/render"
	"github.com/timmy/neonmeme/internal/session"
)

var (
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = session.ErrNotFound
	// ErrNoImage is returned when an action needs a base image first.
	ErrNoImage = session.ErrNoImage
	// ErrInvalidUpload is returned for uploads and imports that are not a
	// usable JPEG or PNG image.
	ErrInvalidUpload = errors.New("invalid image")
)

// NoFontsWarning is reported when the font catalog is empty.
var NoFontsWarning = fmt.Sprintf("No fonts found. Captions use %s.", render.FallbackFontName)

// MemeConfig holds configuration for the meme service.
type MemeConfig struct {
	GalleryLimit   int
	MaxUploadBytes int64
	// MaxPixels bounds the dimensions of uploaded and imported images.
	MaxPixels int64
	Defaults  render.Params
}

// MemeService drives editing sessions: it picks base images from the
// template catalog, uploads or URLs, and renders memes over them.
type MemeService struct {
	templates catalog.Provider
	fonts     catalog.Provider
	renderer  *render.Renderer
	sessions  *session.Store
	importer  *ImageImporter
	cfg       MemeConfig
}

// NewMemeService creates a new meme service.
// Parameters:
//   - templates: catalog of template images.
//   - fonts: catalog of font files.
//   - renderer: renderer used for every generate.
//   - sessions: store holding the editing sessions.
//   - importer: downloader for images by URL; nil disables import.
//   - cfg: gallery size, upload limit and default parameters.
//
// Returns:
//   - *MemeService: initialized service.
func NewMemeService(
	templates catalog.Provider,
	fonts catalog.Provider,
	renderer *render.Renderer,
	sessions *session.Store,
	importer *ImageImporter,
	cfg *MemeConfig,
) *MemeService {
	c := *cfg
	if c.GalleryLimit <= 0 {
		c.GalleryLimit = catalog.DefaultGalleryLimit
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = render.DefaultMaxPixels
	}
	return &MemeService{
		templates: templates,
		fonts:     fonts,
		renderer:  renderer,
		sessions:  sessions,
		importer:  importer,
		cfg:       c,
	}
}

// FontList is the font catalog as offered to clients.
type FontList struct {
	Fonts    []string `json:"fonts"`
	Default  string   `json:"default"`
	Fallback string   `json:"fallback"`
	Warning  string   `json:"warning,omitempty"`
}

// Gallery returns the templates offered for selection.
func (s *MemeService) Gallery(ctx context.Context) ([]catalog.Resource, error) {
	return catalog.Gallery(ctx, s.templates, s.cfg.GalleryLimit)
}

// OpenTemplate returns a template's bytes and media type.
func (s *MemeService) OpenTemplate(ctx context.Context, name string) ([]byte, string, error) {
	data, err := s.readResource(ctx, s.templates, name)
	if err != nil {
		return nil, "", err
	}
	return data, contentTypeFor(name), nil
}

// Fonts lists the available fonts. An empty catalog is not an error: the
// list carries a warning and rendering falls back to the built-in font.
func (s *MemeService) Fonts(ctx context.Context) (*FontList, error) {
	items, err := s.fonts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fonts: %w", err)
	}

	list := &FontList{
		Fonts:    catalog.Names(items),
		Default:  s.cfg.Defaults.Font,
		Fallback: render.FallbackFontName,
	}
	if len(list.Fonts) == 0 {
		list.Warning = NoFontsWarning
		logger.CtxWarn(ctx, "%s", NoFontsWarning)
	}
	return list, nil
}

// CreateSession starts a session with the default parameters.
func (s *MemeService) CreateSession(ctx context.Context) session.State {
	sess := s.sessions.Create(s.cfg.Defaults)
	logger.FromContext(ctx).WithField(logger.FieldSessionID, sess.ID()).Info("Session created")
	return sess.State()
}

// GetSession returns the state of a session.
func (s *MemeService) GetSession(_ context.Context, id string) (session.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, err
	}
	return sess.State(), nil
}

// DeleteSession ends a session and drops its history.
func (s *MemeService) DeleteSession(ctx context.Context, id string) error {
	if !s.sessions.Delete(id) {
		return ErrSessionNotFound
	}
	logger.FromContext(ctx).WithField(logger.FieldSessionID, id).Info("Session deleted")
	return nil
}

// SelectTemplate makes a gallery template the session's base image. Only
// templates offered by Gallery can be selected.
func (s *MemeService) SelectTemplate(ctx context.Context, id, name string) (session.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, err
	}

	if err := catalog.InGallery(ctx, s.templates, s.cfg.GalleryLimit, name); err != nil {
		return session.State{}, err
	}
	data, err := s.readResource(ctx, s.templates, name)
	if err != nil {
		return session.State{}, err
	}
	img, _, err := render.DecodeBounded(data, s.cfg.MaxPixels)
	if err != nil {
		return session.State{}, fmt.Errorf("failed to decode template %q: %w", name, err)
	}

	sess.SetBase(session.Source{Kind: session.SourceTemplate, Name: name}, img)
	logSelection(ctx, sess, logger.Fields{logger.FieldTemplate: name})
	return sess.State(), nil
}

// Upload makes an uploaded JPEG or PNG the session's base image.
// Parameters:
//   - ctx: request context.
//   - id: session id.
//   - filename: client file name; its extension must be .jpg, .jpeg or .png.
//   - r: file content.
//
// Returns:
//   - session.State: state after the selection.
//   - error: ErrInvalidUpload for bad files, ErrSessionNotFound for bad ids.
func (s *MemeService) Upload(ctx context.Context, id, filename string, r io.Reader) (session.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, err
	}

	if !catalog.HasExtension(filename, catalog.TemplateExtensions) {
		return session.State{}, fmt.Errorf("%w: %q is not a jpg, jpeg or png file", ErrInvalidUpload, filename)
	}
	data, err := readLimited(r, s.cfg.MaxUploadBytes)
	if err != nil {
		return session.State{}, err
	}
	img, err := decodeUpload(data, s.cfg.MaxPixels)
	if err != nil {
		return session.State{}, err
	}

	sess.SetBase(session.Source{Kind: session.SourceUpload, Name: path.Base(filename)}, img)
	logSelection(ctx, sess, logger.Fields{logger.FieldSize: len(data)})
	return sess.State(), nil
}

// ImportURL downloads an image and makes it the session's base image.
func (s *MemeService) ImportURL(ctx context.Context, id, rawURL string) (session.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, err
	}
	if s.importer == nil {
		return session.State{}, fmt.Errorf("%w: import by url is disabled", ErrInvalidUpload)
	}

	data, err := s.importer.Fetch(ctx, rawURL)
	if err != nil {
		return session.State{}, err
	}
	img, err := decodeUpload(data, s.cfg.MaxPixels)
	if err != nil {
		return session.State{}, err
	}

	sess.SetBase(session.Source{Kind: session.SourceURL, Name: rawURL}, img)
	logSelection(ctx, sess, logger.Fields{logger.FieldSize: len(data)})
	return sess.State(), nil
}

// UpdateParams applies patch to the session's parameters. The result must
// be valid; an invalid patch leaves the parameters unchanged.
func (s *MemeService) UpdateParams(_ context.Context, id string, patch ParamsPatch) (session.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, err
	}

	p := patch.Apply(sess.Params()).Normalize()
	if err := p.Validate(s.renderer.Limits()); err != nil {
		return session.State{}, err
	}
	sess.SetParams(p)
	return sess.State(), nil
}

// Generate renders the session's parameters over its base image and appends
// the result to the history.
func (s *MemeService) Generate(ctx context.Context, id string) (session.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, err
	}

	if _, err := sess.Generate(ctx, s.renderer); err != nil {
		return session.State{}, err
	}

	st := sess.State()
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldSessionID: id,
		logger.FieldHistory:   st.HistoryLen,
		logger.FieldFont:      st.Font,
	}).Info("Meme generated")
	return st, nil
}

// Undo drops the newest generated image. Undoing at the base image is a
// no-op and reports false.
func (s *MemeService) Undo(ctx context.Context, id string) (session.State, bool, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, false, err
	}

	undone, err := sess.Undo()
	if err != nil {
		return session.State{}, false, err
	}
	st := sess.State()
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldSessionID: id,
		logger.FieldHistory:   st.HistoryLen,
	})
	if !undone {
		log.Debug("Nothing to undo")
	} else {
		log.Info("Undid last generate")
	}
	return st, undone, nil
}

// Export returns the session's current image as PNG.
func (s *MemeService) Export(ctx context.Context, id string) ([]byte, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	img, err := sess.Current()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := render.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldSessionID: id,
		logger.FieldSize:      len(data),
	}).Since(start).Info(ctx, "Meme exported")
	return data, nil
}

func (s *MemeService) readResource(ctx context.Context, p catalog.Provider, name string) ([]byte, error) {
	rc, err := p.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}
	return data, nil
}

// ParamsPatch is a partial update of render.Params. Nil fields are kept.
type ParamsPatch struct {
	TopText          *string             `json:"top_text"`
	BottomText       *string             `json:"bottom_text"`
	Font             *string             `json:"font"`
	FontSize         *int                `json:"font_size"`
	FillColor        *render.Color       `json:"fill_color"`
	OutlineColor     *render.Color       `json:"outline_color"`
	OutlineThickness *int                `json:"outline_thickness"`
	OutlineMode      *render.OutlineMode `json:"outline_mode"`
}

// Apply returns p with the patch's non-nil fields set.
func (pp ParamsPatch) Apply(p render.Params) render.Params {
	if pp.TopText != nil {
		p.TopText = *pp.TopText
	}
	if pp.BottomText != nil {
		p.BottomText = *pp.BottomText
	}
	if pp.Font != nil {
		p.Font = *pp.Font
	}
	if pp.FontSize != nil {
		p.FontSize = *pp.FontSize
	}
	if pp.FillColor != nil {
		p.FillColor = *pp.FillColor
	}
	if pp.OutlineColor != nil {
		p.OutlineColor = *pp.OutlineColor
	}
	if pp.OutlineThickness != nil {
		p.OutlineThickness = *pp.OutlineThickness
	}
	if pp.OutlineMode != nil {
		p.OutlineMode = *pp.OutlineMode
	}
	return p
}

func decodeUpload(data []byte, maxPixels int64) (image.Image, error) {
	img, _, err := render.DecodeBounded(data, maxPixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}
	return img, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func logSelection(ctx context.Context, sess *session.Session, fields logger.Fields) {
	st := sess.State()
	fields[logger.FieldSessionID] = st.ID
	fields[logger.FieldWidth] = st.Width
	fields[logger.FieldHeight] = st.Height
	logger.FromContext(ctx).WithFields(fields).Info("Base image selected")
}
