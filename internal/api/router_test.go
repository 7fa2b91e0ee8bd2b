package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/neonmeme/internal/catalog"
	"github.com/timmy/neonmeme/internal/config"
	"github.com/timmy/neonmeme/internal/logger"
	"github.com/timmy/neonmeme/internal/render"
	"github.com/timmy/neonmeme/internal/service"
	"github.com/timmy/neonmeme/internal/session"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 128, 128, 128, 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T, templates catalog.StaticProvider) *testServer {
	t.Helper()
	store := session.NewStore(time.Hour)
	svc := service.NewMemeService(
		templates,
		catalog.StaticProvider{},
		render.NewRenderer(nil, render.DefaultLimits()),
		store,
		service.NewImageImporter(&service.ImporterConfig{MaxBytes: 1 << 20}),
		&service.MemeConfig{MaxUploadBytes: 1 << 20, Defaults: render.DefaultParams()},
	)
	cfg := &config.ServerConfig{Mode: "test", CORS: config.CORSConfig{AllowAllOrigins: true}}
	return &testServer{t: t, router: SetupRouter(svc, store, cfg, logger.Discard())}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) createSession() string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(s.t, http.StatusCreated, w.Code)
	return decode(s.t, w)["id"].(string)
}

func TestHealthAndIndex(t *testing.T) {
	s := newTestServer(t, catalog.StaticProvider{})

	w := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NEON MEME GENERATOR")
}

func TestTemplates(t *testing.T) {
	s := newTestServer(t, catalog.StaticProvider{"gray.png": pngBytes(t, 10, 10)})

	w := s.do(http.MethodGet, "/api/v1/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = s.do(http.MethodGet, "/api/v1/templates/gray.png", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(http.MethodGet, "/api/v1/templates/nope.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	empty := newTestServer(t, catalog.StaticProvider{})
	w = empty.do(http.MethodGet, "/api/v1/templates", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w)["error"], "no templates")
}

func TestFontsWarnWhenEmpty(t *testing.T) {
	s := newTestServer(t, catalog.StaticProvider{})

	w := s.do(http.MethodGet, "/api/v1/fonts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Empty(t, body["fonts"])
	assert.Contains(t, body["warning"], render.FallbackFontName)
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t, catalog.StaticProvider{"gray.png": pngBytes(t, 200, 150)})
	id := s.createSession()
	base := "/api/v1/sessions/" + id

	w := s.do(http.MethodPost, base+"/generate", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "no base image yet")

	w = s.do(http.MethodGet, base+"/download", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, base+"/template", map[string]string{"name": "gray.png"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["history_len"])

	w = s.do(http.MethodPut, base+"/params", map[string]interface{}{"top_text": "HI", "outline_thickness": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	params := decode(t, w)["params"].(map[string]interface{})
	assert.Equal(t, "HI", params["top_text"])
	assert.Equal(t, "GENERATOR", params["bottom_text"])

	w = s.do(http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode(t, w)
	assert.EqualValues(t, 2, st["history_len"])
	assert.Equal(t, render.FallbackFontName, st["font"])
	assert.NotEmpty(t, st["warnings"], "impact.ttf is not in the empty font catalog")

	w = s.do(http.MethodGet, base+"/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=neon_meme.png", w.Header().Get("Content-Disposition"))
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	w = s.do(http.MethodGet, base+"/image", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	w = s.do(http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["undone"])

	w = s.do(http.MethodPost, base+"/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["undone"])

	w = s.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, catalog.StaticProvider{"gray.png": pngBytes(t, 20, 20)})
	id := s.createSession()
	base := "/api/v1/sessions/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"template without name", http.MethodPost, base + "/template", map[string]string{}, http.StatusBadRequest},
		{"unknown template", http.MethodPost, base + "/template", map[string]string{"name": "x.png"}, http.StatusNotFound},
		{"negative thickness", http.MethodPut, base + "/params", map[string]int{"outline_thickness": -1}, http.StatusBadRequest},
		{"bad colour", http.MethodPut, base + "/params", map[string]string{"fill_color": "blue"}, http.StatusBadRequest},
		{"bad mode", http.MethodPut, base + "/params", map[string]string{"outline_mode": "zigzag"}, http.StatusBadRequest},
		{"bad import url", http.MethodPost, base + "/import", map[string]string{"url": "file:///etc/passwd"}, http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/api/v1/sessions/nope/generate", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, catalog.StaticProvider{})
	id := s.createSession()

	upload := func(filename string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/upload", &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, r)
		return w
	}

	w := upload("cat.jpg.png", pngBytes(t, 33, 22))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decode(t, w)
	assert.EqualValues(t, 33, st["width"])
	assert.Equal(t, "upload", st["source"].(map[string]interface{})["kind"])

	w = upload("notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload("broken.png", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/upload", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, catalog.StaticProvider{})

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	r.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}
