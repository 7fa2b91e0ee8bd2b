package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/neonmeme/internal/render"
	"github.com/timmy/neonmeme/internal/service"
)

// UploadField is the multipart field carrying an uploaded image.
const UploadField = "image"

// SessionHandler handles the editing session endpoints.
type SessionHandler struct {
	memeService *service.MemeService
}

// NewSessionHandler creates a new session handler.
// Parameters:
//   - memeService: meme service instance.
//
// Returns:
//   - *SessionHandler: initialized handler.
func NewSessionHandler(memeService *service.MemeService) *SessionHandler {
	return &SessionHandler{memeService: memeService}
}

// SelectTemplateRequest is the body of POST /sessions/:id/template.
type SelectTemplateRequest struct {
	Name string `json:"name" binding:"required"`
}

// ImportRequest is the body of POST /sessions/:id/import.
type ImportRequest struct {
	URL string `json:"url" binding:"required"`
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	c.JSON(http.StatusCreated, h.memeService.CreateSession(c.Request.Context()))
}

// Get handles GET /api/v1/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	st, err := h.memeService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Delete handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.memeService.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectTemplate handles POST /api/v1/sessions/:id/template.
func (h *SessionHandler) SelectTemplate(c *gin.Context) {
	var req SelectTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	st, err := h.memeService.SelectTemplate(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Upload handles POST /api/v1/sessions/:id/upload (multipart field "image").
func (h *SessionHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile(UploadField)
	if err != nil {
		badRequest(c, fmt.Sprintf("Missing %q file: %v", UploadField, err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Unreadable upload: "+err.Error())
		return
	}
	defer f.Close()

	st, err := h.memeService.Upload(c.Request.Context(), c.Param("id"), fh.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Import handles POST /api/v1/sessions/:id/import.
func (h *SessionHandler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	st, err := h.memeService.ImportURL(c.Request.Context(), c.Param("id"), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateParams handles PUT /api/v1/sessions/:id/params. Omitted fields keep
// their value.
func (h *SessionHandler) UpdateParams(c *gin.Context) {
	var patch service.ParamsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid parameters: "+err.Error())
		return
	}

	st, err := h.memeService.UpdateParams(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Generate handles POST /api/v1/sessions/:id/generate.
func (h *SessionHandler) Generate(c *gin.Context) {
	st, err := h.memeService.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Undo handles POST /api/v1/sessions/:id/undo.
func (h *SessionHandler) Undo(c *gin.Context) {
	st, undone, err := h.memeService.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"undone":  undone,
		"session": st,
	})
}

// Image handles GET /api/v1/sessions/:id/image.
func (h *SessionHandler) Image(c *gin.Context) {
	h.writePNG(c, false)
}

// Download handles GET /api/v1/sessions/:id/download.
func (h *SessionHandler) Download(c *gin.Context) {
	h.writePNG(c, true)
}

func (h *SessionHandler) writePNG(c *gin.Context, attachment bool) {
	data, err := h.memeService.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	if attachment {
		c.Header("Content-Disposition", "attachment; filename="+render.DownloadName)
	}
	c.Data(http.StatusOK, render.ContentType, data)
}
