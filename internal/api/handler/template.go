package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/neonmeme/internal/service"
)

// TemplateHandler serves the template gallery and the font list.
type TemplateHandler struct {
	memeService *service.MemeService
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(memeService *service.MemeService) *TemplateHandler {
	return &TemplateHandler{memeService: memeService}
}

// ListTemplates handles GET /api/v1/templates.
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	items, err := h.memeService.Gallery(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"templates": items,
		"total":     len(items),
	})
}

// GetTemplate handles GET /api/v1/templates/:name and returns the image.
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	data, contentType, err := h.memeService.OpenTemplate(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}

// ListFonts handles GET /api/v1/fonts.
func (h *TemplateHandler) ListFonts(c *gin.Context) {
	list, err := h.memeService.Fonts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
