package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/neonmeme/internal/api/handler"
	"github.com/timmy/neonmeme/internal/api/middleware"
	"github.com/timmy/neonmeme/internal/api/web"
	"github.com/timmy/neonmeme/internal/config"
	"github.com/timmy/neonmeme/internal/logger"
	"github.com/timmy/neonmeme/internal/service"
	"github.com/timmy/neonmeme/internal/session"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	memeService *service.MemeService,
	sessions *session.Store,
	cfg *config.ServerConfig,
	log *logger.Logger,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(sessions.Len)
	templateHandler := handler.NewTemplateHandler(memeService)
	sessionHandler := handler.NewSessionHandler(memeService)

	r.GET("/health", healthHandler.Health)
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", web.Index)
	})

	v1 := r.Group("/api/v1")
	{
		// Catalog
		v1.GET("/templates", templateHandler.ListTemplates)
		v1.GET("/templates/:name", templateHandler.GetTemplate)
		v1.GET("/fonts", templateHandler.ListFonts)

		// Sessions
		v1.POST("/sessions", sessionHandler.Create)
		s := v1.Group("/sessions/:id")
		{
			s.GET("", sessionHandler.Get)
			s.DELETE("", sessionHandler.Delete)
			s.POST("/template", sessionHandler.SelectTemplate)
			s.POST("/upload", sessionHandler.Upload)
			s.POST("/import", sessionHandler.Import)
			s.PUT("/params", sessionHandler.UpdateParams)
			s.POST("/generate", sessionHandler.Generate)
			s.POST("/undo", sessionHandler.Undo)
			s.GET("/image", sessionHandler.Image)
			s.GET("/download", sessionHandler.Download)
		}
	}

	return r
}
