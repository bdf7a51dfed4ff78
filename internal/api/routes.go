// Package api exposes the processing queue over HTTP.
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"metaredact/internal/queue"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Queue          *queue.Queue
	MaxUploadBytes int64
	Version        string
}

type Handlers struct {
	Health *HealthHandler
	Files  *FilesHandler
}

func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Queue),
		Files:  NewFilesHandler(deps.Queue),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/health", handlers.Health.HandleHealth)

	files := e.Group("/api/files")
	files.POST("", handlers.Files.HandleEnqueue)
	files.GET("", handlers.Files.HandleList)
	files.DELETE("", handlers.Files.HandleClearAll)
	files.DELETE("/completed", handlers.Files.HandleClearCompleted)
	files.GET("/:id", handlers.Files.HandleGet)
	files.GET("/:id/groups", handlers.Files.HandleGroups)
}

// NewServer returns an echo instance with middleware and routes installed.
func NewServer(deps *Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))
	e.Use(requestLogger())
	if deps.MaxUploadBytes > 0 {
		e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
			Limit: byteLimit(deps.MaxUploadBytes),
		}))
	}

	RegisterRoutes(e, NewHandlers(deps))
	return e
}
