package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Vovanwotkd/labels-britannika/internal/api/handlers"
	"github.com/Vovanwotkd/labels-britannika/internal/api/middleware"
)

// Handlers bundles everything the router mounts. Print and job endpoints
// stay open so kitchen terminals can submit without a session; management
// endpoints sit behind the auth cookie.
type Handlers struct {
	Auth      *middleware.AuthMiddleware
	Jobs      *handlers.JobHandler
	Templates *handlers.TemplateHandler
	Printer   *handlers.PrinterHandler
	Webhooks  *handlers.WebhookHandler
	Settings  *handlers.SettingsHandler
	Archive   *handlers.ArchiveHandler
}

func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Auth.LoginHandler)
		auth.POST("/logout", h.Auth.LogoutHandler)
		auth.GET("/status", h.Auth.StatusHandler)
		auth.POST("/setup", h.Auth.SetupHandler)
		auth.POST("/change-password", h.Auth.RequireAuth(), h.Auth.ChangePasswordHandler)
	}

	h.Jobs.RegisterRoutes(v1)
	h.Printer.RegisterRoutes(v1)

	protected := v1.Group("")
	protected.Use(h.Auth.RequireAuth())
	{
		h.Templates.RegisterRoutes(protected)
		h.Webhooks.RegisterRoutes(protected)
		h.Settings.RegisterRoutes(protected)
		h.Archive.RegisterRoutes(protected)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
		Formatter: func(param gin.LogFormatterParams) string {
			return param.TimeStamp.Format(time.RFC3339) + " [http] " +
				param.Method + " " + param.Path + " " +
				param.ClientIP + " " +
				http.StatusText(param.StatusCode) + " " +
				param.Latency.String() + "\n"
		},
	})
}
