package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/guard-forms/internal/middleware"
	"github.com/noah-isme/guard-forms/internal/service"
	"github.com/noah-isme/guard-forms/pkg/logger"
	corsmiddleware "github.com/noah-isme/guard-forms/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/guard-forms/pkg/middleware/requestid"
)

// RouterConfig carries everything the gateway routes need.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	Docs           bool
	MaxUploadBytes int64

	Logger  *zap.Logger
	Metrics *service.MetricsService
	CSRF    *service.CSRFService

	CSRFHandler     *CSRFHandler
	FormHandler     *FormHandler
	SessionHandler  *SessionHandler
	ListHandler     *ListHandler
	DownloadHandler *DownloadHandler
	MetricsHandler  *MetricsHandler
}

// NewRouter assembles the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if cfg.Logger != nil {
		r.Use(logger.GinMiddleware(cfg.Logger))
	}
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.MetricsHandler != nil {
		r.GET("/health", cfg.MetricsHandler.Health)
		r.GET("/ready", cfg.MetricsHandler.Ready)
		if cfg.Metrics != nil {
			r.GET("/metrics", cfg.MetricsHandler.Prometheus)
		}
	}
	if cfg.Docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	if cfg.CSRF != nil {
		api.Use(middleware.CSRF(cfg.CSRF))
	}

	if h := cfg.CSRFHandler; h != nil {
		api.GET("/csrf", h.Token)
	}
	if h := cfg.FormHandler; h != nil {
		api.GET("/forms", h.List)
		api.GET("/forms/:form", h.Get)
		api.POST("/forms/:form/validate", h.Validate)
		api.POST("/forms/:form/input", h.Input)
	}
	if h := cfg.SessionHandler; h != nil {
		api.POST("/sessions", h.Open)
		api.GET("/sessions/:id", h.Get)
		api.DELETE("/sessions/:id", h.Close)
		api.POST("/sessions/:id/events/:event", h.Event)
		api.POST("/sessions/:id/attachments", h.AddAttachment)
		api.DELETE("/sessions/:id/attachments/:localId", h.RemoveAttachment)
		api.POST("/sessions/:id/submit", h.Submit)
	}
	if h := cfg.ListHandler; h != nil {
		api.GET("/lists/:kind", h.List)
		api.GET("/lists/:kind/export", h.Export)
		api.POST("/lists/:kind/select/:id", h.Select)
		api.DELETE("/lists/:kind/select", h.ClearSelection)
		api.DELETE("/views/:view", h.CloseView)
	}
	if h := cfg.DownloadHandler; h != nil {
		api.GET("/downloads/:token", h.Download)
	}

	return r
}
