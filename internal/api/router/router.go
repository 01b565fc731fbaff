package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/engagement/config"
	_ "github.com/d60-Lab/engagement/docs"
	"github.com/d60-Lab/engagement/internal/api/handler"
	"github.com/d60-Lab/engagement/internal/api/middleware"
	"github.com/d60-Lab/engagement/pkg/metrics"
)

// New 注册全部路由
func New(cfg *config.Config, h *handler.Handler) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.RequestLogger(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
	)
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.POST("/likes", h.ToggleLike)
	r.GET("/likes", h.IsLiked)
	r.POST("/savedClips", h.ToggleSave)
	r.POST("/follows", h.ToggleFollow)
	r.POST("/messages", h.SendMessage)

	authed := r.Group("/", middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer))
	{
		authed.GET("/conversations", h.ListConversations)
		authed.POST("/conversations", h.CreateConversation)
		authed.GET("/conversations/:id", h.GetConversation)
		authed.POST("/messages/read", h.MarkRead)
		authed.POST("/admin/popularity/run", middleware.AdminOnly(cfg.JWT.Admins), h.RunPopularity)
	}
	return r
}

// WithCORS 在 gin 之外包一层 CORS
func WithCORS(cfg config.ServerConfig, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(next)
}
