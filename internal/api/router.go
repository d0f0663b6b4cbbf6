package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"drug-crossref/internal/api/handlers/crossref"
	"drug-crossref/internal/api/handlers/health"
	"drug-crossref/internal/api/middleware"
	"drug-crossref/internal/core/cache"
	"drug-crossref/internal/core/pipeline"
	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, p *pipeline.Pipeline, store cache.Store) (*gin.Engine, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 整批比對可能要等待外部服務重試
	timeout := cfg.Server.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New()) // 自動生成請求 ID
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID", "X-Run-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(cfg.Upload.MaxSizeBytes))

	// 全局中間件：設置超時和服務
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Set("config", cfg)
		c.Set("pipeline", p)
		c.Set("cache", store)

		c.Next()

		// 檢查是否超時
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrGatewayTimeout.Response(cfg.App.Debug))
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(common.ErrNotFound.Status, common.ErrNotFound.Response(false))
	})

	h := crossref.NewHandler(cfg, p)

	// API 路由組
	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	{
		api.POST("/reconcile", middleware.NewDeduplicator(cfg.Server.DedupWindow).Handler(), h.Reconcile)
		api.POST("/resolve", h.Resolve)
		api.POST("/match", h.Match)
		api.PUT("/registry", h.ReplaceRegistry)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("registry_loaded", p.Matcher() != nil),
		zap.String("strategy", p.Strategy().Name()),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", cfg.Upload.MaxSizeBytes),
	)

	return router, nil
}
