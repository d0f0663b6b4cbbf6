package health

import (
	"net/http"
	"runtime"
	"time"

	"drug-crossref/internal/core/cache"
	"drug-crossref/internal/core/pipeline"
	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *pipeline.Status       `json:"queue,omitempty"`
	Cache     *cache.Stats           `json:"cache,omitempty"`
}

// ReadinessResponse 就緒檢查響應
type ReadinessResponse struct {
	Status            string   `json:"status"`
	RegistryLoaded    bool     `json:"registry_loaded"`
	RegistryEntries   int      `json:"registry_entries"`
	DictionaryTerms   int      `json:"dictionary_terms"`
	Sources           []string `json:"sources"`
	DisabledSources   []string `json:"disabled_sources"`
	Strategy          string   `json:"strategy"`
	MatchingThreshold float64  `json:"matching_threshold"`
}

// HealthCheck 健康檢查處理器
func HealthCheck(c *gin.Context) {
	cfg, ok := c.MustGet("config").(*config.Config)
	if !ok {
		common.LogError("Invalid configuration type in context")
		c.JSON(http.StatusInternalServerError, common.ErrInternalError.Response(false))
		return
	}

	// 獲取運行時信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   cfg.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}

	if p, ok := c.Get("pipeline"); ok {
		if pooled, ok := p.(*pipeline.Pipeline).Strategy().(*pipeline.Pooled); ok {
			status := pooled.GetQueueStatus()
			response.Queue = &status
		}
	}
	if store, ok := c.Get("cache"); ok {
		if mgr, ok := store.(*cache.Manager); ok && mgr != nil {
			stats := mgr.GetStats()
			response.Cache = &stats
		}
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 許可證資料尚未載入時回傳 503
func ReadinessCheck(c *gin.Context) {
	cfg := c.MustGet("config").(*config.Config)
	p := c.MustGet("pipeline").(*pipeline.Pipeline)

	resp := ReadinessResponse{
		Status:            "ready",
		Strategy:          p.Strategy().Name(),
		MatchingThreshold: cfg.Matcher.Threshold,
	}
	if res := p.Resolver(); res != nil {
		resp.DictionaryTerms = res.DictionarySize()
		resp.Sources = res.SourceNames()
		resp.DisabledSources = res.DisabledSources()
	}
	if m := p.Matcher(); m != nil {
		resp.RegistryLoaded = true
		resp.RegistryEntries = m.Registry().Len()
		resp.MatchingThreshold = m.Threshold()
	}

	status := http.StatusOK
	if !resp.RegistryLoaded {
		resp.Status = "registry_unavailable"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
