package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drug-crossref/internal/api"
	"drug-crossref/internal/core/pipeline"
	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.Bool("pubchem", cfg.Resolver.PubChem.Enabled),
		zap.Bool("translator", cfg.Resolver.Translator.Enabled),
		zap.Bool("redis", cfg.Cache.Redis.Enabled),
		zap.String("registry", cfg.Registry.Path),
	)

	ctx := context.Background()
	components, err := pipeline.NewFromConfig(ctx, cfg)
	if err != nil {
		common.LogFatal("Failed to initialize pipeline", zap.Error(err))
	}
	defer components.Close()

	// 許可證資料可稍後經由 API 上傳
	if m, err := pipeline.LoadMatcher(cfg); err != nil {
		common.LogWarn("台灣許可證資料尚未載入", zap.Error(err))
	} else {
		components.Pipeline.SetMatcher(m)
	}

	router, err := api.SetupRouter(cfg, components.Pipeline, components.Store)
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}
