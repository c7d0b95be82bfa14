package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulse-monitor/common/logger"
	"pulse-monitor/internal/config"
	"pulse-monitor/internal/service"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.ServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting pulse-monitor service",
		zap.Float64("factor", cfg.Analyzer.Factor),
		zap.String("source", cfg.Source.Mode),
		zap.String("store_backend", cfg.Analyzer.StoreBackend),
		zap.String("audit_backend", cfg.Analyzer.AuditBackend),
		zap.String("range_discovery", cfg.Range.Discovery),
	)

	// 创建服务
	pulseService, err := service.NewPulseService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create pulse service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- pulseService.Start(ctx)
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			zapLogger.Error("Pulse service exited", zap.Error(err))
		}
	}

	// 优雅关闭：等待当前批次处理并确认
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := pulseService.Stop(stopCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
