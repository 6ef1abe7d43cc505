package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"surge-service/internal/api"
	"surge-service/internal/config"
	"surge-service/internal/repo"
	"surge-service/internal/service"
	"surge-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Config
	config.LoadConfig(configPath)
	cfg := config.GlobalConfig

	// 2. Init Logger
	logger.InitLogger(cfg.Server.Mode)
	defer logger.Log.Sync()

	logger.Log.Info("Starting server...", zap.String("mode", cfg.Server.Mode))

	// 3. Init DB & Redis; the ledger is only needed when settling on chain
	var db *gorm.DB
	if cfg.Settlement.Enabled {
		repo.InitDB()
		db = repo.DB
	}
	repo.InitRedis()

	// 4. Init Services
	services := service.NewContainer(cfg, db, repo.RDB)
	if err := services.Start(ctx); err != nil {
		logger.Log.Fatal("failed to start services", zap.Error(err))
	}

	// 5. Init Router
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.RegisterRoutes(r, services, cfg)

	// 6. Start Server; a bind failure is fatal
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Log.Fatal("Server failed to start", zap.String("addr", addr), zap.Error(err))
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", addr))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("HTTP shutdown", zap.Error(err))
	}
	services.Stop()
	if repo.RDB != nil {
		_ = repo.RDB.Close()
	}
	logger.Log.Info("Server exited")
}
