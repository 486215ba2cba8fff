package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"taskhub/internal/config"
	"taskhub/internal/observability"
)

// InitAndServe loads the configuration at confPath, serves until SIGINT or
// SIGTERM and shuts down gracefully.
func InitAndServe(confPath string) {
	boot := observability.NewLogger("info", "text", os.Stderr)
	cfg := config.Load(confPath, boot)
	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	log.Debug(cfg.String())

	setGinMode(cfg.ApiGinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTelEndpoint, serviceName, log)
	if err != nil {
		log.WithError(err).Warn("tracing could not be initialized")
	}

	backends, err := Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("could not open the backends")
	}
	srv, err := New(cfg, log, backends)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	srv.Start()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: time.Second * 5,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s", err)
		}
	}()

	<-ctx.Done()

	stop()
	log.Info("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("background shutdown incomplete")
	}
	if err := shutdownTracing(ctx); err != nil {
		log.WithError(err).Warn("failed to flush traces")
	}

	log.Info("server exiting")
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "envgin":
		gin.SetMode(gin.EnvGinMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}
