package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/maternal-risk/platform/pkg/common/config"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/gateway/middleware"
	"github.com/maternal-risk/platform/pkg/normalizer"
	"github.com/maternal-risk/platform/pkg/terminology"
)

const normalizerPort = "8084"

func main() {
	logger.Init()
	cfg := config.Load()

	catalog, err := terminology.Load(cfg.VocabularyPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.VocabularyPath).Warn("Vocabulary catalog unavailable, using defaults")
		catalog = terminology.DefaultCatalog()
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.BodyLimit(cfg.MaxUploadBytes))
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	normalizer.NewService(catalog, cfg.MaxUploadBytes).Register(router.PathPrefix("/api/v1").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, normalizerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": normalizerPort,
		}).Info("Normalizer Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Normalizer Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Normalizer Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
