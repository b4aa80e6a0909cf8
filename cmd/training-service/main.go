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
	"github.com/maternal-risk/platform/pkg/common/database"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/gateway/auth"
	"github.com/maternal-risk/platform/pkg/gateway/middleware"
	"github.com/maternal-risk/platform/pkg/observability/metrics"
	"github.com/maternal-risk/platform/pkg/training"
)

const trainingPort = "8088"

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetDB()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	repo := training.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate training jobs")
	}

	defaults := training.Options{
		ModelName:    cfg.ModelName,
		Seed:         cfg.LabelSeed,
		TestRatio:    cfg.TrainingTestRatio,
		Epochs:       cfg.TrainingEpochs,
		LearningRate: cfg.TrainingRate,
	}
	service, err := training.NewService(repo, defaults, cfg.ModelArtifactDir, cfg.DatasetDir, cfg.TrainingWorkers)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize training service")
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTokenTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid JWT configuration")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/metrics", metrics.Handler).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Authenticate(jwtManager))
	training.NewHandler(service).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, trainingPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":         cfg.ServerHost,
			"port":         trainingPort,
			"workers":      cfg.TrainingWorkers,
			"artifact_dir": cfg.ModelArtifactDir,
			"dataset_dir":  cfg.DatasetDir,
		}).Info("Training Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Training Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	// Running jobs finish before the process exits so their status is recorded.
	service.Wait()
	if err := database.CloseDB(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close database")
	}

	logger.Log.Info("Training Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
