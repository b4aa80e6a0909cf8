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
	"github.com/maternal-risk/platform/pkg/common/kafka"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/gateway/auth"
	"github.com/maternal-risk/platform/pkg/gateway/middleware"
	"github.com/maternal-risk/platform/pkg/identity"
	"github.com/maternal-risk/platform/pkg/observability/metrics"
	"github.com/maternal-risk/platform/pkg/serving"
	"github.com/maternal-risk/platform/pkg/serving/predictor"
	"github.com/maternal-risk/platform/pkg/terminology"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetDB()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	userRepo := identity.NewRepository(db)
	if err := userRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate users")
	}
	recordRepo := serving.NewRepository(db)
	if err := recordRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate patient records")
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTokenTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid JWT configuration")
	}

	catalog, err := terminology.Load(cfg.VocabularyPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.VocabularyPath).Warn("Vocabulary catalog unavailable, using defaults")
		catalog = terminology.DefaultCatalog()
	}

	var events, dlq kafka.Publisher
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(cfg, cfg.PredictionTopic)
		defer producer.Close()
		dlqProducer := kafka.NewProducer(cfg, cfg.PredictionDLQ)
		defer dlqProducer.Close()
		events, dlq = producer, dlqProducer
	}

	identityService := identity.NewService(userRepo, jwtManager)
	identityHandler := identity.NewHandler(identityService)

	riskService := serving.NewService(predictor.NewPredictor(cfg.ModelArtifactDir), recordRepo, events, dlq, catalog, cfg.ModelName)
	riskHandler := serving.NewHandler(riskService, cfg.MaxUploadBytes)

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxUploadBytes))

	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/metrics", metrics.Handler).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	identityHandler.Register(apiRouter)

	protected := apiRouter.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(jwtManager))
	identityHandler.RegisterProtected(protected)
	riskHandler.Register(protected)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      middleware.CORS(cfg.AllowedOrigins)(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"model": cfg.ModelName,
			"kafka": cfg.KafkaEnabled,
		}).Info("Risk Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Risk Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if err := database.CloseDB(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close database")
	}

	logger.Log.Info("Risk Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
