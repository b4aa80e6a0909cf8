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
	"github.com/maternal-risk/platform/pkg/analytics"
	"github.com/maternal-risk/platform/pkg/common/config"
	"github.com/maternal-risk/platform/pkg/common/database"
	"github.com/maternal-risk/platform/pkg/common/kafka"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/gateway/auth"
	"github.com/maternal-risk/platform/pkg/gateway/middleware"
	"github.com/maternal-risk/platform/pkg/serving/predictor"
)

const analyticsPort = "8090"

func main() {
	logger.Init()
	cfg := config.Load()

	redisClient := database.GetRedis()
	defer database.CloseRedis()

	counter := analytics.NewRiskCounter(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.KafkaEnabled {
		dlq := kafka.NewProducer(cfg, cfg.PredictionDLQ)
		defer dlq.Close()
		consumer := kafka.NewConsumer(cfg, cfg.PredictionTopic, "analytics-service").
			WithDeadLetter(dlq, "analytics-service", cfg.ConsumeAttempts)
		defer consumer.Close()

		go func() {
			if err := consumer.Consume(ctx, counter.HandleEvent); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Fatal("Consumer error")
			}
		}()
	} else {
		logger.Log.Warn("Kafka disabled, risk counters will not advance")
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTokenTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid JWT configuration")
	}

	handler := analytics.NewHandler(counter, predictor.NewPredictor(cfg.ModelArtifactDir), cfg.ModelName, cfg.MaxUploadBytes)

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Authenticate(jwtManager))
	handler.Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, analyticsPort),
		Handler:      middleware.CORS(cfg.AllowedOrigins)(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  analyticsPort,
			"topic": cfg.PredictionTopic,
		}).Info("Analytics Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Analytics Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Analytics Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
