package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"dining-concierge/internal/config"
	"dining-concierge/internal/httpapi"
	"dining-concierge/internal/intent"
	"dining-concierge/internal/logging"
	"dining-concierge/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.Log).With().Str("component", "router-api").Logger()

	producer := queue.NewKafkaProducer(cfg.Kafka)
	defer producer.Close()

	router := intent.NewRouter(producer, logger)

	r := mux.NewRouter()
	r.Use(httpapi.RequestLogger(logger))
	httpapi.RegisterRoutes(r, router)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.Server.Addr).Msg("router API listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}
