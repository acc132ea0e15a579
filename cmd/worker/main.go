package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dining-concierge/internal/config"
	"dining-concierge/internal/dispatch"
	"dining-concierge/internal/logging"
	"dining-concierge/internal/notify"
	"dining-concierge/internal/queue"
	"dining-concierge/internal/records"
	"dining-concierge/internal/search"
)

// The worker is one dispatch activation: receive at most one dining request,
// send the suggestions, ack, exit. A non-zero exit on transient failure lets
// the scheduler retry; the unacked message is redelivered either way.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.Log).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewKafkaConsumer(cfg.Kafka)
	defer consumer.Close()

	index, err := search.New(cfg.Search)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create search client")
	}

	store := records.New(cfg.Redis)
	defer store.Close()

	notifier := notify.NewSMTP(cfg.SMTP)

	pipeline := dispatch.New(consumer, index, store, notifier, nil, logger, dispatch.Config{
		WaitWindow:  cfg.Dispatch.WaitWindow,
		ResultCap:   cfg.Dispatch.ResultCap,
		SampleSize:  cfg.Dispatch.SampleSize,
		MaxRetries:  cfg.Dispatch.MaxRetries,
		BaseBackoff: cfg.Dispatch.BaseBackoff,
		MaxBackoff:  cfg.Dispatch.MaxBackoff,
	})

	res, err := pipeline.ProcessOne(ctx)
	if err != nil {
		logger.Error().Err(err).Str("outcome", string(res.Outcome)).Msg("activation failed")
		os.Exit(1)
	}
	logger.Info().Str("outcome", string(res.Outcome)).Int("recommended", res.Recommended).Msg("activation complete")
}
