package main

import (
	"context"
	"flag"

	"dining-concierge/internal/config"
	"dining-concierge/internal/logging"
	"dining-concierge/internal/records"
	"dining-concierge/internal/search"
	"dining-concierge/internal/seed"
)

func main() {
	path := flag.String("file", "restaurants.json", "path to the scraped restaurants JSON file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.Log).With().Str("component", "seed").Logger()

	recs, err := seed.LoadFile(*path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load restaurants file")
	}

	store := records.New(cfg.Redis)
	defer store.Close()

	index, err := search.New(cfg.Search)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create search client")
	}

	seeder := seed.New(store, index, logger)
	if _, err := seeder.Run(context.Background(), recs); err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}
}
