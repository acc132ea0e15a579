// Package seed loads scraped restaurant data into the record store and the
// search index. It backs the one-time batch jobs that populate both stores.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"dining-concierge/internal/model"
)

// RecordWriter is the record store side of seeding.
type RecordWriter interface {
	Put(ctx context.Context, rec model.Record) error
}

// IndexWriter is the search index side of seeding.
type IndexWriter interface {
	IndexCandidate(ctx context.Context, cand model.Candidate) error
}

// Seeder writes restaurant records to the store and their {id, cuisine}
// projection to the index.
type Seeder struct {
	store  RecordWriter
	index  IndexWriter
	logger zerolog.Logger
}

// New creates a seeder.
func New(store RecordWriter, index IndexWriter, logger zerolog.Logger) *Seeder {
	return &Seeder{store: store, index: index, logger: logger}
}

// LoadFile reads a JSON array of restaurant records.
func LoadFile(path string) ([]model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var recs []model.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("seed: parse %s: %w", path, err)
	}
	return recs, nil
}

// Run seeds every record, skipping and logging individual failures so one
// bad row never aborts the batch. It returns the number seeded.
func (s *Seeder) Run(ctx context.Context, recs []model.Record) (int, error) {
	seeded := 0
	for _, rec := range recs {
		if rec.BusinessID == "" {
			s.logger.Warn().Str("name", rec.Name).Msg("skipping record without business id")
			continue
		}
		if rec.InsertedAt == "" {
			rec.InsertedAt = time.Now().UTC().Format(time.RFC3339Nano)
		}

		if err := s.store.Put(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("business_id", rec.BusinessID).Msg("record store write failed")
			continue
		}
		cand := model.Candidate{BusinessID: rec.BusinessID, Cuisine: rec.Cuisine}
		if err := s.index.IndexCandidate(ctx, cand); err != nil {
			s.logger.Error().Err(err).Str("business_id", rec.BusinessID).Msg("index write failed")
			continue
		}
		seeded++
	}

	if seeded == 0 && len(recs) > 0 {
		return 0, fmt.Errorf("seed: no records seeded out of %d", len(recs))
	}
	s.logger.Info().Int("seeded", seeded).Int("total", len(recs)).Msg("seeding complete")
	return seeded, nil
}
