// Package records is the authoritative record store client: one full
// restaurant record per business identifier.
package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"dining-concierge/internal/config"
	"dining-concierge/internal/model"
)

// ErrNotFound reports a missing record. It is an expected outcome (deleted
// or late-arriving data), distinct from a transport failure.
var ErrNotFound = errors.New("record not found")

const keyPrefix = "restaurant:"

// Store reads and writes restaurant records in Redis, one hash per business.
type Store struct {
	rdb *redis.Client
}

// New creates a record store client.
func New(cfg config.RedisConfig) *Store {
	// redis/go-redis/v9: NewClient creates the connection pool for the
	// record store.
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// GetByID fetches the record for a business identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Record, error) {
	// redis/go-redis/v9: HGetAll reads every field of the record hash.
	// A missing key yields an empty map, not an error.
	fields, err := s.rdb.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("records: get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec := &model.Record{
		BusinessID: id,
		Name:       fields["Name"],
		Address:    fields["Address"],
		ZipCode:    fields["ZipCode"],
		Cuisine:    fields["Cuisine"],
		InsertedAt: fields["InsertedAt"],
	}
	rec.Rating, _ = strconv.ParseFloat(fields["Rating"], 64)
	rec.NumberOfReviews, _ = strconv.Atoi(fields["NumberOfReviews"])
	rec.Coordinates.Latitude, _ = strconv.ParseFloat(fields["Latitude"], 64)
	rec.Coordinates.Longitude, _ = strconv.ParseFloat(fields["Longitude"], 64)

	return rec, nil
}

// Put writes a full record. Used by the seeding job and tests.
func (s *Store) Put(ctx context.Context, rec model.Record) error {
	if rec.BusinessID == "" {
		return fmt.Errorf("records: put: missing business id")
	}

	// redis/go-redis/v9: HSet writes all record fields in one call.
	err := s.rdb.HSet(ctx, keyPrefix+rec.BusinessID, map[string]interface{}{
		"Name":            rec.Name,
		"Address":         rec.Address,
		"Rating":          strconv.FormatFloat(rec.Rating, 'f', -1, 64),
		"NumberOfReviews": strconv.Itoa(rec.NumberOfReviews),
		"Latitude":        strconv.FormatFloat(rec.Coordinates.Latitude, 'f', -1, 64),
		"Longitude":       strconv.FormatFloat(rec.Coordinates.Longitude, 'f', -1, 64),
		"ZipCode":         rec.ZipCode,
		"Cuisine":         rec.Cuisine,
		"InsertedAt":      rec.InsertedAt,
	}).Err()
	if err != nil {
		return fmt.Errorf("records: put %s: %w", rec.BusinessID, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
