// Package dispatch is the core of the backend: it drains one dining request
// from the queue, finds and hydrates candidate restaurants, emails the
// suggestions, and acknowledges the message only after the send succeeded.
//
// Everything before the acknowledgment is safely repeatable. A crash
// between send and ack causes at most a duplicate notification, never a
// silently dropped request.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dining-concierge/internal/model"
	"dining-concierge/internal/queue"
	"dining-concierge/internal/records"
)

// Index is the search index dependency.
type Index interface {
	QueryByCuisine(ctx context.Context, cuisine string, limit int) ([]model.Candidate, error)
}

// Store is the record store dependency.
type Store interface {
	GetByID(ctx context.Context, id string) (*model.Record, error)
}

// Notifier is the outbound message dependency.
type Notifier interface {
	Send(ctx context.Context, msg model.Notification) error
}

// Outcome classifies a completed pipeline run.
type Outcome string

const (
	// OutcomeEmpty: no message arrived within the wait window.
	OutcomeEmpty Outcome = "empty"
	// OutcomeDeadLettered: the message was malformed and moved aside.
	OutcomeDeadLettered Outcome = "dead_lettered"
	// OutcomeNoResults: the index had no match; apology sent, message acked.
	OutcomeNoResults Outcome = "no_results"
	// OutcomeSent: suggestions delivered and the message acknowledged.
	OutcomeSent Outcome = "sent"
)

// Result summarizes one pipeline activation.
type Result struct {
	Outcome     Outcome
	RequestID   string
	Recommended int
}

// Config holds the pipeline tunables.
type Config struct {
	// WaitWindow bounds the queue receive.
	WaitWindow time.Duration
	// ResultCap bounds the index query so one run's work stays bounded.
	ResultCap int
	// SampleSize is how many candidates a notification lists at most.
	SampleSize int
	// MaxRetries bounds attempts against each transient dependency.
	MaxRetries int
	// BaseBackoff and MaxBackoff shape the retry delay.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		WaitWindow:  5 * time.Second,
		ResultCap:   50,
		SampleSize:  5,
		MaxRetries:  3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

// Pipeline wires the queue, index, store and notifier into one dispatch
// unit. All dependencies are injected so tests can substitute fakes, and
// the random source is pluggable for deterministic sampling assertions.
type Pipeline struct {
	queue    queue.Consumer
	index    Index
	store    Store
	notifier Notifier
	rng      *rand.Rand
	logger   zerolog.Logger
	cfg      Config
}

// New creates a pipeline. A nil rng falls back to a time-seeded source.
func New(q queue.Consumer, idx Index, store Store, n Notifier, rng *rand.Rand, logger zerolog.Logger, cfg Config) *Pipeline {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Pipeline{
		queue:    q,
		index:    idx,
		store:    store,
		notifier: n,
		rng:      rng,
		logger:   logger,
		cfg:      cfg,
	}
}

// ProcessOne handles at most one queue message and returns its outcome.
// On a transient dependency failure the message is left unacknowledged and
// an error is returned; the queue redelivers it later.
func (p *Pipeline) ProcessOne(ctx context.Context) (Result, error) {
	msg, err := p.queue.Receive(ctx, p.cfg.WaitWindow)
	if err != nil {
		return Result{}, &TransientError{Op: "queue receive", Err: err}
	}
	if msg == nil {
		p.logger.Info().Msg("no messages in queue")
		return Result{Outcome: OutcomeEmpty}, nil
	}

	requestID := uuid.New().String()
	logger := p.logger.With().Str("request_id", requestID).Logger()

	req, verr := parseRequest(msg.Body)
	if verr != nil {
		logger.Warn().Str("reason", verr.Reason).Msg("malformed request, dead-lettering")
		if err := p.queue.DeadLetter(ctx, msg, verr.Reason); err != nil {
			return Result{RequestID: requestID}, &TransientError{Op: "dead-letter", Err: err}
		}
		return Result{Outcome: OutcomeDeadLettered, RequestID: requestID}, nil
	}

	logger = logger.With().Str("cuisine", req.Cuisine).Logger()
	logger.Info().Str("email", req.Email).Msg("processing dining request")

	var candidates []model.Candidate
	err = p.withRetry(ctx, logger, "search query", func() error {
		var qerr error
		candidates, qerr = p.index.QueryByCuisine(ctx, req.Cuisine, p.cfg.ResultCap)
		return qerr
	})
	if err != nil {
		return Result{RequestID: requestID}, err
	}

	if len(candidates) == 0 {
		// No matches will not appear on retry: tell the user and ack.
		logger.Info().Msg("no candidates for cuisine")
		apology := composeApology(req)
		if err := p.withRetry(ctx, logger, "notification send", func() error {
			return p.notifier.Send(ctx, apology)
		}); err != nil {
			return Result{RequestID: requestID}, err
		}
		if err := p.queue.Ack(ctx, msg); err != nil {
			return Result{RequestID: requestID}, &TransientError{Op: "queue ack", Err: err}
		}
		return Result{Outcome: OutcomeNoResults, RequestID: requestID}, nil
	}

	picks := p.sample(dedupe(candidates))
	logger.Info().Int("candidates", len(candidates)).Int("sampled", len(picks)).Msg("sampled candidates")

	recs := make([]model.Record, 0, len(picks))
	for _, cand := range picks {
		rec, err := p.hydrate(ctx, logger, cand)
		if err != nil {
			return Result{RequestID: requestID}, err
		}
		recs = append(recs, *rec)
	}

	notification := composeSuggestions(req, recs)
	if err := p.withRetry(ctx, logger, "notification send", func() error {
		return p.notifier.Send(ctx, notification)
	}); err != nil {
		return Result{RequestID: requestID}, err
	}

	if err := p.queue.Ack(ctx, msg); err != nil {
		// The notification is out; redelivery means a duplicate email, not
		// a lost request.
		return Result{Outcome: OutcomeSent, RequestID: requestID, Recommended: len(recs)},
			&TransientError{Op: "queue ack", Err: err}
	}

	logger.Info().Int("recommended", len(recs)).Msg("suggestions sent")
	return Result{Outcome: OutcomeSent, RequestID: requestID, Recommended: len(recs)}, nil
}

// parseRequest deserializes and validates the queue payload.
func parseRequest(body []byte) (model.Request, *ValidationError) {
	var req model.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return model.Request{}, &ValidationError{Reason: "invalid JSON: " + err.Error()}
	}
	if err := req.Validate(); err != nil {
		return model.Request{}, &ValidationError{Reason: err.Error()}
	}
	return req, nil
}

// hydrate fetches the record for one sampled candidate. A missing record
// degrades to a placeholder; only transport failures bubble up.
func (p *Pipeline) hydrate(ctx context.Context, logger zerolog.Logger, cand model.Candidate) (*model.Record, error) {
	var rec *model.Record
	err := p.withRetry(ctx, logger, "record fetch", func() error {
		r, err := p.store.GetByID(ctx, cand.BusinessID)
		if errors.Is(err, records.ErrNotFound) {
			logger.Warn().Str("business_id", cand.BusinessID).Msg("record missing, using placeholder")
			r = &model.Record{
				BusinessID: cand.BusinessID,
				Name:       "Unknown Restaurant",
				Address:    "Unknown Address",
			}
		} else if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// sample picks min(len, SampleSize) candidates uniformly at random without
// replacement.
func (p *Pipeline) sample(candidates []model.Candidate) []model.Candidate {
	k := p.cfg.SampleSize
	if len(candidates) < k {
		k = len(candidates)
	}
	picks := make([]model.Candidate, 0, k)
	for _, i := range p.rng.Perm(len(candidates))[:k] {
		picks = append(picks, candidates[i])
	}
	return picks
}

// dedupe filters duplicate business identifiers, keeping first occurrence.
func dedupe(candidates []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.BusinessID]; ok {
			continue
		}
		seen[c.BusinessID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// withRetry runs fn up to MaxRetries times with exponential backoff between
// attempts. Exhausting the budget yields a TransientError.
func (p *Pipeline) withRetry(ctx context.Context, logger zerolog.Logger, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := p.backoff(attempt)
			logger.Debug().Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after delay")
			select {
			case <-ctx.Done():
				return &TransientError{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("transient dependency error")
			continue
		}
		return nil
	}
	return &TransientError{Op: op, Err: lastErr}
}

// backoff is BaseBackoff * 2^(attempt-2) capped at MaxBackoff, so the first
// retry waits exactly BaseBackoff.
func (p *Pipeline) backoff(attempt int) time.Duration {
	delay := p.cfg.BaseBackoff * (1 << uint(attempt-2))
	if delay > p.cfg.MaxBackoff {
		delay = p.cfg.MaxBackoff
	}
	return delay
}
