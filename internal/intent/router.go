// Package intent maps recognized dialog intents to scripted replies or,
// for dining requests, to a queued unit of work for the dispatch worker.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"dining-concierge/internal/model"
	"dining-concierge/internal/queue"
)

// Intent names the dialog engine produces.
const (
	IntentGreeting          = "GreetingIntent"
	IntentThankYou          = "ThankYouIntent"
	IntentDiningSuggestions = "DiningSuggestionsIntent"
)

// Slot names inside a DiningSuggestionsIntent.
const (
	SlotCuisine        = "Cuisine"
	SlotEmail          = "Email"
	SlotNumberOfPeople = "NumberOfPeople"
	SlotDiningTime     = "DiningTime"
	SlotLocation       = "Location"
)

// Router turns a recognized intent into an immediate reply, enqueuing a
// dining request as a side effect when the intent asks for suggestions.
type Router struct {
	producer queue.Producer
	logger   zerolog.Logger
}

// NewRouter creates an intent router.
func NewRouter(producer queue.Producer, logger zerolog.Logger) *Router {
	return &Router{producer: producer, logger: logger}
}

// Handle routes one intent. It always returns a reply; enqueue failures
// surface as a Failed state so the front end can ask the user to retry.
func (r *Router) Handle(ctx context.Context, in model.Intent) model.IntentResponse {
	switch in.Name {
	case IntentGreeting:
		return fulfilled("Hi there, how can I help?")
	case IntentThankYou:
		return fulfilled("You're welcome!")
	case IntentDiningSuggestions:
		return r.handleDiningSuggestions(ctx, in)
	default:
		return fulfilled(fmt.Sprintf("Intent %s not implemented yet.", in.Name))
	}
}

func (r *Router) handleDiningSuggestions(ctx context.Context, in model.Intent) model.IntentResponse {
	req := model.Request{
		Cuisine:        normalizeSlot(in.Slots[SlotCuisine]),
		Email:          normalizeSlot(in.Slots[SlotEmail]),
		NumberOfPeople: normalizeSlot(in.Slots[SlotNumberOfPeople]),
		DiningTime:     normalizeSlot(in.Slots[SlotDiningTime]),
		Location:       normalizeSlot(in.Slots[SlotLocation]),
	}

	// Malformed requests never reach the queue; the worker re-validates
	// anyway, but the user deserves the error now, not by email.
	if req.Cuisine == model.SlotUnknown {
		return failed("I still need a cuisine to look for. What would you like to eat?")
	}
	if req.Email == model.SlotUnknown {
		return failed("I still need an email address to send the suggestions to.")
	}
	if err := req.Validate(); err != nil {
		r.logger.Warn().Err(err).Msg("rejecting invalid dining request")
		return failed("That email address doesn't look right. Could you repeat it?")
	}

	if err := r.producer.Enqueue(ctx, req); err != nil {
		r.logger.Error().Err(err).Msg("failed to enqueue dining request")
		return failed("Something went wrong on our side. Please try again in a moment.")
	}

	r.logger.Info().Str("cuisine", req.Cuisine).Str("email", req.Email).Msg("dining request enqueued")
	return fulfilled(fmt.Sprintf(
		"Thanks, I've received your request. I'll email you at %s with restaurant suggestions!", req.Email))
}

// normalizeSlot collapses each extracted value to a single trimmed scalar.
// Absent or empty slots become the explicit unknown marker so the request
// shape stays stable for downstream validation.
func normalizeSlot(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.SlotUnknown
	}
	return v
}

func fulfilled(msg string) model.IntentResponse {
	return model.IntentResponse{State: model.FulfillmentFulfilled, Message: msg}
}

func failed(msg string) model.IntentResponse {
	return model.IntentResponse{State: model.FulfillmentFailed, Message: msg}
}
