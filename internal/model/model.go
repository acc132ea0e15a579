package model

import (
	"github.com/go-playground/validator/v10"
)

// go-playground/validator/v10: Struct validator for queue payload validation.
var validate = validator.New()

// SlotUnknown marks a slot the dialog could not extract. The router writes
// it instead of omitting the field so the Request shape stays stable.
const SlotUnknown = "unknown"

// Request is the unit of work carried on the request queue. JSON keys match
// the queue wire format exactly; only Cuisine and Email are required for a
// message to be actionable.
type Request struct {
	Cuisine        string `json:"Cuisine" validate:"required"`
	Email          string `json:"Email" validate:"required,email"`
	NumberOfPeople string `json:"NumberOfPeople,omitempty"`
	DiningTime     string `json:"DiningTime,omitempty"`
	Location       string `json:"Location,omitempty"`
}

// Validate re-checks the request on receipt. The queue is an untrusted
// boundary, so the consumer never assumes the producer validated.
func (r Request) Validate() error {
	return validate.Struct(r)
}

// PartyDisplay returns the party size for message text.
func (r Request) PartyDisplay() string {
	return displayOr(r.NumberOfPeople, "some friends")
}

// TimeDisplay returns the dining time for message text.
func (r Request) TimeDisplay() string {
	return displayOr(r.DiningTime, "soon")
}

// LocationDisplay returns the location for message text.
func (r Request) LocationDisplay() string {
	return displayOr(r.Location, "your area")
}

func displayOr(v, fallback string) string {
	if v == "" || v == SlotUnknown {
		return fallback
	}
	return v
}

// Candidate is a single search-index hit. BusinessID is the join key into
// the record store; Cuisine mirrors the queried category.
type Candidate struct {
	BusinessID string `json:"BusinessID"`
	Cuisine    string `json:"Cuisine"`
}

// Coordinates holds a business location.
type Coordinates struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
}

// Record is the authoritative business entity in the record store. Only
// Name and Address are needed by the dispatch pipeline; the rest is carried
// for completeness and for the seeding path.
type Record struct {
	BusinessID      string      `json:"BusinessID" validate:"required"`
	Name            string      `json:"Name"`
	Address         string      `json:"Address"`
	Coordinates     Coordinates `json:"Coordinates"`
	NumberOfReviews int         `json:"NumberOfReviews"`
	Rating          float64     `json:"Rating"`
	ZipCode         string      `json:"ZipCode"`
	Cuisine         string      `json:"Cuisine"`
	InsertedAt      string      `json:"insertedAtTimestamp"`
}

// Notification is the outbound artifact: one plain-text email per completed
// pipeline run. It is never persisted.
type Notification struct {
	To      string
	Subject string
	Body    string
}
