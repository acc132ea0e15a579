package model

// Fulfillment states returned to the dialog front end.
const (
	FulfillmentFulfilled = "Fulfilled"
	FulfillmentFailed    = "Failed"
)

// Intent is the structured dialog event handed to the router: a recognized
// intent name plus the slot values the dialog engine extracted.
type Intent struct {
	Name  string            `json:"name" validate:"required"`
	Slots map[string]string `json:"slots"`
}

// IntentResponse is the immediate reply to the user. Dispatch itself runs
// asynchronously; this only acknowledges the request.
type IntentResponse struct {
	State   string `json:"state"`
	Message string `json:"message"`
}
