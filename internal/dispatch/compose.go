package dispatch

import (
	"fmt"
	"strings"

	"dining-concierge/internal/model"
)

// composeSuggestions builds the notification for a successful run: one
// numbered "name, located at address" line per hydrated record, in sample
// order, framed by the request's display fields.
func composeSuggestions(req model.Request, recs []model.Record) model.Notification {
	var b strings.Builder
	b.WriteString("Hello!\n\n")
	fmt.Fprintf(&b, "Based on your request for %s food in %s for %s at %s, here are some suggestions:\n\n",
		req.Cuisine, req.LocationDisplay(), req.PartyDisplay(), req.TimeDisplay())

	for i, rec := range recs {
		fmt.Fprintf(&b, "%d. %s, located at %s\n", i+1, rec.Name, rec.Address)
	}

	b.WriteString("\nEnjoy your meal!\n")

	return model.Notification{
		To:      req.Email,
		Subject: fmt.Sprintf("Your %s restaurant suggestions", req.Cuisine),
		Body:    b.String(),
	}
}

// composeApology is sent when the index has no match for the requested
// cuisine. Absence of matches will not change on retry, so the user hears
// back instead of waiting forever.
func composeApology(req model.Request) model.Notification {
	var b strings.Builder
	b.WriteString("Hello!\n\n")
	fmt.Fprintf(&b, "Unfortunately we couldn't find any %s restaurant suggestions in %s right now. ",
		req.Cuisine, req.LocationDisplay())
	b.WriteString("Please try again with a different cuisine.\n")

	return model.Notification{
		To:      req.Email,
		Subject: fmt.Sprintf("Your %s restaurant suggestions", req.Cuisine),
		Body:    b.String(),
	}
}
