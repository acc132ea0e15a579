package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"dining-concierge/internal/intent"
	"dining-concierge/internal/logging"
	"dining-concierge/internal/model"
)

// go-playground/validator/v10: Struct validator for the intent envelope.
var validate = validator.New()

// RegisterRoutes wires the producer-side HTTP routes.
// gorilla/mux: Router provides method-based routing.
func RegisterRoutes(r *mux.Router, router *intent.Router) {
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/intent", intentHandler(router)).Methods(http.MethodPost)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// intentHandler accepts a recognized intent from the dialog engine and
// returns the immediate reply. Dispatch itself is asynchronous.
func intentHandler(router *intent.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.Intent
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(in); err != nil {
			http.Error(w, "schema validation failed: "+err.Error(), http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		resp := router.Handle(ctx, in)

		logger := logging.Ctx(ctx)
		logger.Debug().Str("intent", in.Name).Str("state", resp.State).Msg("intent handled")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
