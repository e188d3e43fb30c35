package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/vigil/engine"
	"github.com/roach88/vigil/rule"
	"github.com/roach88/vigil/validation"
)

// failureResponse is the JSON body written for rejected requests.
type failureResponse struct {
	Valid      bool               `json:"valid"`
	EntityType string             `json:"entityType"`
	Operation  rule.Operation     `json:"operation"`
	Issues     []validation.Issue `json:"issues"`
}

// Validator returns server middleware that validates JSON request
// bodies against the engine before the handler runs. Invalid entities
// are rejected with 422 Unprocessable Entity and a JSON issue list;
// valid requests reach the handler with the body intact.
//
// The middleware composes with chi routers and uses chi's request ID
// as the validation correlation ID when one is present.
func Validator(eng *engine.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, ok := methodOperations[r.Method]
			if !ok || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			entityType := EntityTypeFromPath(r.URL.Path)
			if entityType == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, "cannot read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var entity rule.Entity
			if len(body) == 0 || json.Unmarshal(body, &entity) != nil {
				next.ServeHTTP(w, r)
				return
			}

			rctx := &rule.Context{
				EntityType:    entityType,
				Operation:     op,
				CorrelationID: middleware.GetReqID(r.Context()),
			}
			result := eng.ValidateEntity(r.Context(), entityType, entity, rctx)
			if result.IsValid() {
				next.ServeHTTP(w, r)
				return
			}

			slog.Info("rejecting invalid request",
				"entity_type", entityType,
				"operation", op,
				"errors", result.ErrorCount(),
				"correlation_id", rctx.CorrelationID,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			if err := json.NewEncoder(w).Encode(failureResponse{
				Valid:      false,
				EntityType: entityType,
				Operation:  op,
				Issues:     result.Issues(),
			}); err != nil {
				slog.Error("writing validation failure response", "error", err)
			}
		})
	}
}
