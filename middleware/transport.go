package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/roach88/vigil/engine"
	"github.com/roach88/vigil/rule"
	"github.com/roach88/vigil/validation"
)

// entityPathSegment matches an Autotask-style resource segment:
// capitalized, letters only, as in /Tickets/123 or /v1.0/Accounts.
var entityPathSegment = regexp.MustCompile(`^[A-Z][a-zA-Z]+$`)

// methodOperations maps HTTP methods with validatable bodies to the
// validation operation they imply.
var methodOperations = map[string]rule.Operation{
	http.MethodPost:   rule.OpCreate,
	http.MethodPut:    rule.OpUpdate,
	http.MethodPatch:  rule.OpUpdate,
	http.MethodDelete: rule.OpDelete,
}

// ValidationError is returned by the transport when a request body
// fails validation and the transport is configured to reject.
type ValidationError struct {
	EntityType string
	Operation  rule.Operation
	Result     *validation.Result
}

func (e *ValidationError) Error() string {
	errs := e.Result.Errors()
	if len(errs) == 0 {
		return fmt.Sprintf("validation failed for %s %s", e.Operation, e.EntityType)
	}
	return fmt.Sprintf("validation failed for %s %s: %s (%s)",
		e.Operation, e.EntityType, errs[0].Message, errs[0].Code)
}

// Transport validates outgoing request bodies against a rule engine
// before they leave the client. It wraps another RoundTripper, so it
// slots into any http.Client.
//
// Only POST, PUT, PATCH and DELETE requests whose URL path contains a
// recognizable entity segment are validated; everything else passes
// through untouched. When RejectInvalid is set, an invalid body aborts
// the round trip with a *ValidationError instead of hitting the wire.
type Transport struct {
	Base          http.RoundTripper
	Engine        *engine.Engine
	RejectInvalid bool
}

// NewTransport wraps base with request validation. A nil base uses
// http.DefaultTransport. The transport rejects invalid requests.
func NewTransport(eng *engine.Engine, base http.RoundTripper) *Transport {
	return &Transport{Base: base, Engine: eng, RejectInvalid: true}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	op, ok := methodOperations[req.Method]
	if !ok || req.Body == nil || req.Body == http.NoBody {
		return t.base().RoundTrip(req)
	}
	entityType := EntityTypeFromPath(req.URL.Path)
	if entityType == "" {
		return t.base().RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	// The body must survive validation for the actual round trip.
	req.Body = io.NopCloser(bytes.NewReader(body))

	var entity rule.Entity
	if err := json.Unmarshal(body, &entity); err != nil {
		// Non-object payloads (arrays, raw values) are not entities.
		slog.Debug("skipping validation of non-object request body",
			"method", req.Method, "path", req.URL.Path)
		return t.base().RoundTrip(req)
	}

	rctx := &rule.Context{
		EntityType:    entityType,
		Operation:     op,
		CorrelationID: req.Header.Get("X-Correlation-ID"),
	}
	result := t.Engine.ValidateEntity(req.Context(), entityType, entity, rctx)

	if !result.IsValid() {
		if t.RejectInvalid {
			return nil, &ValidationError{EntityType: entityType, Operation: op, Result: result}
		}
		slog.Warn("sending request that failed validation",
			"entity_type", entityType,
			"operation", op,
			"errors", result.ErrorCount(),
		)
	}
	for _, w := range result.Warnings() {
		slog.Warn("validation warning on outgoing request",
			"entity_type", entityType, "rule", w.RuleName, "message", w.Message)
	}

	return t.base().RoundTrip(req)
}

// EntityTypeFromPath returns the first path segment that looks like an
// entity resource name, or "" when the path has none.
func EntityTypeFromPath(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if entityPathSegment.MatchString(seg) {
			return seg
		}
	}
	return ""
}
