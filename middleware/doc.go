// Package middleware validates JSON entities crossing HTTP boundaries.
//
// Transport is a client-side http.RoundTripper that checks outgoing
// request bodies before they reach the wire, so malformed entities are
// caught without spending an API call. Validator is the server-side
// counterpart: chi-compatible middleware that rejects invalid bodies
// with 422 before the handler sees them.
//
// Both sides infer the entity type from the URL path (the first
// capitalized segment, like /Tickets/123) and the operation from the
// HTTP method.
package middleware
