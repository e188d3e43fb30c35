// Package reliability keeps outbound work alive under failure and
// load: exponential-backoff retry, an ordered recovery chain (retry,
// fallback data, graceful degradation), percentage-rollout feature
// flags, and a Manager that queues, paces, sheds, and degrades
// requests against a rate limiter.
package reliability
