package providers

import "errors"

// ErrRateLimited marks an HTTP 429 from the model API. Callers treat it as
// a transient condition: the reply pipeline enqueues for retry, scheduled
// jobs skip the cycle.
var ErrRateLimited = errors.New("model API rate limited")

// ErrEmptyCompletion marks a 2xx response carrying no usable choices or
// content. Treated as a transient failure, not as an empty reply.
var ErrEmptyCompletion = errors.New("model API returned no content")
