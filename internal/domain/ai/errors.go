package ai

import "errors"

// ErrUnavailable indicates no API credential is configured. This is permanent
// for the lifetime of the client; callers fall back to degraded results instead
// of failing the whole job.
var ErrUnavailable = errors.New("ai client unavailable: no api key configured")

// ErrUpstream indicates the provider kept failing after all retries were spent.
var ErrUpstream = errors.New("ai upstream error")

// ErrMalformedResponse indicates the model returned something that is not the
// requested JSON object.
var ErrMalformedResponse = errors.New("ai malformed response")
