package domain

import "errors"

// Failure taxonomy shared by providers, orchestrators and the HTTP layer.
var (
	ErrUpstreamUnreachable   = errors.New("upstream unreachable")
	ErrUpstreamBadStatus     = errors.New("upstream bad status")
	ErrUpstreamMalformedBody = errors.New("upstream malformed body")
	ErrPlausibilityRejected  = errors.New("implausible value rejected")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrFxUnavailable         = errors.New("fx unavailable")
)

// IsUpstream reports whether err comes from a failing upstream provider.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamUnreachable) ||
		errors.Is(err, ErrUpstreamBadStatus) ||
		errors.Is(err, ErrUpstreamMalformedBody) ||
		errors.Is(err, ErrPlausibilityRejected) ||
		errors.Is(err, ErrFxUnavailable)
}
