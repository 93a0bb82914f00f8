package domain

import "errors"

var (
	// ErrNotFound is returned for unknown persona, pipeline or run ids
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for unresolvable personas, bad templates and malformed requests
	ErrValidation = errors.New("validation failed")
	// ErrUpstream is returned when a completion call fails or times out
	ErrUpstream = errors.New("upstream failure")
	// ErrMalformedUpstream marks a reply that should have been JSON but was not.
	// It is recovered locally and never reaches API callers.
	ErrMalformedUpstream = errors.New("malformed upstream response")
)
