package services

import "errors"

var (
	// ErrNoProvider means no configured backend can serve the requested model.
	ErrNoProvider = errors.New("no AI provider available")
	// ErrProviderCall wraps any transport or provider-side failure. Calls are
	// never retried here.
	ErrProviderCall = errors.New("provider call failed")
	// ErrGeneration is the single failure kind the generation pipeline
	// surfaces; the original cause is preserved in the chain.
	ErrGeneration = errors.New("component generation failed")
)
