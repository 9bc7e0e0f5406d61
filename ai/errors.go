package ai

import "errors"

var (
	// ErrUnknownProvider is returned when a backend names a provider with no registered factory.
	ErrUnknownProvider = errors.New("unknown generation provider")

	// ErrMissingCredentials is returned when the selected backend lacks a required API key.
	ErrMissingCredentials = errors.New("generation backend is missing credentials")

	// ErrInvalidBackend is returned for a backend choice other than preferred or fallback.
	ErrInvalidBackend = errors.New("backend must be \"preferred\" or \"fallback\"")
)
