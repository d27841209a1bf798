package pubchem

import (
	"errors"
	"fmt"
)

// Common errors returned by the PubChem client.
var (
	// ErrRateLimited indicates PubChem throttled the request (HTTP 429 or 503 busy).
	ErrRateLimited = errors.New("PubChem rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with PubChem")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from PubChem")
)

// APIError represents an error status returned by PUG REST.
type APIError struct {
	StatusCode int
	Code       string // Fault code from PubChem (e.g., "PUGREST.NotFound")
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("PubChem API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("PubChem API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates no compound matched.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404 || apiErr.Code == "PUGREST.NotFound"
	}
	return false
}

// IsRateLimited returns true if the error indicates throttling.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.Code == "PUGREST.ServerBusy"
	}
	return false
}
