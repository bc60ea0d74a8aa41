package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit returns true when the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Provider, e.Status, http.StatusText(e.Status), body)
}

// CheckStatus maps an HTTP status to nil, RateLimitError or StatusError.
func CheckStatus(provider string, status int, body []byte) error {
	if status == http.StatusTooManyRequests {
		return RateLimitError{Provider: provider, Message: string(body)}
	}
	if status < 200 || status >= 300 {
		return StatusError{Provider: provider, Status: status, Body: string(body)}
	}
	return nil
}
