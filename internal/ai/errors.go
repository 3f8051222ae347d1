package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is the decoded error body of a completion endpoint.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error: status=%d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%s", e.Message)
	}
	return b.String()
}

// AuthError is a rejected or missing API key (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string { return "api key rejected: " + e.APIError.Error() }

// RateLimitError is a 429; RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited for %s: %s", e.RetryAfter.Round(time.Second), e.APIError.Error())
	}
	return "rate limited: " + e.APIError.Error()
}

// ModelNotFoundError means the configured chat model is not served.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string { return "unknown model: " + e.APIError.Error() }

// BadRequestError is a 400, usually an oversized data context.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return "request rejected: " + e.APIError.Error() }

type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string { return "quota exceeded: " + e.APIError.Error() }

// ServerError is a 5xx that survived the retry budget.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return "provider unavailable: " + e.APIError.Error() }

// UnreachableError means no connection could be made, typically a local
// Ollama that is not running.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Transient reports whether err may succeed on a later attempt.
func Transient(err error) bool {
	var (
		rl    *RateLimitError
		srv   *ServerError
		unrch *UnreachableError
	)
	return errors.As(err, &rl) || errors.As(err, &srv) || errors.As(err, &unrch)
}

// classifyAPIError maps a decoded body onto the typed errors above.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc, msg, code := apiErr.StatusCode, apiErr.Message, apiErr.Code
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		if code == "model_not_found" || foldAll(msg, "model", "not", "found") || foldAll(msg, "model", "does not exist") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		if code == "model_decommissioned" || foldAll(msg, "model", "decommissioned") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return &BadRequestError{APIError: apiErr}
	case code == "quota_exceeded" || foldAny(msg, "quota", "billing", "limit exceeded"):
		return &QuotaExceededError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func foldAll(s string, subs ...string) bool {
	ls := strings.ToLower(s)
	for _, sub := range subs {
		if s == "" || !strings.Contains(ls, strings.ToLower(sub)) {
			return false
		}
	}
	return true
}

func foldAny(s string, subs ...string) bool {
	ls := strings.ToLower(s)
	for _, sub := range subs {
		if s != "" && strings.Contains(ls, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
