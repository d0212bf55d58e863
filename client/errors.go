package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is the uniform error contract every failed response is normalized
// into. Message is always present; Field and Code carry the structured
// payload when the backend supplied one, preserved verbatim for field-level
// UI binding.
type APIError struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Code       string `json:"code,omitempty"`
	URL        string `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// IsValidation reports whether the error is a 4xx carrying a structured
// field or code, recoverable locally by the caller.
func (e *APIError) IsValidation() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && (e.Field != "" || e.Code != "")
}

// IsServerError reports whether the failure was on the backend's side.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// AuthExpiredError is a 401 that survived the refresh-and-retry cycle:
// either the refresh failed or the retried request was rejected again. The
// session has already been cleared and the unauthorized observers notified.
type AuthExpiredError struct {
	APIError
}

// ConnectivityError is a transport-level failure surfaced with the attempted
// origin for diagnosability, after the one bounded recovery attempt.
type ConnectivityError struct {
	Origin string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("could not reach %s: %v", e.Origin, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// errorBody is the union of the error shapes the backend has shipped over
// time: the structured contract plus two legacy single-field forms.
type errorBody struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code,omitempty"`
	Err     string `json:"error,omitempty"`
}

// normalizeError converts a failed response into an APIError. Attempted in
// order: the structured error body, legacy message/error fields, the raw
// response text, and finally a message derived from the HTTP status.
func normalizeError(statusCode int, body []byte, url string) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		URL:        url,
	}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		if parsed.Status == "error" && parsed.Message != "" {
			apiErr.Status = parsed.Status
			apiErr.Message = parsed.Message
			apiErr.Field = parsed.Field
			apiErr.Code = parsed.Code
			return apiErr
		}
		if parsed.Message != "" {
			apiErr.Message = parsed.Message
			return apiErr
		}
		if parsed.Err != "" {
			apiErr.Message = parsed.Err
			return apiErr
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		apiErr.Message = text
		return apiErr
	}

	apiErr.Message = statusMessage(statusCode, url)
	return apiErr
}

func statusMessage(statusCode int, url string) string {
	if statusCode == http.StatusNotFound {
		return fmt.Sprintf("resource not found: %s", url)
	}
	if text := http.StatusText(statusCode); text != "" {
		return fmt.Sprintf("request failed: %s", text)
	}
	return fmt.Sprintf("request failed with status %d", statusCode)
}
