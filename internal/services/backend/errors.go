package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnavailable is returned while the circuit breaker is open or the backend
// cannot be reached.
var ErrUnavailable = errors.New("bin backend unavailable")

// ErrInvalidResponse is returned when a response body fails validation.
var ErrInvalidResponse = errors.New("invalid response from bin backend")

// APIError is a non-2xx response from the bin backend.
type APIError struct {
	Method     string
	Path       string
	Detail     string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// parseDetail extracts the human-readable message from an error body. The
// backend reports either {"detail": "..."} or a list of validation errors.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var msg string
	if err := json.Unmarshal(payload.Detail, &msg); err == nil {
		return msg
	}

	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if len(item.Loc) > 0 {
				parts = append(parts, fmt.Sprintf("%v: %s", item.Loc[len(item.Loc)-1], item.Msg))
			} else {
				parts = append(parts, item.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}

	return string(payload.Detail)
}
