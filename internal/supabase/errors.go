package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the hosted backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return e.Message
}

// IsStatus returns true if err (or any wrapped error) is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}

// errorBody covers the error shapes of both GoTrue and PostgREST.
type errorBody struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func parseAPIError(status int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		for _, msg := range []string{eb.ErrorDescription, eb.Msg, eb.Message, eb.Error} {
			if msg != "" {
				return &APIError{StatusCode: status, Message: msg}
			}
		}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}
