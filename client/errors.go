package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingRefreshToken is wrapped by the error Refresh returns when no
// refresh token is stored
var ErrMissingRefreshToken = errors.New("missing refresh token")

// Fallback messages used when the server does not supply one
const (
	MsgBadRequest         = "Invalid request (missing fields)."
	MsgUnauthorized       = "Unauthorized."
	MsgInvalidCredentials = "Invalid email or password."
	MsgMissingRefresh     = "Missing refresh token."
)

// APIError is a classified non-success response from the backend
type APIError struct {
	Status  int
	Message string
	// Body is the parsed response body, nil if there was none
	Body any
	Err  error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ContractError reports a successful response that lacks a field the client
// requires, such as a login response without any token.
type ContractError struct {
	Op      string
	Missing string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s succeeded but %s was not found in the response", e.Op, e.Missing)
}

// IsUnauthorized returns true if err is a classified 401
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by a classified error, or 0
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorMessageKeys are checked in order for a server supplied message
var errorMessageKeys = []string{"message", "error", "error_description"}

// Interpret turns a transport response into its success value or an
// *APIError. unauthorized is the wording used for a 401 the server did not
// explain; it defaults to MsgUnauthorized.
func Interpret(resp *Response, unauthorized string) (any, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil
	}
	return nil, &APIError{
		Status:  resp.StatusCode,
		Message: errorMessage(resp.StatusCode, resp.Body, unauthorized),
		Body:    resp.Body,
	}
}

func errorMessage(status int, body any, unauthorized string) string {
	if obj, ok := body.(map[string]any); ok {
		for _, key := range errorMessageKeys {
			if msg := messageValue(obj[key]); msg != "" {
				return msg
			}
		}
	}

	switch status {
	case http.StatusBadRequest:
		return MsgBadRequest
	case http.StatusUnauthorized:
		if unauthorized != "" {
			return unauthorized
		}
		return MsgUnauthorized
	default:
		return fmt.Sprintf("Request failed (HTTP %d).", status)
	}
}

// messageValue accepts a plain string or an {"message": "..."} object
func messageValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["message"].(string); ok {
			return s
		}
	}
	return ""
}
