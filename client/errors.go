package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is the single normalised failure returned by every Client call.
// Message is the server-supplied message when the response carried one,
// otherwise the transport-level description.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message extracts the user-facing message from err. Errors that are not
// *Error yield err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func responseError(status int, body []byte) *Error {
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			return &Error{StatusCode: status, Message: eb.Message}
		}
		if eb.Error != "" {
			return &Error{StatusCode: status, Message: eb.Error}
		}
	}
	return &Error{
		StatusCode: status,
		Message:    fmt.Sprintf("Request failed with status code %d", status),
	}
}

func transportError(err error) *Error {
	return &Error{Message: err.Error(), Err: err}
}
