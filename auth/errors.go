package auth

import "errors"

var (
	// ErrMissingToken marks a success response that lacked the token the
	// next step needs.
	ErrMissingToken = errors.New("response is missing its token")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// RejectedError reports a response the server answered with success:false,
// or a success response missing required data (then Err is ErrMissingToken).
// Reason is the server message when there was one, else a per-operation
// default suitable for display.
type RejectedError struct {
	Op     string
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	return e.Reason
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

func rejected(op, serverMessage, fallback string) *RejectedError {
	reason := serverMessage
	if reason == "" {
		reason = fallback
	}
	return &RejectedError{Op: op, Reason: reason}
}

func missingToken(op, serverMessage, fallback string) *RejectedError {
	e := rejected(op, serverMessage, fallback)
	e.Err = ErrMissingToken
	return e
}

// ValidationError is a local validation failure detected before any remote
// call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
