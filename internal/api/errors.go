package api

import (
	"errors"
	"strings"
)

// ErrServerUnreachable replaces any transport-level failure so every
// caller surfaces the same stable message.
var ErrServerUnreachable = errors.New("Server is down or unreachable")

// Error is a structured API error decoded from the backend's
// {success, error, errors, message} envelope.
type Error struct {
	Status   int
	ErrorMsg string
	Errors   []string
	Message  string
}

func (e *Error) Error() string {
	if len(e.Errors) > 0 {
		return strings.Join(e.Errors, ", ")
	}
	if e.ErrorMsg != "" {
		return e.ErrorMsg
	}
	if e.Message != "" {
		return e.Message
	}
	return "request failed"
}

// IsInvalidCredentials reports whether the backend rejected the
// supplied credentials. The login flow rewrites these to a fixed
// user-facing message.
func (e *Error) IsInvalidCredentials() bool {
	return e.ErrorMsg == "Unauthorized" || e.ErrorMsg == "Invalid credentials"
}

// Message extracts a human-readable message from any error returned by
// the client: joined errors array, else the error field, else the
// message field, else the error text, else the fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if len(apiErr.Errors) > 0 {
			return strings.Join(apiErr.Errors, ", ")
		}
		if apiErr.ErrorMsg != "" {
			return apiErr.ErrorMsg
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
