package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessagePrecedence(t *testing.T) {
	assert.Equal(t, "a, b", (&Error{Errors: []string{"a", "b"}, ErrorMsg: "e", Message: "m"}).Error())
	assert.Equal(t, "e", (&Error{ErrorMsg: "e", Message: "m"}).Error())
	assert.Equal(t, "m", (&Error{Message: "m"}).Error())
	assert.Equal(t, "request failed", (&Error{}).Error())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "fallback", Message(nil, "fallback"))
	assert.Equal(t, "a, b", Message(&Error{Errors: []string{"a", "b"}}, "fallback"))
	assert.Equal(t, "nope", Message(&Error{ErrorMsg: "nope"}, "fallback"))
	assert.Equal(t, "hint", Message(&Error{Message: "hint"}, "fallback"))
	assert.Equal(t, "fallback", Message(&Error{}, "fallback"))
	assert.Equal(t, "boom", Message(errors.New("boom"), "fallback"))

	wrapped := fmt.Errorf("POST /auth/login: %w", &Error{ErrorMsg: "Unauthorized"})
	assert.Equal(t, "Unauthorized", Message(wrapped, "fallback"))
}

func TestIsInvalidCredentials(t *testing.T) {
	assert.True(t, (&Error{ErrorMsg: "Unauthorized"}).IsInvalidCredentials())
	assert.True(t, (&Error{ErrorMsg: "Invalid credentials"}).IsInvalidCredentials())
	assert.False(t, (&Error{ErrorMsg: "Account not verified"}).IsInvalidCredentials())
}
