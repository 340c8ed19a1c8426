package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_FullNameAndString(t *testing.T) {
	t.Parallel()
	u := User{Email: "test@example.com", FirstName: "John", LastName: "Doe"}
	assert.Equal(t, "John Doe", u.FullName())
	assert.Equal(t, "Username: test@example.com", u.String())

	u.LastName = ""
	assert.Equal(t, "John", u.FullName())
}

func TestPost_String(t *testing.T) {
	t.Parallel()
	p := Post{Title: "Hello", User: &User{Email: "a@x.com"}}
	assert.Equal(t, "a@x.com - Hello", p.String())
	assert.Equal(t, "Hello", Post{Title: "Hello"}.String())
}

func TestStringPtr(t *testing.T) {
	t.Parallel()
	assert.Nil(t, StringPtr("   "))
	if assert.NotNil(t, StringPtr(" bob ")) {
		assert.Equal(t, "bob", *StringPtr(" bob "))
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewFieldError("email", "taken"), http.StatusBadRequest},
		{NewUnauthenticatedError("who"), http.StatusUnauthorized},
		{NewTokenInvalidError("expired", nil), http.StatusUnauthorized},
		{NewForbiddenError("no"), http.StatusForbidden},
		{NewNotFoundError("Post", 3), http.StatusNotFound},
		{NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewForbiddenError("no")), http.StatusForbidden},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestHasCode(t *testing.T) {
	t.Parallel()
	assert.True(t, HasCode(NewForbiddenError("x"), CodeForbidden))
	assert.False(t, HasCode(NewForbiddenError("x"), CodeNotFound))
	assert.False(t, HasCode(errors.New("x"), CodeForbidden))
}
