package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Skotchmaster/storefront/internal/service"
)

// statusOf maps a service error to the HTTP status and client message.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, message(err, service.ErrValidation)
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, message(err, service.ErrNotFound)
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, message(err, service.ErrConflict)
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "invalid refresh token"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func message(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
