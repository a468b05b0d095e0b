package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/launchpad/backend/internal/lifecycle"
	"github.com/launchpad/backend/internal/services"
	"github.com/launchpad/backend/pkg/response"
	"gorm.io/gorm"
)

// statusOf maps a service error to its HTTP status. Zero means unmapped.
func statusOf(err error) int {
	switch kind := lifecycle.KindOf(err); kind {
	case lifecycle.ErrNotFound:
		return http.StatusNotFound
	case lifecycle.ErrForbidden:
		return http.StatusForbidden
	case nil:
	default:
		return http.StatusConflict
	}

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUserDisabled):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUserExists), errors.Is(err, services.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	}
	return 0
}

// fail writes err in the response envelope.
func fail(c *gin.Context, err error) {
	if status := statusOf(err); status != 0 {
		response.Error(c, response.Wrap(status, err))
		return
	}
	response.Error(c, err)
}

// paramID parses a uint path parameter, replying 400 when it is malformed.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
