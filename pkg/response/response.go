package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/launchpad/backend/pkg/logger"
)

// Response is the envelope every API endpoint replies with.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AppError carries the HTTP status and message a failure maps to.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(status int, msg string, err error) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg, Err: err}
}

func NewBadRequest(msg string) *AppError {
	return newAppError(http.StatusBadRequest, msg, nil)
}

func NewUnauthorized(msg string) *AppError {
	return newAppError(http.StatusUnauthorized, msg, nil)
}

func NewForbidden(msg string) *AppError {
	return newAppError(http.StatusForbidden, msg, nil)
}

func NewNotFound(msg string) *AppError {
	return newAppError(http.StatusNotFound, msg, nil)
}

func NewConflict(msg string) *AppError {
	return newAppError(http.StatusConflict, msg, nil)
}

// Wrap keeps err as the cause of an AppError with the given status.
func Wrap(status int, err error) *AppError {
	return newAppError(status, err.Error(), err)
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

// Error writes err. An *AppError keeps its status and message; anything else
// is logged and reported as an opaque 500.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.HTTPStatus, Response{Code: appErr.Code, Message: appErr.Message})
		return
	}
	logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	ServerError(c, "internal server error")
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Message: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: http.StatusUnauthorized, Message: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{Code: http.StatusForbidden, Message: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{Code: http.StatusNotFound, Message: msg})
}

func TooManyRequests(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: http.StatusTooManyRequests, Message: msg})
}

func ServerError(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Message: msg})
}
