package httputil

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RespondWithSuccess sends a 200 response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// RespondWithError maps err to a status code and writes the envelope.
// Internal details of non-application errors never reach the client.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	var reasons []string

	if appErr, ok := errors.As(err); ok {
		status = appErr.StatusCode()
		if status != http.StatusInternalServerError {
			message = appErr.Message
			reasons = appErr.Reasons
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", RequestIDFromContext(c.Request.Context())).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}

	c.AbortWithStatusJSON(status, Response{
		Status:  StatusError,
		Message: message,
		Errors:  reasons,
	})
}

// RespondWithValidation sends a 400 with one reason per rejected field.
func RespondWithValidation(c *gin.Context, reasons []string) {
	RespondWithError(c, errors.NewValidation(reasons...))
}

type ctxKey struct{}

// WithRequestID stores the request id so it travels with the context
// into services and the audit trail.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
