package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pushnami/api/apperr"
	"pushnami/api/logger"
)

// respondError maps the error taxonomy onto HTTP. Anything unrecognised is
// logged with its detail and reported as a generic failure.
func respondError(c *gin.Context, log *logger.Logger, err error, failure string) {
	if ve, ok := apperr.IsValidation(err); ok {
		body := gin.H{"error": ve.Reason}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		if ve.Index >= 0 {
			body["index"] = ve.Index
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	default:
		log.Error(failure, "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": failure})
	}
}

// respondBindError reports an undecodable request body. A type mismatch is
// reported against its JSON key; decoder text never reaches the caller.
func respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": typeErr.Field + " has the wrong type",
			"field": typeErr.Field,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Invalid(name, name+" must be a UUID")
	}
	return id, nil
}
