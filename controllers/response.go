package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pricewatch_backend/models"
)

// APIResponse is the standard response envelope
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// successResponse writes a success envelope
func successResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// errorResponse writes an error envelope
func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// respondError maps domain errors to status codes: validation 400,
// not-found 404, quota 429, anything else 500.
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var notFoundErr *models.NotFoundError
	var quotaErr *models.QuotaExceededError

	switch {
	case errors.As(err, &validationErr):
		errorResponse(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFoundErr):
		errorResponse(c, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &quotaErr):
		errorResponse(c, http.StatusTooManyRequests, quotaErr.Error())
	default:
		errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
