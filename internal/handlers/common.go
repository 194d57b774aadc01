package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/services"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// writeServiceError maps the shared error taxonomy onto HTTP statuses.
// Rate limits keep their Retry-After so clients can tell users to wait.
func writeServiceError(c *gin.Context, err error) {
	var rl *services.RateLimitError
	var ve *services.ValidationError
	var api *services.APIError

	switch {
	case errors.As(err, &rl):
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: err.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ve.Message})
	case errors.As(err, &api):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream provider error"})
	case errors.Is(err, services.ErrRunNotFound),
		errors.Is(err, services.ErrHeroNotFound),
		errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrWrongPhase),
		errors.Is(err, services.ErrGenerating),
		errors.Is(err, services.ErrRetryLimit),
		errors.Is(err, services.ErrAcceptToken),
		errors.Is(err, services.ErrNoSession):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return uint(value), true
}

// optionalSessionID reads a sessionId query parameter; absent means
// "all sessions".
func optionalSessionID(c *gin.Context) (*uint, bool) {
	raw := c.Query("sessionId")
	if raw == "" {
		return nil, true
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid sessionId"})
		return nil, false
	}
	id := uint(value)
	return &id, true
}
