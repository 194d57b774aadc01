package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/services"
)

type SessionHandler struct {
	sessionService *services.SessionService
}

func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// List godoc
// @Summary      List sessions
// @Description  All sessions, or only the currently active ones with active=true
// @Tags         sessions
// @Produce      json
// @Param        active query bool false "Only currently active sessions"
// @Success      200 {array} models.Session
// @Router       /api/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var (
		sessions []models.Session
		err      error
	)
	if c.Query("active") == "true" {
		sessions, err = h.sessionService.ListActive()
	} else {
		sessions, err = h.sessionService.List()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

type ResolveResponse struct {
	Selection string           `json:"selection" example:"auto"`
	Session   *models.Session  `json:"session,omitempty"`
	Sessions  []models.Session `json:"sessions,omitempty"`
}

// Resolve godoc
// @Summary      Resolve the visitor's session
// @Description  Adopts a valid requested session, auto-selects a single active one, returns all candidates when a choice is needed
// @Tags         sessions
// @Produce      json
// @Param        sessionId query int false "Session already present in the page URL"
// @Success      200 {object} ResolveResponse
// @Router       /api/sessions/resolve [get]
func (h *SessionHandler) Resolve(c *gin.Context) {
	requested, ok := optionalSessionID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Resolve(requested)
	if err != nil {
		if errors.Is(err, services.ErrChoiceRequired) {
			active, listErr := h.sessionService.ListActive()
			if listErr != nil {
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: listErr.Error()})
				return
			}
			c.JSON(http.StatusOK, ResolveResponse{Selection: "choice_required", Sessions: active})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	if session == nil {
		// No active sessions: heroes are recorded without one.
		c.JSON(http.StatusOK, ResolveResponse{Selection: "all"})
		return
	}
	c.JSON(http.StatusOK, ResolveResponse{Selection: "auto", Session: session})
}

// Create godoc
// @Summary      Create a session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.SessionInput true "Session data"
// @Success      201 {object} models.Session
// @Failure      400 {object} ErrorResponse
// @Router       /api/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var input services.SessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	session, err := h.sessionService.Create(input)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Update godoc
// @Summary      Update a session
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Param        request body services.SessionInput true "Session data"
// @Success      200 {object} models.Session
// @Failure      404 {object} ErrorResponse
// @Router       /api/sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var input services.SessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	session, err := h.sessionService.Update(id, input)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Delete godoc
// @Summary      Delete a session
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.sessionService.Delete(id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "session deleted"})
}
