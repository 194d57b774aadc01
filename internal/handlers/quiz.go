package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/services"
)

type QuizHandler struct {
	quizService *services.QuizService
}

func NewQuizHandler(quizService *services.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

type StartQuizRequest struct {
	Name      string        `json:"name" binding:"required,min=1,max=21" example:"Nora"`
	Gender    models.Gender `json:"gender" binding:"required" example:"female"`
	SessionID *uint         `json:"sessionId"`
}

// Start godoc
// @Summary      Start a quiz run
// @Description  Register a visitor and open the question flow
// @Tags         quiz
// @Accept       json
// @Produce      json
// @Param        request body StartQuizRequest true "Registration data"
// @Success      201 {object} services.RunView
// @Failure      400 {object} ErrorResponse
// @Router       /api/quiz [post]
func (h *QuizHandler) Start(c *gin.Context) {
	var req StartQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	view, err := h.quizService.Start(models.UserData{Name: req.Name, Gender: req.Gender}, req.SessionID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// Questions godoc
// @Summary      List quiz questions
// @Tags         quiz
// @Produce      json
// @Success      200 {array} services.QuizQuestion
// @Router       /api/quiz/questions [get]
func (h *QuizHandler) Questions(c *gin.Context) {
	c.JSON(http.StatusOK, services.Questions())
}

// Get godoc
// @Summary      Get quiz run state
// @Description  Poll the current phase and generation step of a run
// @Tags         quiz
// @Produce      json
// @Param        id path string true "Run ID"
// @Success      200 {object} services.RunView
// @Failure      404 {object} ErrorResponse
// @Router       /api/quiz/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	view, err := h.quizService.Get(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type AnswerRequest struct {
	Color models.HeroColor `json:"color" binding:"required" example:"green"`
}

// Answer godoc
// @Summary      Answer the current question
// @Description  Record the chosen option's color and advance the flow
// @Tags         quiz
// @Accept       json
// @Produce      json
// @Param        id path string true "Run ID"
// @Param        request body AnswerRequest true "Chosen color"
// @Success      200 {object} services.RunView
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/quiz/{id}/answers [post]
func (h *QuizHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	view, err := h.quizService.Answer(c.Param("id"), req.Color)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type PhotoRequest struct {
	// Photo is a base64 data URL (JPEG or PNG, max 5MB decoded); empty
	// means the visitor skipped the camera.
	Photo string `json:"photo"`
}

// SubmitPhoto godoc
// @Summary      Submit the captured photo
// @Description  Store the photo (or none) and start hero generation. Poll the run for progress.
// @Tags         quiz
// @Accept       json
// @Produce      json
// @Param        id path string true "Run ID"
// @Param        request body PhotoRequest true "Photo payload"
// @Success      202 {object} services.RunView
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/quiz/{id}/photo [post]
func (h *QuizHandler) SubmitPhoto(c *gin.Context) {
	var req PhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	view, err := h.quizService.SubmitPhoto(c.Param("id"), req.Photo)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

type AcceptRequest struct {
	Token string `json:"token" binding:"required"`
}

type AcceptResponse struct {
	Run     *services.RunView `json:"run"`
	Hero    *models.Hero      `json:"hero,omitempty"`
	Warning string            `json:"warning,omitempty"`
}

// Accept godoc
// @Summary      Accept the previewed hero
// @Description  Persist the hero and show results. Persistence problems surface as a warning, never as a failure.
// @Tags         quiz
// @Accept       json
// @Produce      json
// @Param        id path string true "Run ID"
// @Param        request body AcceptRequest true "One-shot accept token from the preview state"
// @Success      200 {object} AcceptResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/quiz/{id}/accept [post]
func (h *QuizHandler) Accept(c *gin.Context) {
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.quizService.Accept(c.Param("id"), req.Token)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, AcceptResponse{Run: result.View, Hero: result.Hero, Warning: result.Warning})
}

// Retry godoc
// @Summary      Retry hero generation
// @Description  Discard the previewed image and rerun generation with the stored photo. Allowed twice per run.
// @Tags         quiz
// @Produce      json
// @Param        id path string true "Run ID"
// @Success      202 {object} services.RunView
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/quiz/{id}/retry [post]
func (h *QuizHandler) Retry(c *gin.Context) {
	view, err := h.quizService.Retry(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

// Reset godoc
// @Summary      Abandon a quiz run
// @Tags         quiz
// @Produce      json
// @Param        id path string true "Run ID"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/quiz/{id}/reset [post]
func (h *QuizHandler) Reset(c *gin.Context) {
	if err := h.quizService.Reset(c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "run reset"})
}
