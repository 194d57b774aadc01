package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/services"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/ws"
)

// StatsHandler covers the hero-stats counters and the latest-heroes
// records used by the admin dashboard and the carousel.
type StatsHandler struct {
	heroService  *services.HeroService
	imageService *services.AIImageService
	scoring      *services.ScoringService
	hub          *ws.Hub
	log          zerolog.Logger
}

func NewStatsHandler(heroService *services.HeroService, imageService *services.AIImageService, scoring *services.ScoringService, hub *ws.Hub, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		heroService:  heroService,
		imageService: imageService,
		scoring:      scoring,
		hub:          hub,
		log:          logger,
	}
}

type CreateStatRequest struct {
	Color     models.HeroColor `json:"color" binding:"required" example:"red"`
	SessionID *uint            `json:"sessionId"`
}

// CreateStat godoc
// @Summary      Record a hero color stat
// @Tags         stats
// @Accept       json
// @Produce      json
// @Param        request body CreateStatRequest true "Stat data"
// @Success      201 {object} CreateStatRequest
// @Failure      400 {object} ErrorResponse
// @Router       /api/hero-stats [post]
func (h *StatsHandler) CreateStat(c *gin.Context) {
	var req CreateStatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.heroService.IncrementStats(req.Color, req.SessionID); err != nil {
		writeServiceError(c, err)
		return
	}

	h.broadcastStats(req.SessionID)
	c.JSON(http.StatusCreated, req)
}

// GetStats godoc
// @Summary      Get hero stats
// @Description  Total accepted heroes and the per-color breakdown, optionally scoped to a session
// @Tags         stats
// @Produce      json
// @Param        sessionId query int false "Session ID"
// @Success      200 {object} services.Stats
// @Router       /api/hero-stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	sessionID, ok := optionalSessionID(c)
	if !ok {
		return
	}

	stats, err := h.heroService.GetStats(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *StatsHandler) broadcastStats(sessionID *uint) {
	stats, err := h.heroService.GetStats(sessionID)
	if err != nil {
		h.log.Warn().Err(err).Msg("stats broadcast skipped")
		return
	}
	h.hub.Broadcast(ws.TopicStats, ws.WSMessage{Type: "stats", Data: stats})
}

// CreateHero godoc
// @Summary      Record an accepted hero
// @Description  Insert a hero record. The image id is unique; a repeated insert returns 409 with the existing record.
// @Tags         heroes
// @Accept       json
// @Produce      json
// @Param        request body services.HeroInput true "Hero data"
// @Success      201 {object} models.Hero
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} models.Hero
// @Router       /api/latest-heroes [post]
func (h *StatsHandler) CreateHero(c *gin.Context) {
	var input services.HeroInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	hero, err := h.heroService.Create(input)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateImage) {
			c.JSON(http.StatusConflict, hero)
			return
		}
		writeServiceError(c, err)
		return
	}

	h.hub.Broadcast(ws.TopicCarousel, ws.WSMessage{Type: "hero", Data: hero})
	c.JSON(http.StatusCreated, hero)
}

type HeroResponse struct {
	models.Hero
	PrintLink string `json:"printLink"`
}

// ListHeroes godoc
// @Summary      List latest heroes
// @Tags         heroes
// @Produce      json
// @Param        limit query int false "Max records"
// @Param        sessionId query int false "Session ID"
// @Param        carousel query bool false "Only carousel-visible heroes"
// @Success      200 {array} HeroResponse
// @Router       /api/latest-heroes [get]
func (h *StatsHandler) ListHeroes(c *gin.Context) {
	sessionID, ok := optionalSessionID(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		limit = 20
	}
	heroes, err := h.heroService.ListLatest(services.HeroFilter{
		SessionID:    sessionID,
		CarouselOnly: c.Query("carousel") == "true",
		Limit:        limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	out := make([]HeroResponse, 0, len(heroes))
	for _, hero := range heroes {
		out = append(out, HeroResponse{Hero: hero, PrintLink: h.scoring.PrintLink(hero)})
	}
	c.JSON(http.StatusOK, out)
}

// UpdateHero godoc
// @Summary      Update hero flags
// @Description  Toggle the printed and carousel flags
// @Tags         heroes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Hero ID"
// @Param        request body services.HeroFlags true "Flags"
// @Success      200 {object} models.Hero
// @Failure      404 {object} ErrorResponse
// @Router       /api/latest-heroes/{id} [put]
func (h *StatsHandler) UpdateHero(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var flags services.HeroFlags
	if err := c.ShouldBindJSON(&flags); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	hero, err := h.heroService.UpdateFlags(id, flags)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hero)
}

// DeleteHero godoc
// @Summary      Delete a hero
// @Description  Removes the record and best-effort deletes the provider image
// @Tags         heroes
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Hero ID"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/latest-heroes/{id} [delete]
func (h *StatsHandler) DeleteHero(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	hero, err := h.heroService.Delete(id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	// Provider cleanup is advisory and must not delay the response.
	go func(imageID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if !h.imageService.DeleteImage(ctx, imageID, services.ImageKindGenerated, 3) {
			h.log.Warn().Str("image", imageID).Msg("provider image for deleted hero not removed")
		}
	}(hero.ImageID)

	c.JSON(http.StatusOK, MessageResponse{Message: "hero deleted"})
}
