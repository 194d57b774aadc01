package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/services"
)

// HeroHandler exposes the thin provider proxies: hero name, hero image
// and image deletion, plus the dev image proxy and card mailing.
type HeroHandler struct {
	nameService  *services.HeroNameService
	imageService *services.AIImageService
	heroService  *services.HeroService
	scoring      *services.ScoringService
	mailer       *services.MailerService
	environment  string
	log          zerolog.Logger
}

func NewHeroHandler(nameService *services.HeroNameService, imageService *services.AIImageService, heroService *services.HeroService, scoring *services.ScoringService, mailer *services.MailerService, environment string, logger zerolog.Logger) *HeroHandler {
	return &HeroHandler{
		nameService:  nameService,
		imageService: imageService,
		heroService:  heroService,
		scoring:      scoring,
		mailer:       mailer,
		environment:  environment,
		log:          logger,
	}
}

type HeroNameRequest struct {
	Personality string           `json:"personality" binding:"required,max=100" example:"Den analytiske"`
	Gender      models.Gender    `json:"gender" binding:"required" example:"female"`
	Color       models.HeroColor `json:"color" binding:"required" example:"blue"`
}

type HeroNameResponse struct {
	Name string `json:"name" example:"Tankemesteren"`
}

// GenerateName godoc
// @Summary      Generate a hero name
// @Description  Produce a short Norwegian hero name for the given personality. Falls back to a default name when the provider fails.
// @Tags         hero
// @Accept       json
// @Produce      json
// @Param        request body HeroNameRequest true "Name parameters"
// @Success      200 {object} HeroNameResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/hero-name [post]
func (h *HeroHandler) GenerateName(c *gin.Context) {
	var req HeroNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	name, _, err := h.nameService.GenerateName(c.Request.Context(), req.Personality, req.Gender, req.Color)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, HeroNameResponse{Name: name})
}

type HeroImageRequest struct {
	Personality   string           `json:"personality" binding:"required,max=100"`
	Gender        models.Gender    `json:"gender" binding:"required"`
	Color         models.HeroColor `json:"color" binding:"required"`
	OriginalPhoto string           `json:"originalPhoto"`
}

type HeroImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// GenerateImage godoc
// @Summary      Generate a hero image
// @Description  Submit a generation job (optionally conditioned on a photo) and wait for the finished image
// @Tags         hero
// @Accept       json
// @Produce      json
// @Param        request body HeroImageRequest true "Image parameters"
// @Success      200 {object} HeroImageResponse
// @Failure      400 {object} ErrorResponse
// @Failure      429 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /api/hero-image [post]
func (h *HeroHandler) GenerateImage(c *gin.Context) {
	var req HeroImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if !req.Gender.Valid() || !req.Color.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid gender or color"})
		return
	}

	ctx := c.Request.Context()

	initImageID := ""
	if req.OriginalPhoto != "" {
		id, err := h.imageService.UploadImage(ctx, req.OriginalPhoto)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		initImageID = id
	}

	jobID, err := h.imageService.GenerateImage(ctx, services.GenerationParams{
		Personality: req.Personality,
		Gender:      string(req.Gender),
		Color:       string(req.Color),
		InitImageID: initImageID,
	}, 1)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	imageURL, err := h.imageService.GetGeneratedImage(ctx, jobID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, HeroImageResponse{ImageURL: imageURL})
}

type DeleteImageRequest struct {
	ImageID string `json:"imageId" binding:"required"`
	Type    string `json:"type" binding:"required,oneof=initial generated"`
}

type DeleteImageResponse struct {
	Success bool `json:"success"`
}

// DeleteImage godoc
// @Summary      Delete a provider image
// @Description  Best-effort deletion of an uploaded or generated image; failure is reported, never raised
// @Tags         hero
// @Accept       json
// @Produce      json
// @Param        request body DeleteImageRequest true "Image reference"
// @Success      200 {object} DeleteImageResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/hero-image/delete [delete]
func (h *HeroHandler) DeleteImage(c *gin.Context) {
	var req DeleteImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ok := h.imageService.DeleteImage(c.Request.Context(), req.ImageID, req.Type, 3)
	c.JSON(http.StatusOK, DeleteImageResponse{Success: ok})
}

type ImageURLResponse struct {
	URL string `json:"url"`
}

// GetImage godoc
// @Summary      Resolve a generated image
// @Description  Returns the CDN URL for an image id. With raw=true outside production the bytes are proxied through the backend.
// @Tags         hero
// @Produce      json
// @Param        id path string true "Image ID"
// @Param        raw query bool false "Stream image bytes instead of returning the URL"
// @Success      200 {object} ImageURLResponse
// @Failure      502 {object} ErrorResponse
// @Router       /api/hero-image/{id} [get]
func (h *HeroHandler) GetImage(c *gin.Context) {
	imageID := c.Param("id")

	if c.Query("raw") == "true" && h.environment != "production" {
		data, contentType, err := h.imageService.FetchImage(c.Request.Context(), imageID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.Data(http.StatusOK, contentType, data)
		return
	}

	c.JSON(http.StatusOK, ImageURLResponse{URL: h.imageService.ImageURL(imageID)})
}

type SendHeroCardRequest struct {
	HeroID uint   `json:"heroId" binding:"required"`
	Email  string `json:"email" binding:"required,email"`
}

// SendHeroCard godoc
// @Summary      Mail a hero card link
// @Description  Sends the printable card link to the given address. Delivery happens in the background.
// @Tags         hero
// @Accept       json
// @Produce      json
// @Param        request body SendHeroCardRequest true "Recipient"
// @Success      202 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/hero-card/send [post]
func (h *HeroHandler) SendHeroCard(c *gin.Context) {
	var req SendHeroCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	hero, err := h.heroService.Get(req.HeroID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	link := h.scoring.PrintLink(*hero)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.mailer.SendHeroCard(ctx, req.Email, hero.Name, link); err != nil {
			h.log.Warn().Err(err).Uint("hero", hero.ID).Msg("hero card mail failed")
		}
	}()

	c.JSON(http.StatusAccepted, MessageResponse{Message: "mail queued"})
}
