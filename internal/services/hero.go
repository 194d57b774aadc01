package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
)

var (
	ErrHeroNotFound = errors.New("hero not found")
	// ErrDuplicateImage marks an insert with an image id that already
	// exists. Accept flows treat this as success.
	ErrDuplicateImage = errors.New("hero with this image id already exists")
)

type HeroService struct {
	db *gorm.DB
}

func NewHeroService(db *gorm.DB) *HeroService {
	return &HeroService{db: db}
}

type HeroInput struct {
	Name            string            `json:"name" binding:"required,max=100"`
	UserName        string            `json:"userName" binding:"required,min=1,max=21"`
	PersonalityType string            `json:"personalityType" binding:"required,max=100"`
	ImageID         string            `json:"imageId" binding:"required,max=64"`
	Color           models.HeroColor  `json:"color" binding:"required"`
	Gender          models.Gender     `json:"gender" binding:"required"`
	ColorScores     models.ColorTally `json:"colorScores"`
	SessionID       *uint             `json:"sessionId"`
}

// Create persists an accepted hero. The image id is the idempotency
// boundary: a second insert with the same id fails with
// ErrDuplicateImage and leaves the first row untouched.
func (s *HeroService) Create(input HeroInput) (*models.Hero, error) {
	if !input.Color.Valid() {
		return nil, &ValidationError{Message: "invalid hero color"}
	}
	if !input.Gender.Valid() {
		return nil, &ValidationError{Message: "invalid gender"}
	}

	hero := models.Hero{
		Name:            input.Name,
		UserName:        input.UserName,
		PersonalityType: input.PersonalityType,
		ImageID:         input.ImageID,
		Color:           input.Color,
		Gender:          input.Gender,
		ColorScores:     input.ColorScores,
		Carousel:        true,
		SessionID:       input.SessionID,
	}

	if err := s.db.Create(&hero).Error; err != nil {
		var existing models.Hero
		if lookupErr := s.db.Where("image_id = ?", input.ImageID).First(&existing).Error; lookupErr == nil {
			return &existing, ErrDuplicateImage
		}
		return nil, err
	}
	return &hero, nil
}

func (s *HeroService) IncrementStats(color models.HeroColor, sessionID *uint) error {
	if !color.Valid() {
		return &ValidationError{Message: "invalid hero color"}
	}
	return s.db.Create(&models.HeroStat{Color: color, SessionID: sessionID}).Error
}

type Stats struct {
	Total   int               `json:"total"`
	ByColor models.ColorTally `json:"byColor"`
}

func (s *HeroService) GetStats(sessionID *uint) (*Stats, error) {
	query := s.db.Model(&models.HeroStat{})
	if sessionID != nil {
		query = query.Where("session_id = ?", *sessionID)
	}

	var rows []models.HeroStat
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(rows)}
	for _, row := range rows {
		if err := stats.ByColor.Increment(row.Color); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

type HeroFilter struct {
	SessionID    *uint
	CarouselOnly bool
	Limit        int
}

func (s *HeroService) ListLatest(filter HeroFilter) ([]models.Hero, error) {
	query := s.db.Order("created_at desc")
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.CarouselOnly {
		query = query.Where("carousel = ?", true)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var heroes []models.Hero
	if err := query.Find(&heroes).Error; err != nil {
		return nil, err
	}
	return heroes, nil
}

func (s *HeroService) Get(id uint) (*models.Hero, error) {
	var hero models.Hero
	if err := s.db.First(&hero, id).Error; err != nil {
		return nil, ErrHeroNotFound
	}
	return &hero, nil
}

type HeroFlags struct {
	Printed  *bool `json:"printed"`
	Carousel *bool `json:"carousel"`
}

func (s *HeroService) UpdateFlags(id uint, flags HeroFlags) (*models.Hero, error) {
	var hero models.Hero
	if err := s.db.First(&hero, id).Error; err != nil {
		return nil, ErrHeroNotFound
	}

	if flags.Printed != nil {
		hero.Printed = *flags.Printed
	}
	if flags.Carousel != nil {
		hero.Carousel = *flags.Carousel
	}

	if err := s.db.Save(&hero).Error; err != nil {
		return nil, err
	}
	return &hero, nil
}

func (s *HeroService) Delete(id uint) (*models.Hero, error) {
	var hero models.Hero
	if err := s.db.First(&hero, id).Error; err != nil {
		return nil, ErrHeroNotFound
	}
	if err := s.db.Delete(&hero).Error; err != nil {
		return nil, err
	}
	return &hero, nil
}

// ListOlderThan returns heroes past the retention cutoff; the sweep
// deletes their provider images before calling Delete.
func (s *HeroService) ListOlderThan(cutoff time.Time) ([]models.Hero, error) {
	var heroes []models.Hero
	if err := s.db.Where("created_at < ?", cutoff).Find(&heroes).Error; err != nil {
		return nil, err
	}
	return heroes, nil
}
