package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrChoiceRequired signals that several sessions are active and the
	// visitor has to pick one explicitly.
	ErrChoiceRequired = errors.New("several sessions active, selection required")
)

type SessionService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db, now: time.Now}
}

type SessionInput struct {
	Name        string     `json:"name" binding:"required,min=1,max=100"`
	Description string     `json:"description" binding:"max=500"`
	StartDate   time.Time  `json:"startDate" binding:"required"`
	EndDate     *time.Time `json:"endDate"`
	Active      *bool      `json:"active"`
}

func (s *SessionService) Create(input SessionInput) (*models.Session, error) {
	session := models.Session{
		Name:        input.Name,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Active:      true,
	}
	if input.Active != nil {
		session.Active = *input.Active
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) Update(id uint, input SessionInput) (*models.Session, error) {
	var session models.Session
	if err := s.db.First(&session, id).Error; err != nil {
		return nil, ErrSessionNotFound
	}

	session.Name = input.Name
	session.Description = input.Description
	session.StartDate = input.StartDate
	session.EndDate = input.EndDate
	if input.Active != nil {
		session.Active = *input.Active
	}

	if err := s.db.Save(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) Delete(id uint) error {
	result := s.db.Delete(&models.Session{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SessionService) Get(id uint) (*models.Session, error) {
	var session models.Session
	if err := s.db.First(&session, id).Error; err != nil {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *SessionService) List() ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.Order("start_date desc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListActive returns sessions marked active whose window contains now.
// Rows are re-filtered in process as a guard against clock skew between
// the database and the app.
func (s *SessionService) ListActive() ([]models.Session, error) {
	var sessions []models.Session
	if err := s.db.Where("active = ?", true).Order("start_date desc").Find(&sessions).Error; err != nil {
		return nil, err
	}

	now := s.now()
	filtered := sessions[:0]
	for _, session := range sessions {
		if session.CurrentlyActive(now) {
			filtered = append(filtered, session)
		}
	}
	return filtered, nil
}

// Resolve picks the session for the current visitor. A valid requested
// id is adopted silently; with no active session the choice is "all"
// (nil); a single active session auto-selects; more than one requires
// an explicit choice.
func (s *SessionService) Resolve(requestedID *uint) (*models.Session, error) {
	active, err := s.ListActive()
	if err != nil {
		return nil, err
	}

	if requestedID != nil {
		for i := range active {
			if active[i].ID == *requestedID {
				return &active[i], nil
			}
		}
	}

	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return &active[0], nil
	default:
		return nil, ErrChoiceRequired
	}
}
