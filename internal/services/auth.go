package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/models"
	"github.com/JosteinSandKjellsen/hero-app-sub000/internal/ratelimit"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService struct {
	db        *gorm.DB
	jwtSecret []byte
	attempts  ratelimit.AttemptStore
}

func NewAuthService(db *gorm.DB, jwtSecret string, attempts ratelimit.AttemptStore) *AuthService {
	return &AuthService{db: db, jwtSecret: []byte(jwtSecret), attempts: attempts}
}

func (s *AuthService) Register(username, password string) (string, error) {
	var existing models.Admin
	if err := s.db.Where("username = ?", username).First(&existing).Error; err == nil {
		return "", errors.New("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	admin := models.Admin{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return "", err
	}

	return s.GenerateToken(admin.ID)
}

// Login authenticates an admin. The attempt store is consulted before
// credentials: a locked identifier is refused with a RateLimitError no
// matter what password was sent.
func (s *AuthService) Login(ctx context.Context, username, password, clientKey string) (string, error) {
	status, err := s.attempts.Check(ctx, clientKey)
	if err != nil {
		return "", err
	}
	if status.Locked {
		return "", &RateLimitError{RetryAfter: status.RetryAfter}
	}

	var admin models.Admin
	findErr := s.db.Where("username = ?", username).First(&admin).Error
	if findErr == nil {
		findErr = bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password))
	}
	if findErr != nil {
		status, recordErr := s.attempts.RecordFailure(ctx, clientKey)
		if recordErr != nil {
			return "", recordErr
		}
		if status.Locked {
			return "", &RateLimitError{RetryAfter: status.RetryAfter}
		}
		return "", ErrInvalidCredentials
	}

	if err := s.attempts.Reset(ctx, clientKey); err != nil {
		return "", err
	}
	return s.GenerateToken(admin.ID)
}

func (s *AuthService) GenerateToken(adminID uint) (string, error) {
	claims := jwt.MapClaims{
		"admin_id": adminID,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}

	adminIDFloat, ok := claims["admin_id"].(float64)
	if !ok {
		return 0, errors.New("invalid admin_id in token")
	}

	return uint(adminIDFloat), nil
}
