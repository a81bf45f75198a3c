package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginResult -> token staff beserta profilnya
type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// AuthService login staff (kasir, station, admin) dengan email + password
type AuthService struct {
	db  *gorm.DB
	jwt *utils.JWTManager
	now func() time.Time
}

func NewAuthService(db *gorm.DB, jwt *utils.JWTManager) *AuthService {
	return &AuthService{db: db, jwt: jwt, now: time.Now}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalidRequest("email and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		utils.ErrorLogger.WithError(err).WithField("user_id", user.ID).Warn("update last login failed")
	}
	user.LastLoginAt = &now

	utils.InfoLogger.WithField("user_id", user.ID).WithField("role", user.Role).Info("staff logged in")
	return &LoginResult{Token: token, User: user}, nil
}

// Profile -> data user dari token
func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
