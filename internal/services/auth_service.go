package services

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"servex_backend/internal/models"
	"servex_backend/pkg/utils"
)

// LoginRequest DTO
type LoginRequest struct {
	Role string `json:"role" binding:"required"`
	PIN  string `json:"pin" binding:"required"`
}

// AuthResponse DTO
type AuthResponse struct {
	Role        string    `json:"role"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthService exchanges a station PIN for a role token.
type AuthService interface {
	Login(req LoginRequest) (*AuthResponse, error)
}

type authService struct {
	pinHashes map[string]string
}

// NewAuthService takes bcrypt hashes keyed by role. Roles without a hash cannot log in.
func NewAuthService(pinHashes map[string]string) AuthService {
	hashes := make(map[string]string, len(pinHashes))
	for role, hash := range pinHashes {
		if hash != "" {
			hashes[strings.ToLower(role)] = hash
		}
	}
	return &authService{pinHashes: hashes}
}

func (s *authService) Login(req LoginRequest) (*AuthResponse, error) {
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !models.ValidRole(role) {
		return nil, validationErrorf("unknown role %q", req.Role)
	}
	hash, ok := s.pinHashes[role]
	if !ok {
		utils.LogWarn("Login attempt for role without a configured PIN", map[string]interface{}{"role": role})
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := utils.GenerateAccessToken(role)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	utils.LogInfo("Role logged in", map[string]interface{}{"role": role})
	return &AuthResponse{Role: role, AccessToken: token, ExpiresAt: expiresAt}, nil
}
