package services

import (
	"golang.org/x/crypto/bcrypt"

	apperrors "pocketbook/internal/errors"
)

// authService verifies the owner's access key against a bcrypt hash.
type authService struct {
	accessKeyHash []byte
}

// NewAuthService creates a new AuthServicer. An empty hash rejects every key.
func NewAuthService(accessKeyHash string) AuthServicer {
	return &authService{accessKeyHash: []byte(accessKeyHash)}
}

// Authenticate returns nil when accessKey matches the configured hash.
func (s *authService) Authenticate(accessKey string) error {
	if len(s.accessKeyHash) == 0 || accessKey == "" {
		return apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.accessKeyHash, []byte(accessKey)); err != nil {
		return apperrors.ErrInvalidCredentials
	}
	return nil
}

// HashAccessKey returns the bcrypt hash to store in ACCESS_KEY_HASH.
func HashAccessKey(accessKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(accessKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
