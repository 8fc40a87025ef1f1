package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrPasswordMismatch = errors.New("password mismatch")
)

// DefaultBcryptCost is the default bcrypt cost factor.
const DefaultBcryptCost = 10

// PasswordService handles password hashing and verification for local
// accounts.
type PasswordService struct {
	cost int
}

func NewPasswordService() *PasswordService {
	return &PasswordService{cost: DefaultBcryptCost}
}

func NewPasswordServiceWithCost(cost int) *PasswordService {
	if cost < bcrypt.MinCost {
		cost = DefaultBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordService{cost: cost}
}

// HashPassword hashes a password with bcrypt. Passwords longer than bcrypt's
// 72-byte limit are pre-hashed with SHA-256.
func (s *PasswordService) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword(preparePassword(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a password against a stored hash.
func (s *PasswordService) VerifyPassword(password, hash string) error {
	if password == "" || hash == "" {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), preparePassword(password))
	if err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

func preparePassword(password string) []byte {
	b := []byte(password)
	if len(b) <= 72 {
		return b
	}
	sum := sha256.Sum256(b)
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
