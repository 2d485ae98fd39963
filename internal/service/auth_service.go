// Package service holds business logic that sits between transport and
// storage. Auth works on operator accounts: short numeric PINs instead of
// passwords, because the app runs on a shared till.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tpv-haido/internal/domain"
	"tpv-haido/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for PIN hashing. PINs are 4 digits,
	// so the hash only slows down online guessing, not offline cracking.
	BcryptCost = 10

	TokenExpiration = 12 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid operator or pin")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUsersUnsupported   = errors.New("active backend does not store users")
)

// Claims are the JWT claims issued on login.
type Claims struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// AuthService authenticates operators against whichever backend is active.
// Backends without the user capability reject every login.
type AuthService struct {
	adapter   storage.Adapter
	jwtSecret string
}

// NewAuthService creates an auth service over the given backend.
func NewAuthService(adapter storage.Adapter, jwtSecret string) *AuthService {
	return &AuthService{adapter: adapter, jwtSecret: jwtSecret}
}

// Login verifies the operator's PIN and issues a signed token. Lookup is by
// operator id; the client shows the operator list and asks for the PIN.
func (s *AuthService) Login(ctx context.Context, userID int64, pin string) (string, *domain.User, error) {
	users, ok := s.adapter.(storage.UserStore)
	if !ok {
		return "", nil, ErrUsersUnsupported
	}

	all, err := users.GetUsers(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load users: %w", err)
	}

	var user *domain.User
	for i := range all {
		if all[i].ID == userID {
			user = &all[i]
			break
		}
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PIN), []byte(pin)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return token, user, nil
}

// Operators lists the accounts available for login, with PIN hashes
// blanked out.
func (s *AuthService) Operators(ctx context.Context) ([]domain.User, error) {
	users, ok := s.adapter.(storage.UserStore)
	if !ok {
		return nil, ErrUsersUnsupported
	}
	all, err := users.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for i := range all {
		all[i].PIN = ""
	}
	return all, nil
}

// ValidateToken parses and verifies a token issued by Login.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// HashPIN hashes a PIN for storage on a user record.
func HashPIN(pin string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
