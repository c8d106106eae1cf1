package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingKey   = errors.New("jwt secret is empty")
)

// Role is the access level carried by an API key.
type Role string

const (
	// RoleAnon is the public key shipped to browsers and shop tools.
	RoleAnon Role = "anon"
	// RoleService is for trusted back-office jobs.
	RoleService Role = "service"
)

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAnon, RoleService:
		return true
	default:
		return false
	}
}

// Claims represents JWT claims
type Claims struct {
	Subject string `json:"sub"`
	Role    Role   `json:"role"`
	Exp     int64  `json:"exp,omitempty"`
}

// Service issues and validates API keys
type Service struct {
	jwtSecret []byte
}

// NewService creates a new authentication service
func NewService(secret string) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	return &Service{jwtSecret: []byte(secret)}, nil
}

// IssueKey mints an API key for role. A zero ttl issues a key that does not
// expire.
func (s *Service) IssueKey(role Role, subject string, ttl time.Duration) (string, error) {
	if !IsValidRole(role) {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": string(role),
		"iat":  now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	roleStr, ok := claims["role"].(string)
	if !ok || !IsValidRole(Role(roleStr)) {
		return nil, ErrInvalidToken
	}
	subject, _ := claims["sub"].(string)

	var exp int64
	if v, ok := claims["exp"].(float64); ok {
		exp = int64(v)
	}

	return &Claims{
		Subject: subject,
		Role:    Role(roleStr),
		Exp:     exp,
	}, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}
