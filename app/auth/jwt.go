package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims identifies the caller. The subject is the customer or admin id.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() *service.Actor {
	return &service.Actor{ID: c.Subject, Role: c.Role, Email: c.Email}
}

type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs an HS256 token for the given subject.
func (m *TokenManager) Issue(subject, role, email string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if !isKnownRole(role) {
		return "", errors.New("role must be customer or admin")
	}

	now := m.now()
	claims := Claims{
		Role:  role,
		Email: strings.TrimSpace(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" || !isKnownRole(claims.Role) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func isKnownRole(role string) bool {
	return role == service.RoleCustomer || role == service.RoleAdmin
}
