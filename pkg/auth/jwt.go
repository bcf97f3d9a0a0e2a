package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/medibook-api/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTService interface {
	GenerateAdminToken(now time.Time) (string, time.Time, error)
	ValidateToken(token string) (*model.AdminClaims, error)
}

type jwtService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTService signs tokens with HS256.
func NewJWTService(secret, issuer string, ttl time.Duration) JWTService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &jwtService{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (s *jwtService) GenerateAdminToken(now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.ttl)
	claims := model.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   model.RoleAdmin,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: model.RoleAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *jwtService) ValidateToken(tokenString string) (*model.AdminClaims, error) {
	claims := &model.AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Role != model.RoleAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
