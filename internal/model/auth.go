package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type AdminSessionRequest struct {
	Passcode string `json:"passcode" validate:"required"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AdminClaims are carried by the admin session token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

const RoleAdmin = "admin"
