package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the identity asserted by the external auth service.
// The core validates the signature but never issues tokens itself.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
