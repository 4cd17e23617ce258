package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload inside every platform-issued JWT. This service
// never mints tokens; it only verifies ones issued by the identity
// service, so the claims carry everything needed to act on a request
// without calling back out.
type Claims struct {
	UserID      uuid.UUID  `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	OrgID       *uuid.UUID `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken validates a JWT string and extracts the claims. The
// signing method must be HMAC; tokens signed any other way are
// rejected before signature verification.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
