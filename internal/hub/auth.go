package hub

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity attached to a connection whose upgrade carried a
// valid token.
type Claims struct {
	UserID   string
	Username string
}

// TokenValidator checks HMAC-signed JWTs presented at upgrade time. When a
// server is built with one, upgrades without a valid token are rejected
// with 401 before any connection exists.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// Validate parses and verifies tokenString and extracts the identity claims.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("user_id claim is not a string")
	}
	username, ok := claims["username"].(string)
	if !ok {
		return nil, errors.New("username claim is not a string")
	}

	return &Claims{UserID: userID, Username: username}, nil
}

// bearerToken extracts the token from an upgrade request: the
// Authorization header (format: "Bearer <token>") or, for browser clients
// that cannot set headers on a websocket, the token query parameter.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
