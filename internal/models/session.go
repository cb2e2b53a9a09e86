package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the payload of the host-issued session token. This
// service only verifies the host's token to resolve the acting user; it
// never issues tokens of its own.
type SessionClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
