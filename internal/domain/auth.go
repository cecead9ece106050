package domain

import "github.com/golang-jwt/jwt/v5"

// OperatorClaims — claims RS256-токена оператора консоли выпуска сигилов.
type OperatorClaims struct {
	Operator string          `json:"operator"`
	Scopes   map[string]bool `json:"scopes"` // например "sigil.issue": true
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}
