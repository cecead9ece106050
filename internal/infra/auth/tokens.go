package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenService выпускает операторские токены. Источник правды — один
// оператор из конфигурации: логин плюс bcrypt-хэш пароля.
type TokenService struct {
	operatorUser string
	operatorHash string
	privateKey   *rsa.PrivateKey
	tokenTTL     time.Duration
}

func NewTokenService(operatorUser, operatorHash string, privateKey *rsa.PrivateKey, tokenTTL time.Duration) *TokenService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &TokenService{
		operatorUser: operatorUser,
		operatorHash: operatorHash,
		privateKey:   privateKey,
		tokenTTL:     tokenTTL,
	}
}

// GenerateToken проверяет логин/пароль и подписывает токен закрытым ключом.
// Любой отказ — один и тот же текст, без уточнения причины.
func (s *TokenService) GenerateToken(username, password string) (*domain.TokenResponse, error) {
	if s.operatorUser == "" || username != s.operatorUser {
		return nil, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.operatorHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	expiresAt := time.Now().Add(s.tokenTTL)
	claims := &domain.OperatorClaims{
		Operator: username,
		Scopes:   map[string]bool{"sigil.issue": true, "lockdown.manage": true},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "janus-bridge",
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: signedToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	}, nil
}
