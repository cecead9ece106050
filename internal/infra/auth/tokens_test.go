package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	svc := NewTokenService("operator", string(hash), key, time.Hour)
	resp, err := svc.GenerateToken("operator", "secret-pass")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn <= 0 {
		t.Fatalf("response = %+v", resp)
	}

	v := NewBaseValidator(&key.PublicKey)
	claims, err := v.VerifyToken("Bearer " + resp.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Operator != "operator" || !claims.Scopes["sigil.issue"] {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestTokenRejectsBadCredentials(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret-pass"), bcrypt.MinCost)
	svc := NewTokenService("operator", string(hash), key, time.Hour)

	if _, err := svc.GenerateToken("operator", "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
	if _, err := svc.GenerateToken("intruder", "secret-pass"); err == nil {
		t.Fatal("wrong username accepted")
	}
}

func TestValidatorRejectsForeignKey(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	hash, _ := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)

	svc := NewTokenService("operator", string(hash), key, time.Hour)
	resp, err := svc.GenerateToken("operator", "pass")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	v := NewBaseValidator(&other.PublicKey)
	if _, err := v.VerifyToken(resp.AccessToken); err == nil {
		t.Fatal("token signed by another key accepted")
	}
}
