// Package sigil реализует выпуск и проверку аутентификационных сигилов —
// HMAC-подписанных учетных строк вида PREFIX-ROLE-TIER-TYPE-TOKEN:SIGNATURE.
package sigil

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"

	"golang.org/x/crypto/hkdf"
)

const (
	tokenBytes  = 10 // 20 hex-символов, ≥80 бит энтропии
	secretBytes = 16
	sigHexLen   = 16 // усеченный HMAC-SHA256

	// Контекст деривации ключа. Менять нельзя — инвалидирует все выданные сигилы.
	kdfInfo = "janus-sigil-v1"
)

// Authenticator выпускает и проверяет сигилы. Мастер-секрет — явная
// зависимость конструктора, а не ambient-глобал: один процесс — один секрет.
type Authenticator struct {
	masterSecret []byte
	now          func() time.Time
}

func NewAuthenticator(masterSecret string) *Authenticator {
	return &Authenticator{
		masterSecret: []byte(masterSecret),
		now:          time.Now,
	}
}

// Issue генерирует свежий токен и секрет агента, подписывает канонические поля
// и возвращает сигил вместе с секретом. Секрет доставляется агенту
// out-of-band и никогда не логируется.
func (a *Authenticator) Issue(prefix domain.AgentPrefix, role domain.AgentRole, tier domain.AgentTier, typ domain.SigilType) (*domain.Sigil, string, error) {
	if !prefix.Valid() || !role.Valid() || !tier.Valid() || !typ.Valid() {
		return nil, "", domain.NewBridgeError(domain.CodeInvalidParameters,
			fmt.Sprintf("unrecognized sigil parameters: %s-%s-%s-%s", prefix, role, tier, typ))
	}

	token, err := randomHex(tokenBytes)
	if err != nil {
		return nil, "", domain.NewBridgeError(domain.CodeInternalError, "entropy source unavailable")
	}
	agentSecret, err := randomHex(secretBytes)
	if err != nil {
		return nil, "", domain.NewBridgeError(domain.CodeInternalError, "entropy source unavailable")
	}

	s := &domain.Sigil{
		Prefix:   prefix,
		Role:     role,
		Tier:     tier,
		Type:     typ,
		Token:    token,
		IssuedAt: a.now().UTC(),
	}
	s.Signature = a.sign(s.Base(), agentSecret)

	return s, agentSecret, nil
}

// Verify разбирает строку сигила, пересчитывает HMAC с переданным секретом
// и независимо проверяет срок жизни по классу сигила.
// Сравнение подписи константно по времени.
func (a *Authenticator) Verify(raw string, cred domain.Credential) (*domain.Sigil, error) {
	s, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	expected := a.sign(s.Base(), cred.Secret)
	if !hmac.Equal([]byte(expected), []byte(s.Signature)) {
		return nil, domain.NewBridgeError(domain.CodeAuthFailed, "sigil signature mismatch")
	}

	// Срок жизни пассивный: сигил не отзывается, проверка просто перестает проходить
	s.IssuedAt = cred.IssuedAt
	if !cred.IssuedAt.Add(s.Type.MaxAge()).After(a.now()) {
		return nil, domain.NewBridgeError(domain.CodeAuthFailed, "sigil expired").
			WithDetails(map[string]string{"reason": "expired", "sigil_type": string(s.Type)})
	}

	return s, nil
}

// Rotate выпускает новый сигил с теми же правами, сохраняя секрет агента.
// Старый сигил обязан пройти полную проверку.
func (a *Authenticator) Rotate(raw string, cred domain.Credential) (*domain.Sigil, error) {
	old, err := a.Verify(raw, cred)
	if err != nil {
		return nil, err
	}

	token, err := randomHex(tokenBytes)
	if err != nil {
		return nil, domain.NewBridgeError(domain.CodeInternalError, "entropy source unavailable")
	}

	s := &domain.Sigil{
		Prefix:   old.Prefix,
		Role:     old.Role,
		Tier:     old.Tier,
		Type:     old.Type,
		Token:    token,
		IssuedAt: a.now().UTC(),
	}
	s.Signature = a.sign(s.Base(), cred.Secret)
	return s, nil
}

// Parse разбирает структуру «пять полей плюс подпись» без криптографии.
func Parse(raw string) (*domain.Sigil, error) {
	base, sig, ok := strings.Cut(raw, ":")
	if !ok || len(sig) != sigHexLen {
		return nil, domain.NewBridgeError(domain.CodeInvalidSigil, "malformed sigil: missing signature")
	}

	parts := strings.Split(base, "-")
	if len(parts) != 5 {
		return nil, domain.NewBridgeError(domain.CodeInvalidSigil, "malformed sigil: expected 5 fields")
	}

	s := &domain.Sigil{
		Prefix:    domain.AgentPrefix(parts[0]),
		Role:      domain.AgentRole(parts[1]),
		Tier:      domain.AgentTier(parts[2]),
		Type:      domain.SigilType(parts[3]),
		Token:     parts[4],
		Signature: sig,
	}

	if !s.Prefix.Valid() || !s.Role.Valid() || !s.Tier.Valid() || !s.Type.Valid() {
		return nil, domain.NewBridgeError(domain.CodeInvalidSigil, "malformed sigil: unknown field values")
	}
	if len(s.Token) != tokenBytes*2 {
		return nil, domain.NewBridgeError(domain.CodeInvalidSigil, "malformed sigil: bad token length")
	}

	return s, nil
}

// sign — HMAC-SHA256 по каноническим полям, усеченный до 16 hex.
// Ключ — HKDF от секрета агента с мастер-секретом в роли соли:
// подделка требует оба секрета, смена любого из них детерминированно
// инвалидирует подпись.
func (a *Authenticator) sign(base, agentSecret string) string {
	kdf := hkdf.New(sha256.New, []byte(agentSecret), a.masterSecret, []byte(kdfInfo))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(kdf, key); err != nil {
		// hkdf на SHA256 не может не выдать 32 байта
		panic(err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))[:sigHexLen]
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
