package sigil

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
)

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator("test-master-secret")
}

func issueValid(t *testing.T, a *Authenticator) (*domain.Sigil, domain.Credential) {
	t.Helper()
	s, secret, err := a.Issue(domain.PrefixMicrowave, domain.RoleJuggernaut, domain.Tier1, domain.SigilSentinel)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return s, domain.Credential{Secret: secret, IssuedAt: s.IssuedAt}
}

func TestIssueAndVerifyAllCombinations(t *testing.T) {
	a := newTestAuthenticator()

	prefixes := []domain.AgentPrefix{domain.PrefixMicrowave, domain.PrefixSynthesizer, domain.PrefixFilesystem, domain.PrefixQuantum, domain.PrefixOmni, domain.PrefixRepo}
	roles := []domain.AgentRole{domain.RoleJuggernaut, domain.RoleSteward, domain.RoleOperator, domain.RoleSentinel, domain.RoleWorker}
	tiers := []domain.AgentTier{domain.Tier1, domain.Tier2, domain.Tier3}
	types := []domain.SigilType{domain.SigilSentinel, domain.SigilService, domain.SigilTemporary}

	for _, p := range prefixes {
		for _, r := range roles {
			for _, tier := range tiers {
				for _, typ := range types {
					s, secret, err := a.Issue(p, r, tier, typ)
					if err != nil {
						t.Fatalf("issue %s-%s-%s-%s: %v", p, r, tier, typ, err)
					}
					if len(s.Token) != 20 {
						t.Fatalf("token length = %d, want 20", len(s.Token))
					}
					cred := domain.Credential{Secret: secret, IssuedAt: s.IssuedAt}
					got, err := a.Verify(s.Encode(), cred)
					if err != nil {
						t.Fatalf("verify fresh sigil %s: %v", s.Encode(), err)
					}
					if got.Tier != tier || got.Role != r {
						t.Fatalf("verify returned %s/%s, want %s/%s", got.Tier, got.Role, tier, r)
					}
				}
			}
		}
	}
}

func TestIssueRejectsUnknownParameters(t *testing.T) {
	a := newTestAuthenticator()
	_, _, err := a.Issue("XX", domain.RoleWorker, domain.Tier3, domain.SigilTemporary)
	var be *domain.BridgeError
	if !errors.As(err, &be) || be.Code != domain.CodeInvalidParameters {
		t.Fatalf("err = %v, want INVALID_PARAMETERS", err)
	}
}

func TestVerifyFailsAfterExpiry(t *testing.T) {
	cases := []struct {
		typ    domain.SigilType
		maxAge time.Duration
	}{
		{domain.SigilSentinel, 90 * 24 * time.Hour},
		{domain.SigilService, 30 * 24 * time.Hour},
		{domain.SigilTemporary, 24 * time.Hour},
	}

	for _, tc := range cases {
		a := newTestAuthenticator()
		s, secret, err := a.Issue(domain.PrefixOmni, domain.RoleOperator, domain.Tier2, tc.typ)
		if err != nil {
			t.Fatalf("issue %s: %v", tc.typ, err)
		}
		cred := domain.Credential{Secret: secret, IssuedAt: s.IssuedAt}

		// За минуту до истечения срока — еще валиден
		a.now = func() time.Time { return s.IssuedAt.Add(tc.maxAge - time.Minute) }
		if _, err := a.Verify(s.Encode(), cred); err != nil {
			t.Fatalf("%s just before expiry: %v", tc.typ, err)
		}

		// Сразу после — отказ AUTH_FAILED
		a.now = func() time.Time { return s.IssuedAt.Add(tc.maxAge + time.Minute) }
		_, err = a.Verify(s.Encode(), cred)
		var be *domain.BridgeError
		if !errors.As(err, &be) || be.Code != domain.CodeAuthFailed {
			t.Fatalf("%s after expiry: err = %v, want AUTH_FAILED", tc.typ, err)
		}
	}
}

func TestTamperedSigilFailsVerification(t *testing.T) {
	a := newTestAuthenticator()
	s, cred := issueValid(t, a)
	raw := s.Encode()

	// Подмена тира: структура валидна, но подпись обязана не сойтись
	tampered := strings.Replace(raw, "TIER1", "TIER2", 1)
	_, err := a.Verify(tampered, cred)
	var be *domain.BridgeError
	if !errors.As(err, &be) || be.Code != domain.CodeAuthFailed {
		t.Fatalf("tier tamper: err = %v, want AUTH_FAILED", err)
	}

	// Подмена роли
	tampered = strings.Replace(raw, "JGN", "WKR", 1)
	if _, err := a.Verify(tampered, cred); err == nil {
		t.Fatal("role tamper accepted")
	}

	// Бит в токене
	var flipped string
	if s.Token[0] == 'a' {
		flipped = strings.Replace(raw, s.Token, "b"+s.Token[1:], 1)
	} else {
		flipped = strings.Replace(raw, s.Token, "a"+s.Token[1:], 1)
	}
	if _, err := a.Verify(flipped, cred); err == nil {
		t.Fatal("token tamper accepted")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a := newTestAuthenticator()
	s, cred := issueValid(t, a)

	cred.Secret = "00000000000000000000000000000000"
	_, err := a.Verify(s.Encode(), cred)
	var be *domain.BridgeError
	if !errors.As(err, &be) || be.Code != domain.CodeAuthFailed {
		t.Fatalf("err = %v, want AUTH_FAILED", err)
	}
}

func TestVerifyRejectsForeignMasterSecret(t *testing.T) {
	a := newTestAuthenticator()
	s, cred := issueValid(t, a)

	other := NewAuthenticator("another-master-secret")
	if _, err := other.Verify(s.Encode(), cred); err == nil {
		t.Fatal("sigil accepted under a different master secret")
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"garbage",
		"MW-JGN-TIER1-SNTNL",                          // нет токена и подписи
		"MW-JGN-TIER1-SNTNL-aabbccddeeff00112233",     // нет подписи
		"MW-JGN-TIER1-aabbccddeeff00112233:deadbeef",  // четыре поля
		"MW-JGN-TIER9-SNTNL-aabbccddeeff00112233:dead", // короткая подпись
		"MW-JGN-TIER9-SNTNL-aabbccddeeff00112233:deadbeefdeadbeef", // неизвестный тир
		"MW-JGN-TIER1-SNTNL-short:deadbeefdeadbeef",                // битый токен
	}

	for _, raw := range cases {
		_, err := Parse(raw)
		var be *domain.BridgeError
		if !errors.As(err, &be) || be.Code != domain.CodeInvalidSigil {
			t.Fatalf("Parse(%q): err = %v, want INVALID_SIGIL", raw, err)
		}
	}
}

func TestRotateKeepsPermissions(t *testing.T) {
	a := newTestAuthenticator()
	s, cred := issueValid(t, a)

	rotated, err := a.Rotate(s.Encode(), cred)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.Token == s.Token {
		t.Fatal("rotate reused the old token")
	}
	if rotated.Prefix != s.Prefix || rotated.Role != s.Role || rotated.Tier != s.Tier || rotated.Type != s.Type {
		t.Fatal("rotate changed permissions")
	}

	cred.IssuedAt = rotated.IssuedAt
	if _, err := a.Verify(rotated.Encode(), cred); err != nil {
		t.Fatalf("verify rotated: %v", err)
	}
}
