package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/admission"
	"github.com/xela07ax/janus-neural-bridge/internal/directive"
	"github.com/xela07ax/janus-neural-bridge/internal/domain"
	"github.com/xela07ax/janus-neural-bridge/internal/engine"
	"github.com/xela07ax/janus-neural-bridge/internal/infra"
	"github.com/xela07ax/janus-neural-bridge/internal/infra/auth"
	"github.com/xela07ax/janus-neural-bridge/internal/link"
	"github.com/xela07ax/janus-neural-bridge/internal/sigil"
	"github.com/xela07ax/janus-neural-bridge/internal/validate"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type serverRig struct {
	srv   *BridgeServer
	auth  *sigil.Authenticator
	store *sigil.MemoryStore
}

func newServerRig(t *testing.T) *serverRig {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	cfg := &infra.Config{}
	cfg.Bridge.MaxPayloadBytes = 1 << 20

	reg, err := directive.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("builtin registry: %v", err)
	}

	issuer := sigil.NewAuthenticator("server-test-master")
	store := sigil.NewMemoryStore()
	tracker := link.NewTracker()
	lockdown := engine.NewLockdownManager(nil, zap.NewNop())
	handlers := engine.NewHandlerTable(nil)
	engine.BindBuiltins(handlers, tracker, reg, lockdown, zap.NewNop())

	dispatcher := engine.NewDispatcher(engine.Deps{
		Validator: validate.New(0),
		Auth:      issuer,
		Creds:     store,
		Registry:  reg,
		Replay:    admission.NewReplayCache(time.Minute, 1000),
		Limiter:   admission.NewRateLimiter(1000, 1000),
		Lockdown:  lockdown,
		Handlers:  handlers,
		Logger:    zap.NewNop(),
	})

	tokens := auth.NewTokenService("operator", string(hash), key, time.Hour)
	validator := auth.NewBaseValidator(&key.PublicKey)

	srv := NewBridgeServer(cfg, zap.NewNop(), dispatcher, tracker, lockdown, issuer, store, tokens, validator, nil)
	return &serverRig{srv: srv, auth: issuer, store: store}
}

func (r *serverRig) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.srv.ServeHTTP(rec, req)
	return rec
}

func (r *serverRig) operatorToken(t *testing.T) string {
	t.Helper()
	rec := r.do(t, http.MethodPost, "/admin/v1/auth/token", "",
		domain.LoginRequest{Username: "operator", Password: "operator-password"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return resp.AccessToken
}

func TestHealth(t *testing.T) {
	r := newServerRig(t)
	if rec := r.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}

func TestOperatorLoginRejectsBadPassword(t *testing.T) {
	r := newServerRig(t)
	rec := r.do(t, http.MethodPost, "/admin/v1/auth/token", "",
		domain.LoginRequest{Username: "operator", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminPerimeterRequiresToken(t *testing.T) {
	r := newServerRig(t)
	rec := r.do(t, http.MethodPost, "/admin/v1/sigils", "", map[string]string{"agent_id": "mw-01"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestIssueSigilAndInvoke(t *testing.T) {
	r := newServerRig(t)
	token := r.operatorToken(t)

	// Оператор выпускает сигил
	rec := r.do(t, http.MethodPost, "/admin/v1/sigils", token, map[string]string{
		"agent_id":   "mw-orchestrator",
		"prefix":     "MW",
		"role":       "JGN",
		"tier":       "TIER1",
		"sigil_type": "SNTNL",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("issue status = %d: %s", rec.Code, rec.Body.String())
	}
	var issued struct {
		Sigil       string `json:"sigil"`
		AgentSecret string `json:"agent_secret"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	if issued.Sigil == "" || issued.AgentSecret == "" {
		t.Fatalf("incomplete issue response: %s", rec.Body.String())
	}

	// Агент шлет сообщение с этим сигилом
	rec = r.do(t, http.MethodPost, "/v1/invoke", "", domain.NeuralMessage{
		AgentID:   "mw-orchestrator",
		AuthSigil: issued.Sigil,
		Directive: domain.DirInitiateNeuralLink,
		Payload:   json.RawMessage(`{"status":"ready","capabilities":["orchestration"]}`),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("invoke status = %d: %s", rec.Code, rec.Body.String())
	}
	var env domain.ResponseEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Status != domain.StatusSuccess || env.CorrelationID == "" {
		t.Fatalf("envelope = %+v", env)
	}

	// Линк виден в discovery
	rec = r.do(t, http.MethodGet, "/v1/agents/discover", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("discover status = %d", rec.Code)
	}
	var discover struct {
		Agents []domain.AgentLink `json:"agents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &discover); err != nil {
		t.Fatalf("decode discover: %v", err)
	}
	if len(discover.Agents) != 1 || discover.Agents[0].AgentID != "mw-orchestrator" {
		t.Fatalf("discover = %+v", discover.Agents)
	}
}

func TestInvokeErrorMapsToHTTPStatus(t *testing.T) {
	r := newServerRig(t)

	rec := r.do(t, http.MethodPost, "/v1/invoke", "", domain.NeuralMessage{
		AgentID:   "mw-01",
		Directive: "NO_SUCH_DIRECTIVE",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
	var env domain.ResponseEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.ErrorCode != string(domain.CodeInvalidDirective) {
		t.Fatalf("error_code = %s", env.ErrorCode)
	}
}

func TestRegisterRequiresValidSigil(t *testing.T) {
	r := newServerRig(t)

	// Без выпущенного секрета регистрация отклоняется
	rec := r.do(t, http.MethodPost, "/v1/agents/register", "", map[string]interface{}{
		"agent_id":   "sy-01",
		"auth_sigil": "SY-STW-TIER2-SRVC-0123456789abcdef0123:0123456789abcdef",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// С настоящим сигилом проходит
	sig, secret, err := r.auth.Issue(domain.PrefixSynthesizer, domain.RoleSteward, domain.Tier2, domain.SigilService)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := r.store.Save(context.Background(), "sy-01", domain.Credential{Secret: secret, IssuedAt: sig.IssuedAt}); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec = r.do(t, http.MethodPost, "/v1/agents/register", "", map[string]interface{}{
		"agent_id":     "sy-01",
		"auth_sigil":   sig.Encode(),
		"capabilities": []string{"memory"},
		"endpoint":     "http://sy-01:9000/handle",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLockdownEndpoints(t *testing.T) {
	r := newServerRig(t)
	token := r.operatorToken(t)

	for i, step := range []struct {
		path string
		want string
	}{
		{"/admin/v1/agents/sy-rogue/lockdown", "engaged"},
		{"/admin/v1/agents/sy-rogue/release", "released"},
	} {
		rec := r.do(t, http.MethodPost, step.path, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("step %d status = %d: %s", i, rec.Code, rec.Body.String())
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["lockdown"] != step.want {
			t.Fatalf("step %d lockdown = %q, want %q", i, resp["lockdown"], step.want)
		}
	}
}

func TestIssueSigilRejectsUnknownEnums(t *testing.T) {
	r := newServerRig(t)
	token := r.operatorToken(t)

	rec := r.do(t, http.MethodPost, "/admin/v1/sigils", token, map[string]string{
		"agent_id":   "mw-01",
		"prefix":     "XX",
		"role":       "JGN",
		"tier":       "TIER1",
		"sigil_type": "SNTNL",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var bErr domain.BridgeError
	if err := json.Unmarshal(rec.Body.Bytes(), &bErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bErr.Code != domain.CodeInvalidParameters {
		t.Fatalf("error_code = %s", bErr.Code)
	}
}
