package server

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handleInvoke — основной вход протокола: одно сообщение, один конверт.
func (s *BridgeServer) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var msg domain.NeuralMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, int64(s.cfg.Bridge.MaxPayloadBytes)+4096)).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, &domain.ResponseEnvelope{
			Status:    domain.StatusError,
			Message:   "request body is not a valid message",
			ErrorCode: string(domain.CodeInvalidMessage),
		})
		return
	}

	env := s.dispatcher.Process(r.Context(), &msg)
	writeJSON(w, envelopeStatus(env), env)
}

// envelopeStatus — HTTP-статус по итогу пайплайна.
func envelopeStatus(env *domain.ResponseEnvelope) int {
	switch env.Status {
	case domain.StatusSuccess:
		return http.StatusOK
	case domain.StatusPending:
		return http.StatusAccepted
	default:
		return domain.ErrorCode(env.ErrorCode).HTTPStatus()
	}
}

// handleRegister регистрирует линк агента вне протокола сообщений.
// Сигил обязателен: линк без подтвержденной личности не поднимаем.
func (s *BridgeServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID      string   `json:"agent_id"`
		AuthSigil    string   `json:"auth_sigil"`
		Capabilities []string `json:"capabilities"`
		Endpoint     string   `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cred, err := s.creds.Lookup(r.Context(), req.AgentID)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := s.issuer.Verify(req.AuthSigil, cred); err != nil {
		s.logger.Warn("register rejected", zap.String("agent_id", req.AgentID), zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	l := s.tracker.Establish(req.AgentID, req.Capabilities, req.Endpoint)
	writeJSON(w, http.StatusOK, l)
}

// handleDiscover отдает снимок активных линков.
func (s *BridgeServer) handleDiscover(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": s.tracker.List()})
}

func (s *BridgeServer) handleOperatorLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := s.tokens.GenerateToken(req.Username, req.Password)
	if err != nil {
		// Не уточняем, что именно неверно (логин или пароль), для защиты от перебора
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleIssueSigil выпускает сигил и сохраняет секрет агента.
// Секрет возвращается ровно один раз — в этом ответе.
func (s *BridgeServer) handleIssueSigil(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID   string `json:"agent_id"`
		Prefix    string `json:"prefix"`
		Role      string `json:"role"`
		Tier      string `json:"tier"`
		SigilType string `json:"sigil_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	sig, secret, err := s.issuer.Issue(
		domain.AgentPrefix(req.Prefix),
		domain.AgentRole(req.Role),
		domain.AgentTier(req.Tier),
		domain.SigilType(req.SigilType),
	)
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	cred := domain.Credential{Secret: secret, IssuedAt: sig.IssuedAt}
	if err := s.creds.Save(r.Context(), req.AgentID, cred); err != nil {
		s.logger.Error("credential save failed", zap.String("agent_id", req.AgentID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("sigil issued",
		zap.String("agent_id", req.AgentID),
		zap.String("role", req.Role),
		zap.String("tier", req.Tier))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent_id":     req.AgentID,
		"sigil":        sig.Encode(),
		"agent_secret": secret,
		"issued_at":    sig.IssuedAt,
	})
}

// handleRotateSigil меняет токен сигила, сохраняя права и секрет агента.
func (s *BridgeServer) handleRotateSigil(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agent_id"`
		Sigil   string `json:"sigil"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cred, err := s.creds.Lookup(r.Context(), req.AgentID)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fresh, err := s.issuer.Rotate(req.Sigil, cred)
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	cred.IssuedAt = fresh.IssuedAt
	if err := s.creds.Save(r.Context(), req.AgentID, cred); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent_id":  req.AgentID,
		"sigil":     fresh.Encode(),
		"issued_at": fresh.IssuedAt,
	})
}

func (s *BridgeServer) handleLockdown(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if err := s.lockdown.Block(r.Context(), agentID); err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"agent_id": agentID, "lockdown": "engaged"})
}

func (s *BridgeServer) handleRelease(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if err := s.lockdown.Release(r.Context(), agentID); err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"agent_id": agentID, "lockdown": "released"})
}
