// Package link отслеживает активные подключения агентов к мосту.
package link

import (
	"sync"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
)

// Tracker — реестр активных линков. Обновляется встроенными директивами
// (INITIATE_NEURAL_LINK / HEARTBEAT / TERMINATE_LINK) и эндпоинтом регистрации.
type Tracker struct {
	mu    sync.RWMutex
	links map[string]domain.AgentLink

	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		links: make(map[string]domain.AgentLink),
		now:   time.Now,
	}
}

// Establish регистрирует (или перезаписывает) линк агента.
func (t *Tracker) Establish(agentID string, capabilities []string, endpoint string) domain.AgentLink {
	now := t.now().UTC()
	l := domain.AgentLink{
		AgentID:       agentID,
		Capabilities:  capabilities,
		Endpoint:      endpoint,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}

	t.mu.Lock()
	t.links[agentID] = l
	t.mu.Unlock()
	return l
}

// Heartbeat обновляет отметку живости. Возвращает false, если линка нет.
func (t *Tracker) Heartbeat(agentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.links[agentID]
	if !ok {
		return false
	}
	l.LastHeartbeat = t.now().UTC()
	t.links[agentID] = l
	return true
}

// Terminate снимает линк. Идемпотентна.
func (t *Tracker) Terminate(agentID string) {
	t.mu.Lock()
	delete(t.links, agentID)
	t.mu.Unlock()
}

// Get возвращает линк агента.
func (t *Tracker) Get(agentID string) (domain.AgentLink, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.links[agentID]
	return l, ok
}

// List — снимок всех активных линков (для /agents/discover).
func (t *Tracker) List() []domain.AgentLink {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.AgentLink, 0, len(t.links))
	for _, l := range t.links {
		out = append(out, l)
	}
	return out
}
