package sigil

import (
	"context"
	"errors"
	"sync"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
)

// ErrCredentialNotFound возвращается, когда для агента нет выпущенного секрета.
var ErrCredentialNotFound = errors.New("agent credential not found")

// CredentialStore — контракт, который ядро требует от реестра агентов.
// Реализация живет снаружи (Redis, БД); ядро знает только про Lookup/Save.
type CredentialStore interface {
	Lookup(ctx context.Context, agentID string) (domain.Credential, error)
	Save(ctx context.Context, agentID string, cred domain.Credential) error
}

// MemoryStore — потокобезопасная in-memory реализация для тестов и MVP.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]domain.Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]domain.Credential)}
}

func (m *MemoryStore) Lookup(_ context.Context, agentID string) (domain.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.creds[agentID]
	if !ok {
		return domain.Credential{}, ErrCredentialNotFound
	}
	return cred, nil
}

func (m *MemoryStore) Save(_ context.Context, agentID string, cred domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[agentID] = cred
	return nil
}
