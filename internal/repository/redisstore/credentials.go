// Package redisstore — реестр выданных секретов агентов поверх Redis.
// Секреты переживают рестарт моста и разделяются между инстансами.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
	"github.com/xela07ax/janus-neural-bridge/internal/infra"
	"github.com/xela07ax/janus-neural-bridge/internal/sigil"

	"github.com/redis/go-redis/v9"
)

// CredentialStore реализует sigil.CredentialStore поверх Redis.
// Ключ: janus:agents:secret:<agent_id> → JSON domain.Credential.
type CredentialStore struct {
	rdb *redis.Client
}

func NewCredentialStore(rdb *redis.Client) *CredentialStore {
	return &CredentialStore{rdb: rdb}
}

func (s *CredentialStore) Lookup(ctx context.Context, agentID string) (domain.Credential, error) {
	data, err := s.rdb.Get(ctx, infra.RedisKeyAgentSecrets+agentID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Credential{}, sigil.ErrCredentialNotFound
		}
		return domain.Credential{}, fmt.Errorf("credential lookup: %w", err)
	}

	var cred domain.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("credential decode: %w", err)
	}
	return cred, nil
}

// Save пишет секрет и помечает агента в реестре выданных сигилов.
// TTL не ставим: срок жизни сигила проверяется аутентификатором,
// протухший секрет безвреден.
func (s *CredentialStore) Save(ctx context.Context, agentID string, cred domain.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("credential encode: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, infra.RedisKeyAgentSecrets+agentID, data, 0)
	pipe.SAdd(ctx, infra.RedisKeyRegisteredSet, agentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("credential save: %w", err)
	}
	return nil
}

// Registered возвращает всех агентов с выпущенными сигилами.
func (s *CredentialStore) Registered(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, infra.RedisKeyRegisteredSet).Result()
}
