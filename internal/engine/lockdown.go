package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
	"github.com/xela07ax/janus-neural-bridge/internal/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LockdownManager держит L1 (RAM) кэш заблокированных агентов и синхронизирует
// его с L2 (Redis) через Set + Pub/Sub. Без Redis (rdb == nil) работает как
// чисто локальный реестр — режим для тестов и single-node развертывания.
type LockdownManager struct {
	mu      sync.RWMutex
	blocked map[string]struct{}
	rdb     *redis.Client
	logger  *zap.Logger
}

func NewLockdownManager(rdb *redis.Client, logger *zap.Logger) *LockdownManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockdownManager{
		blocked: make(map[string]struct{}),
		rdb:     rdb,
		logger:  logger,
	}
}

// IsBlocked — горячая проверка по L1, вызывается на каждый запрос.
func (m *LockdownManager) IsBlocked(agentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocked[agentID]
	return ok
}

// Block ставит агента в lockdown и рассылает сигнал остальным инстансам.
func (m *LockdownManager) Block(ctx context.Context, agentID string) error {
	m.mark(agentID, true)

	if m.rdb == nil {
		return nil
	}
	if err := m.rdb.SAdd(ctx, infra.RedisKeyLockdownSet, agentID).Err(); err != nil {
		return domain.NewBridgeError(domain.CodeInternalError, "lockdown state write failed")
	}
	if err := m.rdb.Publish(ctx, infra.RedisChanLockdown, fmt.Sprintf("%s:on", agentID)).Err(); err != nil {
		m.logger.Error("lockdown signal publish failed", zap.String("agent_id", agentID), zap.Error(err))
	}
	return nil
}

// Release снимает lockdown (операторская операция через админ-API).
func (m *LockdownManager) Release(ctx context.Context, agentID string) error {
	m.mark(agentID, false)

	if m.rdb == nil {
		return nil
	}
	if err := m.rdb.SRem(ctx, infra.RedisKeyLockdownSet, agentID).Err(); err != nil {
		return domain.NewBridgeError(domain.CodeInternalError, "lockdown state write failed")
	}
	if err := m.rdb.Publish(ctx, infra.RedisChanLockdown, fmt.Sprintf("%s:off", agentID)).Err(); err != nil {
		m.logger.Error("lockdown signal publish failed", zap.String("agent_id", agentID), zap.Error(err))
	}
	return nil
}

func (m *LockdownManager) mark(agentID string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		m.blocked[agentID] = struct{}{}
	} else {
		delete(m.blocked, agentID)
	}
}

// Init загружает текущее состояние блокировок при старте сервиса.
// Распределенная блокировка (SetNX) гарантирует, что Redis греет один инстанс.
func (m *LockdownManager) Init(ctx context.Context) error {
	if m.rdb == nil {
		return nil
	}

	agents, err := m.rdb.SMembers(ctx, infra.RedisKeyLockdownSet).Result()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.blocked = make(map[string]struct{}, len(agents))
	for _, id := range agents {
		m.blocked[id] = struct{}{}
	}
	m.mu.Unlock()

	// Прогрев держим под короткой блокировкой, чтобы не молотить Redis хором
	ok, err := m.rdb.SetNX(ctx, infra.RedisKeyLockWarmLockdwn, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой инстанс уже греет
	}

	m.logger.Info("lockdown state loaded", zap.Int("blocked", len(agents)))
	return nil
}

// StartListener — «живучая» подписка на сигналы lockdown. Переподключается
// при обрыве и пересинхронизирует L1 через Init на каждом коннекте.
func (m *LockdownManager) StartListener(ctx context.Context) {
	if m.rdb == nil {
		return
	}

	for {
		pubsub := m.rdb.Subscribe(ctx, infra.RedisChanLockdown)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			m.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanLockdown), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Синхронизация при каждом успешном коннекте
		if err := m.Init(ctx); err != nil {
			m.logger.Error("lockdown sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()
		m.logger.Info("lockdown listener started", zap.String("chan", infra.RedisChanLockdown))

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case sig, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				// Разбор формата "agent_id:on|off"
				parts := strings.Split(sig.Payload, ":")
				if len(parts) != 2 {
					m.logger.Error("invalid lockdown signal", zap.String("payload", sig.Payload))
					continue
				}

				on := parts[1] == "on" || parts[1] == "true"
				m.mark(parts[0], on)
				m.logger.Warn("lockdown signal applied",
					zap.String("agent_id", parts[0]), zap.Bool("blocked", on))
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
