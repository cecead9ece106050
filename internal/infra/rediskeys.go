package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "janus"
)

// Ключи для состояния (Sets и записи)
const (
	RedisKeyAgentSecrets    = RedisNamespace + ":agents:secret:"      // + agentID → JSON Credential
	RedisKeyRegisteredSet   = RedisNamespace + ":agents:registered"   // Set всех агентов с выпущенными сигилами
	RedisKeyLockdownSet     = RedisNamespace + ":agents:lockdown_set" // Set заблокированных агентов
	RedisKeyLockWarmLockdwn = RedisNamespace + ":lock:warmup:lockdown"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanLockdown — канал сигналов экстренной блокировки: "agent_id:on|off".
	RedisChanLockdown = RedisNamespace + ":agents:lockdown-signal"
)

// GetWarmupLockKey Генератор ключей для блокировок (если нужны динамические)
func GetWarmupLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, resource)
}
