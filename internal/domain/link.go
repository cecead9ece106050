package domain

import "time"

// AgentIdentity — неизменяемая после выпуска сигила идентичность агента.
type AgentIdentity struct {
	AgentID string      `json:"agent_id"` // ^[A-Za-z0-9-_]+$, до 100 символов
	Prefix  AgentPrefix `json:"prefix"`
	Role    AgentRole   `json:"role"`
}

// AgentLink — состояние активного подключения агента к мосту.
type AgentLink struct {
	AgentID       string    `json:"agent_id"`
	Capabilities  []string  `json:"capabilities"`
	Endpoint      string    `json:"endpoint,omitempty"` // куда форвардить директивы
	ConnectedAt   time.Time `json:"connected_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}
