package domain

// DefaultMaxPayloadBytes — потолок размера payload по умолчанию (10 MiB).
const DefaultMaxPayloadBytes = 10 << 20

// DirectiveDefinition — запись статического каталога директив.
// Загружается один раз на старте и дальше только читается.
type DirectiveDefinition struct {
	Name            string      `json:"name"`          // SCREAMING_SNAKE_CASE
	AuthRequired    bool        `json:"auth_required"` //
	MinTier         AgentTier   `json:"min_tier"`
	AllowedRoles    []AgentRole `json:"allowed_roles,omitempty"` // пустой список = любая роль
	MaxPayloadBytes int         `json:"max_payload_bytes"`
	Idempotent      bool        `json:"idempotent"` // разрешает ретраи на уровне коннектора
}

// RoleAllowed проверяет вхождение роли в белый список директивы.
func (d *DirectiveDefinition) RoleAllowed(role AgentRole) bool {
	if len(d.AllowedRoles) == 0 {
		return true
	}
	for _, r := range d.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// PayloadCeiling возвращает действующий лимит payload для директивы.
func (d *DirectiveDefinition) PayloadCeiling() int {
	if d.MaxPayloadBytes > 0 {
		return d.MaxPayloadBytes
	}
	return DefaultMaxPayloadBytes
}

// Имена встроенных директив протокола.
const (
	DirInitiateNeuralLink = "INITIATE_NEURAL_LINK"
	DirTerminateLink      = "TERMINATE_LINK"
	DirHeartbeat          = "HEARTBEAT"

	DirSyncMemory   = "SYNC_MEMORY"
	DirQueryMemory  = "QUERY_MEMORY"
	DirUpdateMemory = "UPDATE_MEMORY"

	DirGithubQuery  = "GITHUB_QUERY"
	DirGithubUpdate = "GITHUB_UPDATE"
	DirGithubCreate = "GITHUB_CREATE"

	DirRequestSanctuary  = "REQUEST_SANCTUARY_PROTOCOL"
	DirEmergencyShutdown = "EMERGENCY_SHUTDOWN"

	DirTransmitTelemetry = "TRANSMIT_TELEMETRY"
	DirQueryCapability   = "QUERY_CAPABILITY"
)
