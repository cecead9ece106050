package directive

import "github.com/xela07ax/janus-neural-bridge/internal/domain"

// Builtin возвращает штатный каталог директив протокола Janus.
// Требования к тиру/ролям повторяют продакшн-матрицу доступа:
// память правят стюарды, аварийные протоколы — верхний тир.
func Builtin() []domain.DirectiveDefinition {
	return []domain.DirectiveDefinition{
		// Жизненный цикл линка
		{Name: domain.DirInitiateNeuralLink, AuthRequired: true, MinTier: domain.Tier3, Idempotent: true},
		{Name: domain.DirTerminateLink, AuthRequired: true, MinTier: domain.Tier3, Idempotent: true},
		{Name: domain.DirHeartbeat, AuthRequired: true, MinTier: domain.Tier3, Idempotent: true, MaxPayloadBytes: 4 << 10},

		// Операции с памятью
		{Name: domain.DirSyncMemory, AuthRequired: true, MinTier: domain.Tier2,
			AllowedRoles: []domain.AgentRole{domain.RoleJuggernaut, domain.RoleSteward}},
		{Name: domain.DirQueryMemory, AuthRequired: true, MinTier: domain.Tier3, Idempotent: true},
		{Name: domain.DirUpdateMemory, AuthRequired: true, MinTier: domain.Tier2,
			AllowedRoles: []domain.AgentRole{domain.RoleJuggernaut, domain.RoleSteward}},

		// Source-control
		{Name: domain.DirGithubQuery, AuthRequired: true, MinTier: domain.Tier3, Idempotent: true},
		{Name: domain.DirGithubUpdate, AuthRequired: true, MinTier: domain.Tier2,
			AllowedRoles: []domain.AgentRole{domain.RoleJuggernaut, domain.RoleOperator}},
		{Name: domain.DirGithubCreate, AuthRequired: true, MinTier: domain.Tier2,
			AllowedRoles: []domain.AgentRole{domain.RoleJuggernaut, domain.RoleOperator}},

		// Sanctuary & Safety: обычные директивы, идущие через общий пайплайн допуска
		{Name: domain.DirRequestSanctuary, AuthRequired: true, MinTier: domain.Tier2,
			AllowedRoles: []domain.AgentRole{domain.RoleJuggernaut, domain.RoleSentinel}},
		{Name: domain.DirEmergencyShutdown, AuthRequired: true, MinTier: domain.Tier1,
			AllowedRoles: []domain.AgentRole{domain.RoleJuggernaut, domain.RoleSentinel}, MaxPayloadBytes: 64 << 10},

		// Телеметрия
		{Name: domain.DirTransmitTelemetry, AuthRequired: true, MinTier: domain.Tier3, MaxPayloadBytes: 1 << 20},
		{Name: domain.DirQueryCapability, AuthRequired: false, MinTier: domain.Tier3, Idempotent: true, MaxPayloadBytes: 4 << 10},
	}
}

// NewBuiltinRegistry собирает и замораживает штатный каталог.
func NewBuiltinRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, def := range Builtin() {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	r.Freeze()
	return r, nil
}
