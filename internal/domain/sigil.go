package domain

import "time"

// AgentPrefix — двухбуквенный код типа агента (первое поле сигила).
type AgentPrefix string

const (
	PrefixMicrowave   AgentPrefix = "MW" // Оркестратор Juggernaut
	PrefixSynthesizer AgentPrefix = "SY" // Хранитель памяти
	PrefixFilesystem  AgentPrefix = "FC" // Файловый командир
	PrefixQuantum     AgentPrefix = "QM" // Квантовая память
	PrefixOmni        AgentPrefix = "OM" // Omni-движок
	PrefixRepo        AgentPrefix = "RQ" // Контроллер репозиториев
)

// AgentRole — трехбуквенный код роли (второе поле сигила).
type AgentRole string

const (
	RoleJuggernaut AgentRole = "JGN" // Оркестратор верхнего уровня
	RoleSteward    AgentRole = "STW" // Стюард памяти/данных
	RoleOperator   AgentRole = "OPR" // Оператор сервисов
	RoleSentinel   AgentRole = "SNT" // Безопасность и мониторинг
	RoleWorker     AgentRole = "WKR" // Исполнитель задач
)

// AgentTier — уровень доступа. Порядок строгий: TIER1 > TIER2 > TIER3.
type AgentTier string

const (
	Tier1 AgentTier = "TIER1" // Полный доступ
	Tier2 AgentTier = "TIER2" // Ограниченный доступ
	Tier3 AgentTier = "TIER3" // Только чтение
)

// SigilType определяет класс сигила и его максимальный срок жизни.
type SigilType string

const (
	SigilSentinel  SigilType = "SNTNL" // 90 дней
	SigilService   SigilType = "SRVC"  // 30 дней
	SigilTemporary SigilType = "TEMP"  // 24 часа
)

// Rank возвращает числовой вес тира для сравнения (больше = шире права).
// Неизвестный тир получает 0 — Default Deny.
func (t AgentTier) Rank() int {
	switch t {
	case Tier1:
		return 3
	case Tier2:
		return 2
	case Tier3:
		return 1
	default:
		return 0
	}
}

// MaxAge — пассивный срок жизни сигила по его классу.
// Сигил никогда не отзывается явно: по истечении срока проверка просто падает.
func (s SigilType) MaxAge() time.Duration {
	switch s {
	case SigilSentinel:
		return 90 * 24 * time.Hour
	case SigilService:
		return 30 * 24 * time.Hour
	case SigilTemporary:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (p AgentPrefix) Valid() bool {
	switch p {
	case PrefixMicrowave, PrefixSynthesizer, PrefixFilesystem, PrefixQuantum, PrefixOmni, PrefixRepo:
		return true
	}
	return false
}

func (r AgentRole) Valid() bool {
	switch r {
	case RoleJuggernaut, RoleSteward, RoleOperator, RoleSentinel, RoleWorker:
		return true
	}
	return false
}

func (t AgentTier) Valid() bool { return t.Rank() != 0 }

func (s SigilType) Valid() bool { return s.MaxAge() != 0 }

// Sigil — разобранное представление учетной строки агента.
// Формат на проводе: PREFIX-ROLE-TIER-TYPE-TOKEN:SIGNATURE
// Пример: MW-JGN-TIER1-SNTNL-9c8b7a6d5e4f3a2b1c0d:4f5e6d7c8b9a0f1e
type Sigil struct {
	Prefix    AgentPrefix `json:"prefix"`
	Role      AgentRole   `json:"role"`
	Tier      AgentTier   `json:"tier"`
	Type      SigilType   `json:"sigil_type"`
	Token     string      `json:"token"`     // 20 hex-символов из CSPRNG
	Signature string      `json:"signature"` // 16 hex-символов (усеченный HMAC-SHA256)
	IssuedAt  time.Time   `json:"issued_at"`
}

// Base — каноническая строка пяти публичных полей, именно она подписывается.
func (s *Sigil) Base() string {
	return string(s.Prefix) + "-" + string(s.Role) + "-" + string(s.Tier) + "-" + string(s.Type) + "-" + s.Token
}

// Encode собирает полную строку сигила вместе с подписью.
func (s *Sigil) Encode() string {
	return s.Base() + ":" + s.Signature
}

// Credential — секрет агента вместе с моментом выпуска сигила.
// IssuedAt живет рядом с секретом, а не в строке сигила: формат на проводе
// содержит только пять публичных полей плюс подпись.
type Credential struct {
	Secret   string    `json:"secret"`
	IssuedAt time.Time `json:"issued_at"`
}
