package domain

import "encoding/json"

// ProtocolVersion — текущая версия протокола Janus.
const ProtocolVersion = "1.0"

// MessageMetadata — служебные поля сообщения. Отсутствующие значения
// дозаполняет валидатор, не трогая то, что прислал отправитель.
type MessageMetadata struct {
	Timestamp       string `json:"timestamp"`        // ISO-8601 UTC
	CorrelationID   string `json:"correlation_id"`   // UUIDv4, эхом уходит в ответ
	ProtocolVersion string `json:"protocol_version"` //
	MessageID       string `json:"message_id"`       // UUIDv4, ключ дедупликации
	Priority        *int   `json:"priority,omitempty"`
	TTLSeconds      int    `json:"ttl_seconds,omitempty"`
}

// NeuralMessage — входящее сообщение агента.
// Создается на каждый запрос, после валидации не мутируется,
// после диспетчеризации выбрасывается (ядро ничего не хранит).
type NeuralMessage struct {
	AgentID   string          `json:"agent_id"`
	AuthSigil string          `json:"auth_sigil,omitempty"` // может отсутствовать, если директива не требует auth
	Directive string          `json:"directive"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  MessageMetadata `json:"metadata"`
}

// Статусы ответа моста.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPending = "pending"
)

// ResponseEnvelope — единый конверт ответа. Ровно один на каждое сообщение.
type ResponseEnvelope struct {
	Status           string      `json:"status"`
	Message          string      `json:"message"`
	Data             interface{} `json:"data,omitempty"`
	Timestamp        string      `json:"timestamp"`
	CorrelationID    string      `json:"correlation_id"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`

	// Заполняются только при status = error
	ErrorCode string      `json:"error_code,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}
