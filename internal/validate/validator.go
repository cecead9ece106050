// Package validate выполняет структурную проверку и канонизацию входящих
// сообщений. Вся работа здесь дешевая: ни одной криптографической операции —
// fail fast до аутентификации.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"

	"github.com/google/uuid"
)

const maxAgentIDLen = 100

var (
	agentIDPattern   = regexp.MustCompile(`^[A-Za-z0-9-_]+$`)
	directivePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// Validator проверяет сообщения и дозаполняет метаданные.
type Validator struct {
	maxPayloadBytes int

	// Подменяются в тестах
	now   func() time.Time
	newID func() string
}

func New(maxPayloadBytes int) *Validator {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = domain.DefaultMaxPayloadBytes
	}
	return &Validator{
		maxPayloadBytes: maxPayloadBytes,
		now:             time.Now,
		newID:           func() string { return uuid.New().String() },
	}
}

// Validate проверяет обязательные поля, паттерны и диапазоны, затем
// дозаполняет отсутствующие метаданные, не трогая присланные значения.
// После успешного Validate сообщение считается иммутабельным.
func (v *Validator) Validate(msg *domain.NeuralMessage) *domain.BridgeError {
	if msg.AgentID == "" {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "agent_id is required")
	}
	if len(msg.AgentID) > maxAgentIDLen || !agentIDPattern.MatchString(msg.AgentID) {
		return domain.NewBridgeError(domain.CodeInvalidMessage,
			fmt.Sprintf("agent_id must match ^[A-Za-z0-9-_]+$ and be at most %d chars", maxAgentIDLen))
	}

	if msg.Directive == "" {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "directive is required")
	}
	if !directivePattern.MatchString(msg.Directive) {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "directive must be SCREAMING_SNAKE_CASE")
	}

	// Дефолтный потолок. Директива может задать свой — он проверяется
	// повторно после резолва в реестре.
	if len(msg.Payload) > v.maxPayloadBytes {
		return payloadTooLarge(len(msg.Payload), v.maxPayloadBytes)
	}
	if len(msg.Payload) > 0 && !json.Valid(msg.Payload) {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "payload is not valid JSON")
	}

	return v.fillMetadata(&msg.Metadata)
}

// CheckCeiling повторно проверяет payload против лимита конкретной директивы.
func (v *Validator) CheckCeiling(msg *domain.NeuralMessage, def *domain.DirectiveDefinition) *domain.BridgeError {
	if ceiling := def.PayloadCeiling(); len(msg.Payload) > ceiling {
		return payloadTooLarge(len(msg.Payload), ceiling)
	}
	return nil
}

func payloadTooLarge(got, limit int) *domain.BridgeError {
	return domain.NewBridgeError(domain.CodePayloadTooLarge,
		fmt.Sprintf("payload of %d bytes exceeds limit of %d", got, limit)).
		WithDetails(map[string]int{"payload_bytes": got, "limit_bytes": limit})
}

func (v *Validator) fillMetadata(md *domain.MessageMetadata) *domain.BridgeError {
	// Присланные значения проверяем, отсутствующие — генерируем
	if md.MessageID == "" {
		md.MessageID = v.newID()
	} else if _, err := uuid.Parse(md.MessageID); err != nil {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "metadata.message_id must be a UUID")
	}

	if md.CorrelationID == "" {
		md.CorrelationID = v.newID()
	} else if _, err := uuid.Parse(md.CorrelationID); err != nil {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "metadata.correlation_id must be a UUID")
	}

	if md.Timestamp == "" {
		md.Timestamp = v.now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, md.Timestamp); err != nil {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "metadata.timestamp must be ISO-8601")
	}

	if md.ProtocolVersion == "" {
		md.ProtocolVersion = domain.ProtocolVersion
	}

	if md.Priority != nil && (*md.Priority < 0 || *md.Priority > 10) {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "metadata.priority must be in [0,10]")
	}
	if md.TTLSeconds < 0 {
		return domain.NewBridgeError(domain.CodeInvalidMessage, "metadata.ttl_seconds must be non-negative")
	}

	return nil
}

// Canonicalize приводит payload к каноническим байтам: стабильный порядок
// ключей, компактные разделители. encoding/json сортирует ключи мап сам —
// достаточно пересобрать значение.
//
// Ограничение v1: сам payload подписью НЕ покрыт (подписан только сигил).
// Канонические байты — задел под message-level signing в будущих ревизиях.
func Canonicalize(payload json.RawMessage) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return json.Marshal(decoded)
}
