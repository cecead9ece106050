package audit

import "time"

// DecisionEvent — запись аудит-трейла об одном решении пайплайна допуска.
type DecisionEvent struct {
	ID            string `json:"id"`             // UUID события
	CorrelationID string `json:"correlation_id"` // Сквозной ID запроса
	MessageID     string `json:"message_id"`     //
	AgentID       string `json:"agent_id"`       // Кто слал
	Directive     string `json:"directive"`      // Что хотел сделать

	// Итог пайплайна
	Stage      string      `json:"stage"`                // На какой стадии остановились (RESPONDED либо стадия отказа)
	Status     string      `json:"status"`               // success / error / pending
	ErrorCode  string      `json:"error_code,omitempty"` //
	Response   interface{} `json:"response,omitempty"`   // Что вернули агенту (без секретов)
	Timestamp  time.Time   `json:"timestamp"`
	DurationMs int64       `json:"duration_ms"`
}
