package domain

import (
	"fmt"
	"net/http"
)

// ErrorCode — таксономия отказов моста (§ обработка ошибок).
type ErrorCode string

const (
	CodeInvalidMessage    ErrorCode = "INVALID_MESSAGE"    // структурная ошибка входа
	CodeInvalidParameters ErrorCode = "INVALID_PARAMETERS" // неизвестные enum-значения при выпуске
	CodeInvalidSigil      ErrorCode = "INVALID_SIGIL"      // не разобрали структуру сигила
	CodeAuthFailed        ErrorCode = "AUTH_FAILED"        // подпись не сошлась или сигил истек
	CodePermissionDenied  ErrorCode = "PERMISSION_DENIED"  // тир/роль не проходят
	CodeInvalidDirective  ErrorCode = "INVALID_DIRECTIVE"  // директива не зарегистрирована
	CodePayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"  //
	CodeRateLimit         ErrorCode = "RATE_LIMIT"         // можно повторить после backoff
	CodeReplayDetected    ErrorCode = "REPLAY_DETECTED"    // повтор message_id в окне дедупликации
	CodeAgentOffline      ErrorCode = "AGENT_OFFLINE"      // обработчик недоступен, caller может повторить
	CodeTimeout           ErrorCode = "TIMEOUT"            // обработчик не уложился в лимит
	CodeInternalError     ErrorCode = "INTERNAL_ERROR"     // неожиданный сбой, никогда не глотаем молча
)

// BridgeError — типизированный отказ пайплайна. Всегда несет correlation_id,
// чтобы вызывающая сторона могла сопоставить ответ с серверными логами,
// и никогда — секретный материал.
type BridgeError struct {
	Code          ErrorCode   `json:"error_code"`
	Message       string      `json:"message"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBridgeError — конструктор типизированного отказа.
func NewBridgeError(code ErrorCode, msg string) *BridgeError {
	return &BridgeError{Code: code, Message: msg}
}

// WithDetails прикрепляет диагностику (какая именно проверка не прошла).
func (e *BridgeError) WithDetails(details interface{}) *BridgeError {
	e.Details = details
	return e
}

// HTTPStatus — авторитативная таблица соответствия кодов ошибок HTTP-статусам.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidMessage, CodeInvalidParameters:
		return http.StatusBadRequest
	case CodeInvalidSigil, CodeAuthFailed:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeInvalidDirective:
		return http.StatusNotFound
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeRateLimit, CodeReplayDetected:
		return http.StatusTooManyRequests
	case CodeAgentOffline:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Retryable — может ли вызывающая сторона осмысленно повторить запрос.
// TIMEOUT ретраится только для идемпотентных директив, это решает caller.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeRateLimit, CodeAgentOffline:
		return true
	default:
		return false
	}
}
