// Package telemetry — счетчики и таймеры ядра. Ядро эмитит в интерфейс Sink
// и не знает про конкретный бэкенд метрик.
package telemetry

import "time"

// Sink принимает телеметрию пайплайна.
type Sink interface {
	// ObserveMessage — итог обработки одного сообщения
	ObserveMessage(directive, status string, errorCode string, duration time.Duration)
	// AuthFailure — отказ аутентификации с причиной (malformed, signature, expired)
	AuthFailure(reason string)
	// ReplayHit — повтор message_id в окне дедупликации
	ReplayHit()
	// RateLimited — отказ по квоте агента
	RateLimited()
	// AuditBufferFill — заполненность буфера аудита (backpressure)
	AuditBufferFill(n int)
}

// Noop — заглушка для тестов и случаев, когда метрики не подключены.
type Noop struct{}

func (Noop) ObserveMessage(string, string, string, time.Duration) {}
func (Noop) AuthFailure(string)                                   {}
func (Noop) ReplayHit()                                           {}
func (Noop) RateLimited()                                         {}
func (Noop) AuditBufferFill(int)                                  {}
