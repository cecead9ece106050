package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
)

// ReliableCaller оборачивает доставку в Circuit Breaker и ретраи.
// Ретраи включаются ТОЛЬКО для идемпотентных директив: диспетчер сам
// никогда не повторяет вызов, это граница коннектора.
type ReliableCaller struct {
	next        AgentCaller
	cb          *gobreaker.CircuitBreaker
	callTimeout time.Duration
}

func NewReliableCaller(next AgentCaller, callTimeout time.Duration) *ReliableCaller {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "janus-agent-connector",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует «закрыться»
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд — открываемся и блокируем трафик
			return counts.ConsecutiveFailures > 5
		},
	})

	return &ReliableCaller{next: next, cb: cb, callTimeout: callTimeout}
}

// Forward доставляет сообщение с учетом идемпотентности директивы.
func (w *ReliableCaller) Forward(ctx context.Context, endpoint string, msg *domain.NeuralMessage, idempotent bool) (json.RawMessage, error) {
	attempts := 1
	if idempotent {
		attempts = 3
	}

	var finalData json.RawMessage

	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(uint(attempts)),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если агент вернул ThrottleError — уважаем его Retry-After
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				// Иначе стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
			defer cancel()

			var callErr error
			finalData, callErr = w.next.Call(tCtx, endpoint, msg)
			return callErr
		})

		return finalData, retryErr
	})

	if err != nil {
		// Открытый предохранитель — агент недоступен
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", ErrAgentUnreachable)
		}
		return nil, err
	}

	return cbResult.(json.RawMessage), nil
}
