package connectors

import (
	"errors"
	"fmt"
	"time"
)

// ThrottleError — целевой агент просит подождать (прочитан Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

// ErrAgentUnreachable — эндпоинт агента недоступен (сеть, отказ соединения,
// открытый Circuit Breaker). Диспетчер мапит это в AGENT_OFFLINE.
var ErrAgentUnreachable = errors.New("agent endpoint unreachable")
