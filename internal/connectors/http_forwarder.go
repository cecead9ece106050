// Package connectors — граница между ядром и внешними обработчиками директив.
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
)

// AgentCaller доставляет допущенное сообщение внешнему обработчику.
type AgentCaller interface {
	Call(ctx context.Context, endpoint string, msg *domain.NeuralMessage) (json.RawMessage, error)
}

// HTTPForwarder форвардит сообщение на зарегистрированный эндпоинт агента.
type HTTPForwarder struct {
	client *http.Client
}

func NewHTTPForwarder(timeout time.Duration) *HTTPForwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPForwarder{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPForwarder) Call(ctx context.Context, endpoint string, msg *domain.NeuralMessage) (json.RawMessage, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Janus-Directive", msg.Directive)
	req.Header.Set("X-Janus-Correlation-ID", msg.Metadata.CorrelationID)

	resp, err := f.client.Do(req)
	if err != nil {
		// Сетевая ошибка = агент оффлайн с точки зрения ядра
		return nil, fmt.Errorf("%w: %v", ErrAgentUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, domain.DefaultMaxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ThrottleError{RetryAfter: parseRetryAfter(resp), Cause: fmt.Errorf("agent throttled")}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("agent returned %d: %s", resp.StatusCode, data)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("agent rejected directive with %d: %s", resp.StatusCode, data)
	}

	return data, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 2 * time.Second
}
