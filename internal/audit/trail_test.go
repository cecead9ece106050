package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type captureStorage struct {
	mu     sync.Mutex
	events []DecisionEvent
}

func (c *captureStorage) WriteBatch(_ context.Context, events []DecisionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func (c *captureStorage) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestTrailFlushesOnStop(t *testing.T) {
	storage := &captureStorage{}
	trail := NewTrail(storage, zap.NewNop(), nil, 100, time.Hour) // флашит только Stop
	trail.Start()

	for i := 0; i < 42; i++ {
		trail.Log(DecisionEvent{ID: "e", AgentID: "a", Directive: "HEARTBEAT", Status: "success"})
	}
	trail.Stop()

	if got := storage.count(); got != 42 {
		t.Fatalf("flushed %d events, want 42", got)
	}
}

func TestTrailDropsAfterStop(t *testing.T) {
	storage := &captureStorage{}
	trail := NewTrail(storage, zap.NewNop(), nil, 10, time.Hour)
	trail.Start()
	trail.Stop()

	// Не должно паниковать на закрытом канале
	trail.Log(DecisionEvent{ID: "late"})
	if got := storage.count(); got != 0 {
		t.Fatalf("late event persisted: %d", got)
	}
}

func TestTrailSetsTimestamp(t *testing.T) {
	storage := &captureStorage{}
	trail := NewTrail(storage, zap.NewNop(), nil, 10, time.Hour)
	trail.Start()
	trail.Log(DecisionEvent{ID: "e"})
	trail.Stop()

	if storage.count() != 1 || storage.events[0].Timestamp.IsZero() {
		t.Fatal("timestamp not set on logged event")
	}
}
