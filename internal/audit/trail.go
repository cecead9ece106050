package audit

/*
Файл trail.go реализует Decision Trail — неблокирующий сборщик решений
пайплайна допуска с пакетной записью в хранилище.

Ключевые свойства:
- Non-blocking Logging: события уходят в буферизованный канал, задержки
  записи в БД не влияют на Response Time горячего пути.
- Batching: накопление в памяти и Bulk Insert по таймеру или при
  достижении лимита пачки.
- Drain Pattern & Graceful Shutdown: при остановке канал закрывается,
  воркер дочитывает остаток и делает Final Flush — события не теряются
  при перезагрузке.
- Load Shedding: при переполнении буфера событие сбрасывается с записью
  в обычный лог, чтобы не тормозить допуск.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/telemetry"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняются решения.
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []DecisionEvent) error
}

type Auditor interface {
	Log(event DecisionEvent)
}

const flushBatchSize = 100

type Trail struct {
	ch      chan DecisionEvent
	repo    StorageInterface
	logger  *zap.Logger
	sink    telemetry.Sink
	flushIv time.Duration
	wg      sync.WaitGroup

	isClosed int32 // Атомарный флаг: после Stop новые события не принимаются
}

func NewTrail(repo StorageInterface, logger *zap.Logger, sink telemetry.Sink, bufferSize int, flushInterval time.Duration) *Trail {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	if sink == nil {
		sink = telemetry.Noop{}
	}
	return &Trail{
		ch:      make(chan DecisionEvent, bufferSize),
		repo:    repo,
		logger:  logger.With(zap.String("mod", "audit-trail")),
		sink:    sink,
		flushIv: flushInterval,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Крошечная пауза, чтобы конкурентные Log успели проскочить до close
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Log(event DecisionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case t.ch <- event:
		t.sink.AuditBufferFill(len(t.ch))
	default:
		// Backpressure: буфер полон, сбрасываем нагрузку в обычный лог
		t.logger.Error("audit_buffer_overflow",
			zap.String("agent_id", event.AgentID),
			zap.String("correlation_id", event.CorrelationID),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]DecisionEvent, 0, flushBatchSize)
	ticker := time.NewTicker(t.flushIv)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к этому моменту может быть закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): дочитали остаток — финальный сброс и выход
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= flushBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
