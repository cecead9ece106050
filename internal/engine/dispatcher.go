// Package engine — ядро моста: пайплайн допуска и диспетчеризация директив.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/janus-neural-bridge/internal/admission"
	"github.com/xela07ax/janus-neural-bridge/internal/audit"
	"github.com/xela07ax/janus-neural-bridge/internal/connectors"
	"github.com/xela07ax/janus-neural-bridge/internal/directive"
	"github.com/xela07ax/janus-neural-bridge/internal/domain"
	"github.com/xela07ax/janus-neural-bridge/internal/permission"
	"github.com/xela07ax/janus-neural-bridge/internal/sigil"
	"github.com/xela07ax/janus-neural-bridge/internal/telemetry"
	"github.com/xela07ax/janus-neural-bridge/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Стадии пайплайна. В аудит уходит стадия, на которой обработка остановилась.
const (
	StageReceived      = "RECEIVED"
	StageValidated     = "VALIDATED"
	StageAuthenticated = "AUTHENTICATED"
	StageAuthorized    = "AUTHORIZED"
	StageAdmitted      = "ADMITTED"
	StageDispatched    = "DISPATCHED"
	StageResponded     = "RESPONDED"
	StageRejected      = "REJECTED"
)

// Dispatcher прогоняет сообщение через полный пайплайн допуска и возвращает
// ровно один конверт ответа на каждое сообщение. Порядок стадий фиксирован:
// структура → каталог → потолок payload → lockdown → аутентификация →
// права → rate limit → дедупликация → исполнение.
//
// Rate limit идет ДО дедупликации: отбитое квотой сообщение не должно
// занимать окно своего message_id — честный повтор после backoff обязан пройти.
type Dispatcher struct {
	validator *validate.Validator
	auth      *sigil.Authenticator
	creds     sigil.CredentialStore
	registry  *directive.Registry
	replay    *admission.ReplayCache
	limiter   *admission.RateLimiter
	lockdown  *LockdownManager
	handlers  *HandlerTable
	auditor   audit.Auditor
	sink      telemetry.Sink
	logger    *zap.Logger

	handlerTimeout time.Duration

	now func() time.Time
}

// Deps — зависимости диспетчера. Все обязательные, кроме auditor и sink.
type Deps struct {
	Validator *validate.Validator
	Auth      *sigil.Authenticator
	Creds     sigil.CredentialStore
	Registry  *directive.Registry
	Replay    *admission.ReplayCache
	Limiter   *admission.RateLimiter
	Lockdown  *LockdownManager
	Handlers  *HandlerTable
	Auditor   audit.Auditor
	Sink      telemetry.Sink
	Logger    *zap.Logger

	HandlerTimeout time.Duration
}

func NewDispatcher(d Deps) *Dispatcher {
	if d.Sink == nil {
		d.Sink = telemetry.Noop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.HandlerTimeout <= 0 {
		d.HandlerTimeout = 30 * time.Second
	}
	return &Dispatcher{
		validator:      d.Validator,
		auth:           d.Auth,
		creds:          d.Creds,
		registry:       d.Registry,
		replay:         d.Replay,
		limiter:        d.Limiter,
		lockdown:       d.Lockdown,
		handlers:       d.Handlers,
		auditor:        d.Auditor,
		sink:           d.Sink,
		logger:         d.Logger,
		handlerTimeout: d.HandlerTimeout,
		now:            time.Now,
	}
}

// Process — единственная точка входа для сообщений агентов.
// Ошибки не возвращаются наружу: любой исход упакован в конверт.
func (d *Dispatcher) Process(ctx context.Context, msg *domain.NeuralMessage) *domain.ResponseEnvelope {
	started := d.now()
	stage := StageReceived

	// 1. Структурная валидация + автозаполнение метаданных
	if bErr := d.validator.Validate(msg); bErr != nil {
		return d.reject(msg, stage, bErr, started)
	}
	stage = StageValidated

	// 2. Резолв директивы и потолок payload конкретной директивы
	def, err := d.registry.Lookup(msg.Directive)
	if err != nil {
		return d.reject(msg, stage, asBridgeError(err), started)
	}
	if bErr := d.validator.CheckCeiling(msg, &def); bErr != nil {
		return d.reject(msg, stage, bErr, started)
	}

	// 3. Lockdown: заблокированный агент не проходит дальше, даже с валидным сигилом
	if d.lockdown != nil && d.lockdown.IsBlocked(msg.AgentID) {
		bErr := domain.NewBridgeError(domain.CodePermissionDenied, "agent is under lockdown")
		return d.reject(msg, stage, bErr, started)
	}

	// 4. Аутентификация (если директива требует)
	var verified *domain.Sigil
	if def.AuthRequired {
		verified, err = d.authenticate(ctx, msg)
		if err != nil {
			return d.reject(msg, stage, asBridgeError(err), started)
		}
	}
	stage = StageAuthenticated

	// 5. Права: тир и роль против требований директивы
	if bErr := permission.Evaluate(verified, &def); bErr != nil {
		return d.reject(msg, stage, bErr, started)
	}
	stage = StageAuthorized

	// 6. Rate limit, затем дедупликация
	if d.limiter != nil && !d.limiter.Allow(msg.AgentID) {
		d.sink.RateLimited()
		bErr := domain.NewBridgeError(domain.CodeRateLimit,
			fmt.Sprintf("rate limit exceeded for agent %s", msg.AgentID))
		return d.reject(msg, stage, bErr, started)
	}
	if d.replay != nil && d.replay.Seen(msg.Metadata.MessageID, time.Duration(msg.Metadata.TTLSeconds)*time.Second) {
		d.sink.ReplayHit()
		bErr := domain.NewBridgeError(domain.CodeReplayDetected,
			fmt.Sprintf("message %s was already processed", msg.Metadata.MessageID))
		return d.reject(msg, stage, bErr, started)
	}
	stage = StageAdmitted

	// 7. Исполнение с таймаутом и защитой от паники обработчика
	result, err := d.invoke(ctx, &def, msg)
	if err != nil {
		return d.reject(msg, StageDispatched, asBridgeError(err), started)
	}

	envelope := d.respond(msg, result, started)
	d.record(msg, StageResponded, envelope, started)
	d.sink.ObserveMessage(msg.Directive, envelope.Status, "", d.now().Sub(started))
	return envelope
}

// authenticate проверяет сигил против сохраненного секрета агента.
func (d *Dispatcher) authenticate(ctx context.Context, msg *domain.NeuralMessage) (*domain.Sigil, error) {
	if msg.AuthSigil == "" {
		d.sink.AuthFailure("missing")
		return nil, domain.NewBridgeError(domain.CodeInvalidSigil, "auth_sigil is required for this directive")
	}

	cred, err := d.creds.Lookup(ctx, msg.AgentID)
	if err != nil {
		if errors.Is(err, sigil.ErrCredentialNotFound) {
			d.sink.AuthFailure("unknown_agent")
			// Не раскрываем, существует ли агент: тот же код, что и при плохой подписи
			return nil, domain.NewBridgeError(domain.CodeAuthFailed, "sigil verification failed")
		}
		return nil, domain.NewBridgeError(domain.CodeInternalError, "credential store unavailable")
	}

	verified, err := d.auth.Verify(msg.AuthSigil, cred)
	if err != nil {
		reason := "signature"
		var bErr *domain.BridgeError
		if errors.As(err, &bErr) && bErr.Code == domain.CodeInvalidSigil {
			reason = "malformed"
		}
		d.sink.AuthFailure(reason)
		return nil, err
	}
	return verified, nil
}

// invoke исполняет обработчик в отдельной горутине: select отсчитывает
// таймаут, recover изолирует панику обработчика от процесса.
func (d *Dispatcher) invoke(ctx context.Context, def *domain.DirectiveDefinition, msg *domain.NeuralMessage) (interface{}, error) {
	hCtx, cancel := context.WithTimeout(ctx, d.handlerTimeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("handler panic",
					zap.String("directive", msg.Directive),
					zap.String("correlation_id", msg.Metadata.CorrelationID),
					zap.Any("panic", r))
				done <- outcome{err: domain.NewBridgeError(domain.CodeInternalError, "directive handler failed")}
			}
		}()
		result, err := d.handlers.Invoke(hCtx, def, msg)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, mapHandlerError(out.err)
		}
		return out.result, nil
	case <-hCtx.Done():
		// Горутина обработчика дойдет до done (буфер 1) и завершится сама
		return nil, domain.NewBridgeError(domain.CodeTimeout,
			fmt.Sprintf("directive %s exceeded %s", msg.Directive, d.handlerTimeout))
	}
}

// mapHandlerError переводит ошибки коннекторов в коды протокола.
func mapHandlerError(err error) error {
	var bErr *domain.BridgeError
	if errors.As(err, &bErr) {
		return bErr
	}
	if errors.Is(err, connectors.ErrAgentUnreachable) {
		return domain.NewBridgeError(domain.CodeAgentOffline, "target agent is unreachable")
	}
	var tErr *connectors.ThrottleError
	if errors.As(err, &tErr) {
		return domain.NewBridgeError(domain.CodeRateLimit, "target agent is throttling").
			WithDetails(map[string]string{"retry_after": tErr.RetryAfter.String()})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewBridgeError(domain.CodeTimeout, "directive handler timed out")
	}
	return domain.NewBridgeError(domain.CodeInternalError, "directive handler failed")
}

// respond собирает успешный (или pending) конверт.
func (d *Dispatcher) respond(msg *domain.NeuralMessage, result interface{}, started time.Time) *domain.ResponseEnvelope {
	env := &domain.ResponseEnvelope{
		Status:           domain.StatusSuccess,
		Message:          fmt.Sprintf("directive %s completed", msg.Directive),
		Timestamp:        d.now().UTC().Format(time.RFC3339),
		CorrelationID:    msg.Metadata.CorrelationID,
		ProcessingTimeMs: d.now().Sub(started).Milliseconds(),
	}

	if pending, ok := result.(PendingResult); ok {
		env.Status = domain.StatusPending
		env.Message = fmt.Sprintf("directive %s accepted", msg.Directive)
		env.Data = pending.Data
		return env
	}

	env.Data = result
	return env
}

// reject собирает конверт ошибки и фиксирует отказ в аудите и метриках.
func (d *Dispatcher) reject(msg *domain.NeuralMessage, stage string, bErr *domain.BridgeError, started time.Time) *domain.ResponseEnvelope {
	bErr.CorrelationID = msg.Metadata.CorrelationID

	env := &domain.ResponseEnvelope{
		Status:           domain.StatusError,
		Message:          bErr.Message,
		ErrorCode:        string(bErr.Code),
		Details:          bErr.Details,
		Timestamp:        d.now().UTC().Format(time.RFC3339),
		CorrelationID:    msg.Metadata.CorrelationID,
		ProcessingTimeMs: d.now().Sub(started).Milliseconds(),
	}

	d.logger.Warn("message rejected",
		zap.String("agent_id", msg.AgentID),
		zap.String("directive", msg.Directive),
		zap.String("stage", stage),
		zap.String("error_code", string(bErr.Code)),
		zap.String("correlation_id", msg.Metadata.CorrelationID))

	d.record(msg, stage, env, started)
	d.sink.ObserveMessage(msg.Directive, env.Status, string(bErr.Code), d.now().Sub(started))
	return env
}

func (d *Dispatcher) record(msg *domain.NeuralMessage, stage string, env *domain.ResponseEnvelope, started time.Time) {
	if d.auditor == nil {
		return
	}
	d.auditor.Log(audit.DecisionEvent{
		ID:            uuid.New().String(),
		CorrelationID: msg.Metadata.CorrelationID,
		MessageID:     msg.Metadata.MessageID,
		AgentID:       msg.AgentID,
		Directive:     msg.Directive,
		Stage:         stage,
		Status:        env.Status,
		ErrorCode:     env.ErrorCode,
		Response:      env.Data,
		Timestamp:     d.now(),
		DurationMs:    d.now().Sub(started).Milliseconds(),
	})
}

// asBridgeError нормализует ошибку к типизированному отказу протокола.
func asBridgeError(err error) *domain.BridgeError {
	var bErr *domain.BridgeError
	if errors.As(err, &bErr) {
		return bErr
	}
	return domain.NewBridgeError(domain.CodeInternalError, "internal error")
}
