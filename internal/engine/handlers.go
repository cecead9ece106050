package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xela07ax/janus-neural-bridge/internal/connectors"
	"github.com/xela07ax/janus-neural-bridge/internal/directive"
	"github.com/xela07ax/janus-neural-bridge/internal/domain"
	"github.com/xela07ax/janus-neural-bridge/internal/link"

	"go.uber.org/zap"
)

// HandlerFunc — встроенный обработчик директивы. Обязан вернуть результат
// или типизированную ошибку в пределах таймаута диспетчера.
type HandlerFunc func(ctx context.Context, msg *domain.NeuralMessage) (interface{}, error)

// HandlerKind — категория обработчика. Диспетчеризация по имени — это
// таблица с типизированными ссылками, а не открытый динамический вызов.
type HandlerKind int

const (
	KindBuiltin HandlerKind = iota // локальная функция моста
	KindRemote                     // форвард на внешний эндпоинт
)

// Handler — типизированная ссылка на обработчик директивы.
type Handler struct {
	Kind     HandlerKind
	Func     HandlerFunc // только для KindBuiltin
	Endpoint string      // только для KindRemote
}

// PendingResult — обработчик принял запрос, но результат будет позже
// (конверт уйдет со статусом pending).
type PendingResult struct {
	Data interface{}
}

// HandlerTable — таблица обработчиков по имени директивы.
// Заполняется на старте, в рантайме только читается.
type HandlerTable struct {
	handlers map[string]Handler
	caller   *connectors.ReliableCaller
}

func NewHandlerTable(caller *connectors.ReliableCaller) *HandlerTable {
	return &HandlerTable{
		handlers: make(map[string]Handler),
		caller:   caller,
	}
}

// Bind привязывает встроенный обработчик.
func (t *HandlerTable) Bind(name string, fn HandlerFunc) {
	t.handlers[name] = Handler{Kind: KindBuiltin, Func: fn}
}

// BindRemote привязывает директиву к внешнему эндпоинту.
func (t *HandlerTable) BindRemote(name, endpoint string) {
	t.handlers[name] = Handler{Kind: KindRemote, Endpoint: endpoint}
}

// Invoke исполняет обработчик директивы.
func (t *HandlerTable) Invoke(ctx context.Context, def *domain.DirectiveDefinition, msg *domain.NeuralMessage) (interface{}, error) {
	h, ok := t.handlers[msg.Directive]
	if !ok {
		// Директива зарегистрирована, но обработчик не поднят — агент оффлайн
		return nil, domain.NewBridgeError(domain.CodeAgentOffline,
			fmt.Sprintf("no handler bound for directive %s", msg.Directive))
	}

	switch h.Kind {
	case KindBuiltin:
		return h.Func(ctx, msg)
	case KindRemote:
		if t.caller == nil {
			return nil, domain.NewBridgeError(domain.CodeAgentOffline, "remote delivery is not configured")
		}
		data, err := t.caller.Forward(ctx, h.Endpoint, msg, def.Idempotent)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	default:
		return nil, domain.NewBridgeError(domain.CodeInternalError, "unknown handler kind")
	}
}

// BindBuiltins вешает штатные обработчики протокола: жизненный цикл линка,
// опрос возможностей и аварийную блокировку.
func BindBuiltins(t *HandlerTable, tracker *link.Tracker, reg *directive.Registry, lockdown *LockdownManager, logger *zap.Logger) {
	t.Bind(domain.DirInitiateNeuralLink, func(_ context.Context, msg *domain.NeuralMessage) (interface{}, error) {
		var payload struct {
			Status       string   `json:"status"`
			Capabilities []string `json:"capabilities"`
			Endpoint     string   `json:"endpoint"`
		}
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return nil, domain.NewBridgeError(domain.CodeInvalidMessage, "malformed link payload")
			}
		}

		l := tracker.Establish(msg.AgentID, payload.Capabilities, payload.Endpoint)
		logger.Info("neural link established",
			zap.String("agent_id", msg.AgentID),
			zap.Strings("capabilities", payload.Capabilities))

		return map[string]interface{}{
			"link":         "established",
			"agent_id":     l.AgentID,
			"connected_at": l.ConnectedAt,
		}, nil
	})

	t.Bind(domain.DirTerminateLink, func(_ context.Context, msg *domain.NeuralMessage) (interface{}, error) {
		tracker.Terminate(msg.AgentID)
		logger.Info("neural link terminated", zap.String("agent_id", msg.AgentID))
		return map[string]string{"link": "terminated"}, nil
	})

	t.Bind(domain.DirHeartbeat, func(_ context.Context, msg *domain.NeuralMessage) (interface{}, error) {
		known := tracker.Heartbeat(msg.AgentID)
		return map[string]interface{}{
			"acknowledged": true,
			"link_active":  known,
		}, nil
	})

	t.Bind(domain.DirQueryCapability, func(_ context.Context, _ *domain.NeuralMessage) (interface{}, error) {
		names := reg.Names()
		sort.Strings(names)
		return map[string]interface{}{"capabilities": names}, nil
	})

	t.Bind(domain.DirEmergencyShutdown, func(ctx context.Context, msg *domain.NeuralMessage) (interface{}, error) {
		var payload struct {
			TargetAgentID string `json:"target_agent_id"`
			Reason        string `json:"reason"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.TargetAgentID == "" {
			return nil, domain.NewBridgeError(domain.CodeInvalidMessage, "target_agent_id is required")
		}

		if err := lockdown.Block(ctx, payload.TargetAgentID); err != nil {
			return nil, err
		}
		logger.Warn("emergency shutdown engaged",
			zap.String("target_agent_id", payload.TargetAgentID),
			zap.String("requested_by", msg.AgentID),
			zap.String("reason", payload.Reason))

		return map[string]string{"target_agent_id": payload.TargetAgentID, "lockdown": "engaged"}, nil
	})

	t.Bind(domain.DirRequestSanctuary, func(_ context.Context, msg *domain.NeuralMessage) (interface{}, error) {
		// Семантика санктуария за пределами моста: фиксируем запрос и отдаем pending
		logger.Warn("sanctuary protocol requested", zap.String("agent_id", msg.AgentID))
		return PendingResult{Data: map[string]string{"sanctuary": "requested", "review": "operator"}}, nil
	})
}
