// Package directive содержит статический каталог директив протокола.
package directive

import (
	"fmt"
	"sync"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
)

// Registry — каталог известных директив. Заполняется на старте процесса,
// после Freeze только читается — в Hot Path блокировок нет.
type Registry struct {
	mu     sync.Mutex
	frozen bool
	defs   map[string]domain.DirectiveDefinition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]domain.DirectiveDefinition)}
}

// Register — идемпотентная вставка по имени. Повторная регистрация
// с отличающимся определением — ошибка конфигурации, фатальная на старте.
func (r *Registry) Register(def domain.DirectiveDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("directive registry is frozen, cannot register %s", def.Name)
	}
	if def.Name == "" {
		return fmt.Errorf("directive name is required")
	}

	if existing, ok := r.defs[def.Name]; ok {
		if !equalDefs(existing, def) {
			return fmt.Errorf("conflicting duplicate registration of directive %s", def.Name)
		}
		return nil // идемпотентный повтор
	}

	r.defs[def.Name] = def
	return nil
}

// Freeze закрывает каталог для записи. После этого Lookup не требует блокировок.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup возвращает определение директивы. Неизвестное имя — INVALID_DIRECTIVE.
func (r *Registry) Lookup(name string) (domain.DirectiveDefinition, error) {
	def, ok := r.defs[name]
	if !ok {
		return domain.DirectiveDefinition{}, domain.NewBridgeError(domain.CodeInvalidDirective,
			fmt.Sprintf("unknown directive: %s", name))
	}
	return def, nil
}

// Names возвращает список зарегистрированных директив (для QUERY_CAPABILITY).
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}

func equalDefs(a, b domain.DirectiveDefinition) bool {
	if a.Name != b.Name || a.AuthRequired != b.AuthRequired ||
		a.MinTier != b.MinTier || a.MaxPayloadBytes != b.MaxPayloadBytes ||
		a.Idempotent != b.Idempotent || len(a.AllowedRoles) != len(b.AllowedRoles) {
		return false
	}
	for i := range a.AllowedRoles {
		if a.AllowedRoles[i] != b.AllowedRoles[i] {
			return false
		}
	}
	return true
}
