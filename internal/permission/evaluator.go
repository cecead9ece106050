// Package permission — чистая функция допуска по тиру и роли.
// Никакого разделяемого состояния: тривиально тестируется и параллелится.
package permission

import (
	"fmt"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"
)

// Evaluate решает, покрывает ли проверенный сигил требования директивы:
//  1. authRequired=false — допуск без сигила;
//  2. тир сигила ≥ требуемого (TIER1 > TIER2 > TIER3);
//  3. роль входит в allowedRoles (пустой список = любая роль).
//
// Отказ называет проваленную проверку (tier либо role), не раскрывая
// ничего, кроме требований самой директивы.
func Evaluate(s *domain.Sigil, def *domain.DirectiveDefinition) *domain.BridgeError {
	if !def.AuthRequired {
		return nil
	}
	if s == nil {
		// Сюда попадать не должны: аутентификация идет раньше
		return domain.NewBridgeError(domain.CodePermissionDenied, "directive requires authentication")
	}

	if s.Tier.Rank() < def.MinTier.Rank() {
		return domain.NewBridgeError(domain.CodePermissionDenied,
			fmt.Sprintf("insufficient tier for %s", def.Name)).
			WithDetails(map[string]string{
				"check":         "tier",
				"required_tier": string(def.MinTier),
				"actual_tier":   string(s.Tier),
			})
	}

	if !def.RoleAllowed(s.Role) {
		return domain.NewBridgeError(domain.CodePermissionDenied,
			fmt.Sprintf("role %s is not allowed to invoke %s", s.Role, def.Name)).
			WithDetails(map[string]interface{}{
				"check":         "role",
				"allowed_roles": def.AllowedRoles,
				"actual_role":   s.Role,
			})
	}

	return nil
}
