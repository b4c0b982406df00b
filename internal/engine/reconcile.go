package engine

import "github.com/xela07ax/spaceai-agent-portal/internal/domain"

// Reconcile не делает I/O. Группы сохраняют порядок и состав,
// прямой набор очищается от всего, что уже дает хотя бы одна группа.
// Вход не мутируется.
func Reconcile(direct domain.AgentSet, groups []domain.GroupAgentSet) *domain.ResolvedEntitlements {
	out := &domain.ResolvedEntitlements{
		Groups: make([]domain.GroupAgentSet, len(groups)),
	}

	union := domain.NewAgentSet()
	for i, g := range groups {
		c := g.Clone()
		if c.Agents == nil {
			c.Agents = domain.NewAgentSet()
		}
		out.Groups[i] = c
		for k := range c.Agents {
			union.Add(k)
		}
	}

	if direct == nil {
		direct = domain.NewAgentSet()
	}
	out.DirectOnly = direct.Minus(union)
	return out
}
