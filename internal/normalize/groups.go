package normalize

import (
	"fmt"

	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"go.uber.org/zap"
)

// GroupIdentifier достает ID группы из назначения: groupId, group_id, group.id, затем id.
// Приоритет: groupId, group_id, group.id, затем общий id.
func (n *Normalizer) GroupIdentifier(assignment map[string]any) (string, bool) {
	if id, ok := textField(assignment, "groupId", "group_id"); ok {
		return id, true
	}
	if g, ok := object(assignment, "group"); ok {
		if id, ok := textField(g, "id"); ok {
			return id, true
		}
	}
	return textField(assignment, "id")
}

// Assignments разбирает ответ group-assignments.
// Неактивные назначения отбрасываются, дубликаты групп схлопываются в первое вхождение.
func (n *Normalizer) Assignments(value any) []domain.GroupAssignment {
	items, ok := asSequence(value)
	if !ok {
		if value != nil {
			n.loss(LossAssignmentsShape, zap.String("type", fmt.Sprintf("%T", value)))
		}
		return []domain.GroupAssignment{}
	}

	out := make([]domain.GroupAssignment, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			n.loss(LossAssignmentShape, zap.Int("index", i))
			continue
		}
		id, ok := n.GroupIdentifier(m)
		if !ok {
			n.loss(LossAssignmentNoID, zap.Int("index", i))
			continue
		}
		if !activeFlag(m) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		a := domain.GroupAssignment{GroupID: id, Active: true}
		if g, ok := object(m, "group"); ok {
			a.NameHint, _ = textField(g, "name")
			a.DescriptionHint, _ = textField(g, "description")
		}
		if a.NameHint == "" {
			a.NameHint, _ = textField(m, "groupName", "group_name")
		}
		if a.DescriptionHint == "" {
			a.DescriptionHint, _ = textField(m, "groupDescription", "group_description")
		}
		out = append(out, a)
	}
	return out
}

// Salvageable: можно ли вообще что-то извлечь из ответа group-agents.
// Скаляры и null не годятся, такая группа деградирует.
func Salvageable(raw any) bool {
	switch raw.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// GroupPayload разбирает ответ group-agents. Всегда возвращает значение.
func (n *Normalizer) GroupPayload(raw any, fallbackID string) domain.GroupAgentSet {
	return n.GroupPayloadWithHint(raw, domain.GroupAssignment{GroupID: fallbackID})
}

// GroupPayloadWithHint: то же, но метаданные из назначения используются,
// когда roster их не содержит. ID назначения служит fallback-идентификатором.
func (n *Normalizer) GroupPayloadWithHint(raw any, hint domain.GroupAssignment) domain.GroupAgentSet {
	fallbackID := hint.GroupID
	g := domain.GroupAgentSet{ID: fallbackID, Agents: domain.NewAgentSet()}
	name, description := "", ""

	switch v := raw.(type) {
	case map[string]any:
		nested, _ := object(v, "group")

		// 1. Идентификатор: вложенный объект -> плоские поля -> fallback
		if id, ok := textField(nested, "id"); ok {
			g.ID = id
		} else if id, ok := textField(v, "groupId", "group_id", "id"); ok {
			g.ID = id
		}

		// 2. Имя
		if nested != nil {
			name, _ = textField(nested, "name")
		}
		if name == "" {
			name, _ = textField(v, "groupName", "group_name", "name")
		}
		description, _ = textField(nested, "description")
		if description == "" {
			description, _ = textField(v, "groupDescription", "group_description", "description")
		}

		// 3. Состав
		g.Agents = n.groupAgents(v, nested)

	case []any:
		g.Agents = n.agentsFromArray(v)

	default:
		n.loss(LossGroupPayloadShape, zap.String("group_id", fallbackID), zap.String("type", fmt.Sprintf("%T", raw)))
	}

	switch {
	case name != "":
		g.Name = name
	case hint.NameHint != "":
		g.Name = hint.NameHint
	default:
		g.Name = domain.PlaceholderGroupName(g.ID)
	}

	g.Description = description
	if g.Description == "" {
		g.Description = hint.DescriptionHint
	}
	return g
}

func (n *Normalizer) groupAgents(v, nested map[string]any) domain.AgentSet {
	if seq, ok := firstSequence(v, "agents", "agentNames", "agent_names", "agentKeys"); ok {
		return n.AgentKeys(seq)
	}
	if nested != nil {
		if seq, ok := firstSequence(nested, "agents"); ok {
			return n.AgentKeys(seq)
		}
	}
	if items, ok := v["items"].([]any); ok {
		return n.AgentKeys(projectItems(items))
	}
	n.loss(LossGroupPayloadShape, zap.String("reason", "no agent field"))
	return domain.NewAgentSet()
}

// agentsFromArray: массив строк считаем ключами, массив объектов считаем items.
func (n *Normalizer) agentsFromArray(arr []any) domain.AgentSet {
	for _, item := range arr {
		if _, ok := item.(map[string]any); ok {
			return n.AgentKeys(projectItems(arr))
		}
	}
	return n.AgentKeys(arr)
}

// projectItems вытаскивает имя агента из каждой записи roster-а.
func projectItems(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			out = append(out, item)
			continue
		}
		if !activeFlag(m) {
			continue
		}
		if name, ok := textField(m, "agentName", "agent_name", "key", "name"); ok {
			out = append(out, name)
		}
	}
	return out
}
