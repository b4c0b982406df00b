package domain

// GroupAssignment: членство пользователя в группе, как его отдает admin-сервис.
type GroupAssignment struct {
	GroupID string `json:"group_id"`
	Active  bool   `json:"active"`

	// Метаданные группы из вложенного объекта назначения (если были)
	NameHint        string `json:"name_hint,omitempty"`
	DescriptionHint string `json:"description_hint,omitempty"`
}

// GroupAgentSet: разрешенный состав одной группы.
type GroupAgentSet struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Agents      AgentSet `json:"-"`

	// Degraded: состав не удалось получить, группа показывается пустой
	Degraded bool `json:"degraded"`
}

const placeholderIDLen = 8

// PlaceholderGroupName: детерминированное имя для группы без метаданных.
func PlaceholderGroupName(id string) string {
	r := []rune(id)
	if len(r) > placeholderIDLen {
		r = r[:placeholderIDLen]
	}
	if len(r) == 0 {
		return "Group"
	}
	return "Group " + string(r)
}

// DegradedGroup: заглушка для группы, чей состав не загрузился.
func DegradedGroup(id string) GroupAgentSet {
	return GroupAgentSet{
		ID:       id,
		Name:     PlaceholderGroupName(id),
		Agents:   NewAgentSet(),
		Degraded: true,
	}
}

func (g GroupAgentSet) Clone() GroupAgentSet {
	g.Agents = g.Agents.Clone()
	return g
}

// ResolvedEntitlements: итоговый ответ "что видит пользователь".
// Значение неизменяемо после публикации.
type ResolvedEntitlements struct {
	DirectOnly AgentSet
	Groups     []GroupAgentSet
}

// GroupUnion = ⋃ g.Agents. Производное поле, не хранится.
func (r *ResolvedEntitlements) GroupUnion() AgentSet {
	out := NewAgentSet()
	for _, g := range r.Groups {
		for k := range g.Agents {
			out.Add(k)
		}
	}
	return out
}

// DegradedGroups возвращает ID групп, показанных пустыми из-за сбоя.
func (r *ResolvedEntitlements) DegradedGroups() []string {
	var ids []string
	for _, g := range r.Groups {
		if g.Degraded {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// Empty: у пользователя нет ни прямых агентов, ни групп.
func (r *ResolvedEntitlements) Empty() bool {
	return r.DirectOnly.Len() == 0 && len(r.Groups) == 0
}
