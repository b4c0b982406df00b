package domain

import "sort"

// AgentSet: множество ключей агентов. Порядок не важен, дубликатов нет.
type AgentSet map[AgentKey]struct{}

func NewAgentSet(keys ...AgentKey) AgentSet {
	s := make(AgentSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s AgentSet) Add(k AgentKey) { s[k] = struct{}{} }

func (s AgentSet) Has(k AgentKey) bool {
	_, ok := s[k]
	return ok
}

func (s AgentSet) Len() int { return len(s) }

// Sorted: детерминированное представление для JSON, логов и тестов.
func (s AgentSet) Sorted() []AgentKey {
	out := make([]AgentKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s AgentSet) Clone() AgentSet {
	out := make(AgentSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Union не модифицирует аргументы.
func (s AgentSet) Union(other AgentSet) AgentSet {
	out := s.Clone()
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Minus возвращает s \ other.
func (s AgentSet) Minus(other AgentSet) AgentSet {
	out := make(AgentSet, len(s))
	for k := range s {
		if !other.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

func (s AgentSet) Intersect(other AgentSet) AgentSet {
	out := make(AgentSet)
	for k := range s {
		if other.Has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

func (s AgentSet) Equal(other AgentSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}
