// Package normalize превращает слабо типизированные ответы admin-сервиса
// в каноничные доменные значения.
//
// Контракт: максимальная терпимость и тихая деградация. Ни одна функция пакета
// не возвращает ошибку и не паникует на чужом JSON. Отброшенные записи
// (неизвестные токены, назначения без идентификатора) считаются потерями
// нормализации: они логируются и передаются в LossRecorder, но не прерывают разбор.
package normalize

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"go.uber.org/zap"
)

// LossKind классифицирует потери нормализации для метрик.
type LossKind string

const (
	LossUnknownToken      LossKind = "unknown_agent_token"
	LossNotSequence       LossKind = "agents_not_sequence"
	LossAssignmentShape   LossKind = "assignment_not_object"
	LossAssignmentNoID    LossKind = "assignment_without_id"
	LossAssignmentsShape  LossKind = "assignments_not_sequence"
	LossGroupPayloadShape LossKind = "group_payload_unrecognized"
)

// LossRecorder получает уведомление о каждой потере (обычно счетчик Prometheus).
type LossRecorder interface {
	RecordLoss(kind LossKind)
}

type Normalizer struct {
	catalog *domain.Catalog
	logger  *zap.Logger
	losses  LossRecorder
}

// New создает нормализатор. recorder может быть nil.
func New(catalog *domain.Catalog, logger *zap.Logger, recorder LossRecorder) *Normalizer {
	if catalog == nil {
		catalog = domain.DefaultCatalog
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		catalog: catalog,
		logger:  logger.Named("normalizer"),
		losses:  recorder,
	}
}

func (n *Normalizer) Catalog() *domain.Catalog { return n.catalog }

func (n *Normalizer) loss(kind LossKind, fields ...zap.Field) {
	if n.losses != nil {
		n.losses.RecordLoss(kind)
	}
	n.logger.Debug("normalization loss", append(fields, zap.String("kind", string(kind)))...)
}

// AgentKeys оставляет только известные каталогу ключи. Не-последовательность дает пустое множество.
// Каждый элемент приводится к trim+upper токену и остается только если он есть в каталоге.
// Идемпотентна: AgentKeys(AgentKeys(x)) == AgentKeys(x).
func (n *Normalizer) AgentKeys(value any) domain.AgentSet {
	out := domain.NewAgentSet()

	items, ok := asSequence(value)
	if !ok {
		if value != nil {
			n.loss(LossNotSequence, zap.String("type", fmt.Sprintf("%T", value)))
		}
		return out
	}

	for _, item := range items {
		raw, err := toToken(item)
		if err != nil {
			n.loss(LossUnknownToken, zap.String("type", fmt.Sprintf("%T", item)))
			continue
		}
		key := domain.ParseAgentKey(raw)
		if key == "" || !n.catalog.Has(key) {
			n.loss(LossUnknownToken, zap.String("token", raw))
			continue
		}
		out.Add(key)
	}
	return out
}

// DirectAgents разбирает ответ обоих путей прямых назначений:
// основной отдает массив, резервный отдает объект с массивом внутри.
func (n *Normalizer) DirectAgents(value any) domain.AgentSet {
	if m, ok := value.(map[string]any); ok {
		if v, found := firstSequence(m, "agents", "selectedAgents", "selected_agents", "agentNames"); found {
			return n.AgentKeys(v)
		}
		n.loss(LossNotSequence, zap.String("type", "object"))
		return domain.NewAgentSet()
	}
	return n.AgentKeys(value)
}

// asSequence распознает упорядоченные последовательности любого типа элементов.
func asSequence(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []domain.AgentKey:
		out := make([]any, len(v))
		for i, k := range v {
			out[i] = string(k)
		}
		return out, true
	case domain.AgentSet:
		// собственный результат нормализации: множество без порядка
		out := make([]any, 0, len(v))
		for _, k := range v.Sorted() {
			out = append(out, string(k))
		}
		return out, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toToken приводит элемент к строке. Именованные строковые типы поддерживаются через reflect.
func toToken(item any) (string, error) {
	if item == nil {
		return "", fmt.Errorf("nil token")
	}
	if rv := reflect.ValueOf(item); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	switch item.(type) {
	case map[string]any, []any:
		return "", fmt.Errorf("composite token %T", item)
	}
	return cast.ToStringE(item)
}

// textField: первое непустое строковое значение среди ключей.
func textField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any, bool:
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

func object(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

// firstSequence: первый присутствующий ключ, значение которого является последовательностью.
func firstSequence(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if _, isSeq := asSequence(v); isSeq {
			return v, true
		}
	}
	return nil, false
}

// activeFlag читает флаг активности. Без флага считаем активной.
func activeFlag(m map[string]any) bool {
	for _, k := range []string{"isActive", "is_active", "active"} {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		b, err := cast.ToBoolE(v)
		if err != nil {
			continue
		}
		return b
	}
	return true
}
