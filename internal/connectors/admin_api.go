package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/normalize"
	"go.uber.org/zap"
)

// Routes: шаблоны путей admin-сервиса. Плейсхолдеры {email} и {id}
// экранируются как path- или query-компонент в зависимости от позиции.
type Routes struct {
	DirectAgents         string `mapstructure:"direct_agents"`
	DirectAgentsFallback string `mapstructure:"direct_agents_fallback"`
	GroupAssignments     string `mapstructure:"group_assignments"`
	GroupAgents          string `mapstructure:"group_agents"`
}

func DefaultRoutes() Routes {
	return Routes{
		DirectAgents:         "/admin/selected-agents?email={email}",
		DirectAgentsFallback: "/admin/users/{email}/agents",
		GroupAssignments:     "/admin/group-assignments?email={email}&activeOnly=true",
		GroupAgents:          "/admin/groups/{id}/agents",
	}
}

func (r Routes) withDefaults() Routes {
	d := DefaultRoutes()
	if r.DirectAgents == "" {
		r.DirectAgents = d.DirectAgents
	}
	if r.DirectAgentsFallback == "" {
		r.DirectAgentsFallback = d.DirectAgentsFallback
	}
	if r.GroupAssignments == "" {
		r.GroupAssignments = d.GroupAssignments
	}
	if r.GroupAgents == "" {
		r.GroupAgents = d.GroupAgents
	}
	return r
}

// expand подставляет значение в шаблон с правильным экранированием.
func expand(tmpl, key, value string) string {
	placeholder := "{" + key + "}"
	idx := strings.Index(tmpl, placeholder)
	if idx < 0 {
		return tmpl
	}
	escape := url.PathEscape
	if q := strings.Index(tmpl, "?"); q >= 0 && idx > q {
		escape = url.QueryEscape
	}
	return strings.ReplaceAll(tmpl, placeholder, escape(value))
}

// AdminAPI реализует Transport: три вызова, нужных одному прогону резолвинга.
type AdminAPI struct {
	getter Getter
	routes Routes
	norm   *normalize.Normalizer
	logger *zap.Logger
}

func NewAdminAPI(getter Getter, routes Routes, norm *normalize.Normalizer, logger *zap.Logger) *AdminAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	if norm == nil {
		norm = normalize.New(nil, logger, nil)
	}
	return &AdminAPI{
		getter: getter,
		routes: routes.withDefaults(),
		norm:   norm,
		logger: logger.Named("admin-api"),
	}
}

// fetchJSON проверяет отмену ДО вызова: отмененный прогон не делает новых запросов.
func (a *AdminAPI) fetchJSON(ctx context.Context, endpoint, path string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := a.getter.Get(ctx, endpoint, path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, &DecodeError{Endpoint: endpoint, Cause: err}
	}
	return v, nil
}

// FetchDirectAgents: основной путь, затем резервный. Каждый путь пробуется ровно один раз,
// побеждает первый успех. Это резервирование, а не ретрай.
func (a *AdminAPI) FetchDirectAgents(ctx context.Context, email string) (domain.AgentSet, error) {
	primary, err := a.fetchJSON(ctx, EndpointDirectAgents, expand(a.routes.DirectAgents, "email", email))
	if err == nil {
		return a.norm.DirectAgents(primary), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	a.logger.Warn("primary direct-agents endpoint failed, trying fallback",
		zap.Int("status", StatusCode(err)),
		zap.Error(err))

	secondary, fallbackErr := a.fetchJSON(ctx, EndpointDirectAgentsFallback, expand(a.routes.DirectAgentsFallback, "email", email))
	if fallbackErr == nil {
		return a.norm.DirectAgents(secondary), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, fmt.Errorf("direct agents: primary: %w; fallback: %w", err, fallbackErr)
}

// FetchGroupAssignments: активные членства пользователя. Резервного пути нет.
func (a *AdminAPI) FetchGroupAssignments(ctx context.Context, email string) ([]domain.GroupAssignment, error) {
	raw, err := a.fetchJSON(ctx, EndpointGroupAssignments, expand(a.routes.GroupAssignments, "email", email))
	if err != nil {
		return nil, fmt.Errorf("group assignments: %w", err)
	}
	return a.norm.Assignments(raw), nil
}

// FetchGroupAgents возвращает сырой JSON roster-а группы; нормализует вызывающий.
func (a *AdminAPI) FetchGroupAgents(ctx context.Context, groupID string) (any, error) {
	raw, err := a.fetchJSON(ctx, EndpointGroupAgents, expand(a.routes.GroupAgents, "id", groupID))
	if err != nil {
		return nil, fmt.Errorf("group %s agents: %w", groupID, err)
	}
	return raw, nil
}
