package engine

import (
	"context"

	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/normalize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type GroupFetcher interface {
	FetchGroupAgents(ctx context.Context, groupID string) (any, error)
}

// GroupResolver запрашивает составы групп параллельно. Сбой одной группы
// не роняет прогон: группа остается в выдаче пустой заглушкой.
type GroupResolver struct {
	fetcher GroupFetcher
	norm    *normalize.Normalizer
	metrics *Metrics
	logger  *zap.Logger
}

func NewGroupResolver(fetcher GroupFetcher, norm *normalize.Normalizer, metrics *Metrics, logger *zap.Logger) *GroupResolver {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if norm == nil {
		norm = normalize.New(nil, logger, metrics)
	}
	return &GroupResolver{
		fetcher: fetcher,
		norm:    norm,
		metrics: metrics,
		logger:  logger.Named("groups"),
	}
}

// Resolve возвращает по одной записи на каждую уникальную группу в порядке назначений.
// Ошибок не возвращает; при отмене ctx результат вызывающему не нужен.
func (r *GroupResolver) Resolve(ctx context.Context, assignments []domain.GroupAssignment) []domain.GroupAgentSet {
	distinct := make([]domain.GroupAssignment, 0, len(assignments))
	seen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if a.GroupID == "" {
			continue
		}
		if _, dup := seen[a.GroupID]; dup {
			continue
		}
		seen[a.GroupID] = struct{}{}
		distinct = append(distinct, a)
	}

	out := make([]domain.GroupAgentSet, len(distinct))
	var g errgroup.Group
	for i, a := range distinct {
		g.Go(func() error {
			out[i] = r.resolveOne(ctx, a)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *GroupResolver) resolveOne(ctx context.Context, a domain.GroupAssignment) domain.GroupAgentSet {
	raw, err := r.fetcher.FetchGroupAgents(ctx, a.GroupID)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("group roster unavailable, showing placeholder",
				zap.String("group_id", a.GroupID), zap.Error(err))
		}
		r.metrics.GroupFetches.WithLabelValues("degraded").Inc()
		return domain.DegradedGroup(a.GroupID)
	}

	if !normalize.Salvageable(raw) {
		r.logger.Warn("group roster has unusable shape, showing placeholder",
			zap.String("group_id", a.GroupID))
		r.metrics.GroupFetches.WithLabelValues("degraded").Inc()
		return domain.DegradedGroup(a.GroupID)
	}

	group := r.norm.GroupPayloadWithHint(raw, a)
	if group.ID != a.GroupID {
		r.logger.Debug("group payload reports a different id",
			zap.String("requested", a.GroupID), zap.String("reported", group.ID))
	}
	r.metrics.GroupFetches.WithLabelValues("ok").Inc()
	return group
}
