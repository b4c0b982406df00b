package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/spaceai-agent-portal/internal/audit"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/normalize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoIdentity                  = errors.New("no identity: sign-in required")
	ErrDirectAgentsUnavailable     = errors.New("direct agents unavailable")
	ErrGroupAssignmentsUnavailable = errors.New("group assignments unavailable")
)

// Transport: вызовы admin-сервиса, нужные одному прогону.
type Transport interface {
	FetchDirectAgents(ctx context.Context, email string) (domain.AgentSet, error)
	FetchGroupAssignments(ctx context.Context, email string) ([]domain.GroupAssignment, error)
	GroupFetcher
}

// Resolver выполняет прогон резолвинга: прямые агенты и назначения параллельно,
// затем составы групп, затем сверка.
type Resolver struct {
	transport Transport
	groups    *GroupResolver
	auditor   audit.Auditor
	metrics   *Metrics
	logger    *zap.Logger
}

func NewResolver(t Transport, norm *normalize.Normalizer, auditor audit.Auditor, metrics *Metrics, logger *zap.Logger) *Resolver {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditor == nil {
		auditor = audit.NopAuditor{}
	}
	return &Resolver{
		transport: t,
		groups:    NewGroupResolver(t, norm, metrics, logger),
		auditor:   auditor,
		metrics:   metrics,
		logger:    logger.Named("resolver"),
	}
}

// Resolve выполняет один прогон для email.
// Ошибки: ErrNoIdentity, ErrDirectAgentsUnavailable, ErrGroupAssignmentsUnavailable
// или ошибка контекста, если прогон отменили.
func (r *Resolver) Resolve(ctx context.Context, email string) (*domain.ResolvedEntitlements, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrNoIdentity
	}

	start := time.Now()
	event := audit.ResolutionEvent{
		ID:        uuid.New().String(),
		RunID:     uuid.New().String(),
		TraceID:   TraceID(ctx),
		Email:     email,
		Timestamp: start,
	}
	log := r.logger.With(zap.String("run_id", event.RunID), zap.String("trace_id", event.TraceID))

	var (
		direct      domain.AgentSet
		assignments []domain.GroupAssignment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set, err := r.transport.FetchDirectAgents(gctx, email)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDirectAgentsUnavailable, err)
		}
		direct = set
		return nil
	})
	g.Go(func() error {
		list, err := r.transport.FetchGroupAssignments(gctx, email)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrGroupAssignmentsUnavailable, err)
		}
		assignments = list
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.finish(event, audit.OutcomeCancelled, nil, ctxErr, log)
			return nil, ctxErr
		}
		r.finish(event, audit.OutcomeFailed, nil, err, log)
		return nil, err
	}

	groups := r.groups.Resolve(ctx, assignments)
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.finish(event, audit.OutcomeCancelled, nil, ctxErr, log)
		return nil, ctxErr
	}

	res := Reconcile(direct, groups)
	r.finish(event, audit.OutcomeReady, res, nil, log)
	return res, nil
}

func (r *Resolver) finish(event audit.ResolutionEvent, outcome string, res *domain.ResolvedEntitlements, err error, log *zap.Logger) {
	elapsed := time.Since(event.Timestamp)
	label := strings.ToLower(outcome)
	r.metrics.Resolutions.WithLabelValues(label).Inc()
	r.metrics.ResolutionDuration.WithLabelValues(label).Observe(elapsed.Seconds())

	event.Outcome = outcome
	event.DurationMs = elapsed.Milliseconds()
	if res != nil {
		event.DirectCount = res.DirectOnly.Len()
		event.GroupCount = len(res.Groups)
		event.DegradedGroups = res.DegradedGroups()
	}
	if err != nil {
		event.Error = err.Error()
	}

	switch outcome {
	case audit.OutcomeReady:
		log.Info("entitlements resolved",
			zap.Int("direct_only", event.DirectCount),
			zap.Int("groups", event.GroupCount),
			zap.Strings("degraded", event.DegradedGroups),
			zap.Duration("took", elapsed))
	case audit.OutcomeCancelled:
		log.Debug("resolution cancelled", zap.Duration("took", elapsed))
	default:
		log.Error("resolution failed", zap.Error(err), zap.Duration("took", elapsed))
	}

	r.auditor.Log(event)
}
