package service

import (
	"context"
	"errors"

	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
	"go.uber.org/zap"
)

// PortalService: разовый резолвинг для загрузки страницы и каталог.
type PortalService struct {
	resolver engine.EntitlementResolver
	catalog  *domain.Catalog
	hub      *SessionHub
	logger   *zap.Logger
}

func NewPortalService(resolver engine.EntitlementResolver, catalog *domain.Catalog, hub *SessionHub, logger *zap.Logger) *PortalService {
	if catalog == nil {
		catalog = domain.DefaultCatalog
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortalService{
		resolver: resolver,
		catalog:  catalog,
		hub:      hub,
		logger:   logger.Named("portal-service"),
	}
}

func (s *PortalService) Catalog() *domain.Catalog { return s.catalog }

// Entitlements выполняет один прогон. Отмена запроса возвращается как ошибка контекста,
// остальные сбои становятся Failed-представлением.
func (s *PortalService) Entitlements(ctx context.Context, email string) (EntitlementsView, error) {
	if email == "" {
		return NewView(engine.State{Phase: engine.PhaseIdle, Reason: engine.ReasonSignInRequired}, s.catalog), nil
	}

	res, err := s.resolver.Resolve(ctx, email)
	switch {
	case err == nil:
		return NewView(engine.State{Phase: engine.PhaseReady, Email: email, Entitlements: res}, s.catalog), nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return EntitlementsView{}, err
	case errors.Is(err, engine.ErrNoIdentity):
		return NewView(engine.State{Phase: engine.PhaseIdle, Reason: engine.ReasonSignInRequired}, s.catalog), nil
	default:
		return NewView(engine.State{Phase: engine.PhaseFailed, Email: email, Reason: engine.ReasonLoadFailed, Err: err}, s.catalog), nil
	}
}

// Reload перезагружает все живые сессии пользователя.
func (s *PortalService) Reload(email string) int {
	if s.hub == nil || email == "" {
		return 0
	}
	return s.hub.Reload(email)
}
