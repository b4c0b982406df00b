package engine

import (
	"context"
	"sync"

	"github.com/xela07ax/spaceai-agent-portal/internal/audit"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
)

type fakeTransport struct {
	direct      domain.AgentSet
	directErr   error
	assignments []domain.GroupAssignment
	assignErr   error
	groups      map[string]any
	groupErr    map[string]error
}

func (f *fakeTransport) FetchDirectAgents(ctx context.Context, _ string) (domain.AgentSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.direct, f.directErr
}

func (f *fakeTransport) FetchGroupAssignments(ctx context.Context, _ string) ([]domain.GroupAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.assignments, f.assignErr
}

func (f *fakeTransport) FetchGroupAgents(ctx context.Context, id string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.groupErr[id]; err != nil {
		return nil, err
	}
	return f.groups[id], nil
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.ResolutionEvent
}

func (a *recordingAuditor) Log(e audit.ResolutionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAuditor) last() audit.ResolutionEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events[len(a.events)-1]
}

type resolverFunc func(ctx context.Context, email string) (*domain.ResolvedEntitlements, error)

func (f resolverFunc) Resolve(ctx context.Context, email string) (*domain.ResolvedEntitlements, error) {
	return f(ctx, email)
}
