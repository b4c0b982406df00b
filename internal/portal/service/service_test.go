package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
)

type resolverFunc func(ctx context.Context, email string) (*domain.ResolvedEntitlements, error)

func (f resolverFunc) Resolve(ctx context.Context, email string) (*domain.ResolvedEntitlements, error) {
	return f(ctx, email)
}

func sampleResult() *domain.ResolvedEntitlements {
	return engine.Reconcile(
		domain.NewAgentSet("JIM", "MIKE"),
		[]domain.GroupAgentSet{
			{ID: "g1", Name: "Sales", Description: "Inbound leads", Agents: domain.NewAgentSet("MIKE", "TONY")},
			domain.DegradedGroup("g2"),
		},
	)
}

func TestNewView_Ready(t *testing.T) {
	v := NewView(engine.State{Phase: engine.PhaseReady, Entitlements: sampleResult(), Generation: 3}, domain.DefaultCatalog)

	assert.Equal(t, engine.PhaseReady, v.State)
	assert.EqualValues(t, 3, v.Generation)
	require.Len(t, v.DirectOnly, 1)
	assert.Equal(t, domain.AgentKey("JIM"), v.DirectOnly[0].Key)

	require.Len(t, v.Groups, 2)
	assert.Equal(t, "Inbound leads", v.Groups[0].Description)
	// Карточки в порядке каталога: TONY объявлен раньше MIKE
	assert.Equal(t, domain.AgentKey("TONY"), v.Groups[0].Agents[0].Key)
	assert.Equal(t, domain.AgentKey("MIKE"), v.Groups[0].Agents[1].Key)
	assert.True(t, v.Groups[1].Degraded)
	assert.Empty(t, v.Groups[1].Agents)
}

func TestNewView_IdleHasNoCards(t *testing.T) {
	v := NewView(engine.State{Phase: engine.PhaseIdle, Reason: engine.ReasonSignInRequired}, domain.DefaultCatalog)
	assert.Equal(t, engine.ReasonSignInRequired, v.Reason)
	assert.NotNil(t, v.DirectOnly)
	assert.Empty(t, v.Groups)
}

func TestPortalService_Entitlements(t *testing.T) {
	var calls atomic.Int32
	svc := NewPortalService(resolverFunc(func(_ context.Context, email string) (*domain.ResolvedEntitlements, error) {
		calls.Add(1)
		if email == "broken@example.com" {
			return nil, engine.ErrGroupAssignmentsUnavailable
		}
		return sampleResult(), nil
	}), nil, nil, nil)
	ctx := context.Background()

	idle, err := svc.Entitlements(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseIdle, idle.State)
	assert.EqualValues(t, 0, calls.Load())

	ready, err := svc.Entitlements(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseReady, ready.State)

	failed, err := svc.Entitlements(ctx, "broken@example.com")
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseFailed, failed.State)
	assert.Equal(t, engine.ReasonLoadFailed, failed.Reason)
	assert.Empty(t, failed.DirectOnly)
}

func TestPortalService_CancelledRequest(t *testing.T) {
	svc := NewPortalService(resolverFunc(func(ctx context.Context, _ string) (*domain.ResolvedEntitlements, error) {
		return nil, context.Canceled
	}), nil, nil, nil)

	_, err := svc.Entitlements(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Machine.Snapshot().Phase == engine.PhaseReady
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSessionHub_ReloadByEmail(t *testing.T) {
	var calls atomic.Int32
	hub := NewSessionHub(resolverFunc(func(context.Context, string) (*domain.ResolvedEntitlements, error) {
		calls.Add(1)
		return sampleResult(), nil
	}), nil, nil)
	defer hub.CloseAll()

	a := hub.Open(context.Background(), "a@example.com")
	b := hub.Open(context.Background(), "b@example.com")
	waitReady(t, a)
	waitReady(t, b)
	assert.Equal(t, 2, hub.Count())

	assert.Equal(t, 1, hub.Reload("A@Example.com"))
	assert.Equal(t, 0, hub.Reload("nobody@example.com"))
	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	hub.HandleSignal(engine.ReloadSignal{Email: "*", Reload: true})
	require.Eventually(t, func() bool { return calls.Load() == 5 }, time.Second, 5*time.Millisecond)

	hub.HandleSignal(engine.ReloadSignal{Email: "*", Reload: false})
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 5, calls.Load())
}

func TestSession_CloseUnregisters(t *testing.T) {
	hub := NewSessionHub(resolverFunc(func(ctx context.Context, _ string) (*domain.ResolvedEntitlements, error) {
		<-ctx.Done()
		return nil, errors.New("aborted")
	}), nil, nil)

	s := hub.Open(context.Background(), "a@example.com")
	assert.Equal(t, 1, hub.Count())

	s.Close()
	s.Close()
	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, engine.PhaseLoading, s.Machine.Snapshot().Phase)
}
