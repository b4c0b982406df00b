package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
)

func readyWith(ks ...string) *domain.ResolvedEntitlements {
	return Reconcile(keys(ks...), nil)
}

// waitPhase читает подписку, пока не встретит нужную фазу.
func waitPhase(t *testing.T, ch <-chan State, phase Phase) State {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			require.True(t, ok, "subscription closed while waiting for %s", phase)
			if s.Phase == phase {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting for phase %s", phase)
		}
	}
}

func TestStateMachine_StartsIdle(t *testing.T) {
	m := NewStateMachine(context.Background(), resolverFunc(func(context.Context, string) (*domain.ResolvedEntitlements, error) {
		t.Fatal("resolver must not be called without identity")
		return nil, nil
	}), nil)
	defer m.Close()

	s := m.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, ReasonSignInRequired, s.Reason)
	assert.False(t, m.Reload())
}

func TestStateMachine_LoadingThenReady(t *testing.T) {
	release := make(chan struct{})
	m := NewStateMachine(context.Background(), resolverFunc(func(ctx context.Context, email string) (*domain.ResolvedEntitlements, error) {
		<-release
		return readyWith("JIM"), nil
	}), nil)
	defer m.Close()

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()
	waitPhase(t, ch, PhaseIdle)

	m.SetIdentity("user@example.com")
	loading := waitPhase(t, ch, PhaseLoading)
	assert.Equal(t, "user@example.com", loading.Email)
	assert.Nil(t, loading.Entitlements)

	close(release)
	ready := waitPhase(t, ch, PhaseReady)
	require.NotNil(t, ready.Entitlements)
	assert.Equal(t, []domain.AgentKey{"JIM"}, ready.Entitlements.DirectOnly.Sorted())
}

func TestStateMachine_Failed(t *testing.T) {
	m := NewStateMachine(context.Background(), resolverFunc(func(context.Context, string) (*domain.ResolvedEntitlements, error) {
		return nil, ErrGroupAssignmentsUnavailable
	}), nil)
	defer m.Close()

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.SetIdentity("user@example.com")
	s := waitPhase(t, ch, PhaseFailed)
	assert.Equal(t, ReasonLoadFailed, s.Reason)
	assert.ErrorIs(t, s.Err, ErrGroupAssignmentsUnavailable)
	assert.Nil(t, s.Entitlements)
}

func TestStateMachine_ReloadPassesThroughLoading(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{}, 2)
	m := NewStateMachine(context.Background(), resolverFunc(func(ctx context.Context, _ string) (*domain.ResolvedEntitlements, error) {
		calls.Add(1)
		<-gate
		return readyWith("LARA"), nil
	}), nil)
	defer m.Close()

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.SetIdentity("user@example.com")
	gate <- struct{}{}
	waitPhase(t, ch, PhaseReady)

	require.True(t, m.Reload())
	waitPhase(t, ch, PhaseLoading)
	gate <- struct{}{}
	waitPhase(t, ch, PhaseReady)
	assert.EqualValues(t, 2, calls.Load())
}

// Устаревший прогон не перезаписывает результат нового, даже если игнорирует отмену.
func TestStateMachine_StaleRunNeverPublishes(t *testing.T) {
	releaseSlow := make(chan struct{})
	slowReturned := make(chan struct{})
	m := NewStateMachine(context.Background(), resolverFunc(func(ctx context.Context, email string) (*domain.ResolvedEntitlements, error) {
		if email == "slow@example.com" {
			<-releaseSlow
			defer close(slowReturned)
			return readyWith("TONY"), nil
		}
		return readyWith("JIM"), nil
	}), nil)
	defer m.Close()

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.SetIdentity("slow@example.com")
	waitPhase(t, ch, PhaseLoading)
	m.SetIdentity("fast@example.com")
	ready := waitPhase(t, ch, PhaseReady)
	assert.Equal(t, "fast@example.com", ready.Email)

	close(releaseSlow)
	<-slowReturned
	time.Sleep(50 * time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, "fast@example.com", s.Email)
	assert.Equal(t, []domain.AgentKey{"JIM"}, s.Entitlements.DirectOnly.Sorted())
}

func TestStateMachine_SignOutCancelsInFlight(t *testing.T) {
	cancelled := make(chan struct{})
	m := NewStateMachine(context.Background(), resolverFunc(func(ctx context.Context, _ string) (*domain.ResolvedEntitlements, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}), nil)
	defer m.Close()

	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.SetIdentity("user@example.com")
	waitPhase(t, ch, PhaseLoading)
	m.SignOut()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight run was not cancelled")
	}
	s := waitPhase(t, ch, PhaseIdle)
	assert.Equal(t, ReasonSignInRequired, s.Reason)
	assert.False(t, m.Reload())
}

func TestStateMachine_EmptyIdentityIsSignOut(t *testing.T) {
	m := NewStateMachine(context.Background(), resolverFunc(func(context.Context, string) (*domain.ResolvedEntitlements, error) {
		return readyWith("JIM"), nil
	}), nil)
	defer m.Close()

	m.SetIdentity("  ")
	assert.Equal(t, PhaseIdle, m.Snapshot().Phase)
}

func TestStateMachine_CloseEndsSubscriptions(t *testing.T) {
	m := NewStateMachine(context.Background(), resolverFunc(func(ctx context.Context, _ string) (*domain.ResolvedEntitlements, error) {
		<-ctx.Done()
		return nil, errors.New("aborted")
	}), nil)

	ch, unsubscribe := m.Subscribe()
	m.SetIdentity("user@example.com")
	m.Close()
	unsubscribe()

	for range ch {
	}
	assert.Equal(t, PhaseLoading, m.Snapshot().Phase)
}
