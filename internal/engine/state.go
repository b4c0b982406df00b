package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"go.uber.org/zap"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

const (
	ReasonSignInRequired = "sign in to see your assigned agents"
	ReasonLoadFailed     = "could not load your assigned agents, please retry"
)

// State: снимок, который видит UI. Entitlements заполнен только в Ready,
// Reason: только в Idle и Failed.
type State struct {
	Phase        Phase
	Email        string
	Generation   uint64
	Entitlements *domain.ResolvedEntitlements
	Reason       string
	Err          error
}

type EntitlementResolver interface {
	Resolve(ctx context.Context, email string) (*domain.ResolvedEntitlements, error)
}

// StateMachine: Idle -> Loading -> Ready | Failed.
// Каждый новый прогон отменяет предыдущий; результат публикуется,
// только если его поколение все еще текущее.
type StateMachine struct {
	resolver EntitlementResolver
	parent   context.Context
	logger   *zap.Logger

	mu      sync.Mutex
	email   string
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	subs    map[int]chan State
	nextSub int

	current atomic.Pointer[State]
	runs    sync.WaitGroup
}

func NewStateMachine(parent context.Context, resolver EntitlementResolver, logger *zap.Logger) *StateMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &StateMachine{
		resolver: resolver,
		parent:   parent,
		logger:   logger.Named("state"),
		subs:     make(map[int]chan State),
	}
	m.current.Store(&State{Phase: PhaseIdle, Reason: ReasonSignInRequired})
	return m
}

// Snapshot: текущее состояние без блокировок.
func (m *StateMachine) Snapshot() State {
	return *m.current.Load()
}

// SetIdentity запускает прогон для нового email; пустой email равносилен выходу.
func (m *StateMachine) SetIdentity(email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		m.SignOut()
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.email = email
	m.startLocked()
}

// Reload перезапускает прогон для текущего email. Без identity ничего не делает.
func (m *StateMachine) Reload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.email == "" {
		return false
	}
	m.startLocked()
	return true
}

func (m *StateMachine) SignOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.cancelLocked()
	m.email = ""
	m.gen++
	m.publishLocked(State{Phase: PhaseIdle, Reason: ReasonSignInRequired})
}

// Subscribe отдает канал с последним состоянием (latest-wins, буфер 1).
// Медленный подписчик пропускает промежуточные состояния, но не последнее.
func (m *StateMachine) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan State, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- m.Snapshot()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Close отменяет прогон в полете, закрывает подписки и ждет завершения горутин.
func (m *StateMachine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelLocked()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.mu.Unlock()

	m.runs.Wait()
}

func (m *StateMachine) startLocked() {
	m.cancelLocked()
	m.gen++
	gen, email := m.gen, m.email

	ctx, cancel := context.WithCancel(m.parent)
	m.cancel = cancel
	m.publishLocked(State{Phase: PhaseLoading, Email: email})

	m.runs.Add(1)
	go m.run(ctx, gen, email)
}

func (m *StateMachine) cancelLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *StateMachine) run(ctx context.Context, gen uint64, email string) {
	defer m.runs.Done()

	res, err := m.resolver.Resolve(ctx, email)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Прогон устарел или отменен: тишина
	if m.closed || gen != m.gen || ctx.Err() != nil {
		m.logger.Debug("discarding stale resolution", zap.Uint64("generation", gen))
		return
	}
	m.cancelLocked()

	if err != nil {
		m.publishLocked(State{Phase: PhaseFailed, Email: email, Reason: ReasonLoadFailed, Err: err})
		return
	}
	m.publishLocked(State{Phase: PhaseReady, Email: email, Entitlements: res})
}

func (m *StateMachine) publishLocked(s State) {
	s.Generation = m.gen
	m.current.Store(&s)

	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			// вытесняем устаревшее состояние
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
