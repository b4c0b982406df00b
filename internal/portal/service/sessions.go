package service

import (
	"context"
	"strings"
	"sync"

	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
	"go.uber.org/zap"
)

// Session: одна открытая вкладка дашборда со своей машиной состояний.
type Session struct {
	ID      uint64
	Email   string
	Machine *engine.StateMachine

	hub  *SessionHub
	once sync.Once
}

// Close отменяет прогон в полете и снимает сессию с учета. Повторный вызов безопасен.
func (s *Session) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		s.Machine.Close()
	})
}

// SessionHub держит живые сессии, чтобы внешние сигналы могли их перезагрузить.
type SessionHub struct {
	resolver engine.EntitlementResolver
	metrics  *engine.Metrics
	logger   *zap.Logger

	mu       sync.Mutex
	nextID   uint64
	sessions map[uint64]*Session
}

func NewSessionHub(resolver engine.EntitlementResolver, metrics *engine.Metrics, logger *zap.Logger) *SessionHub {
	if metrics == nil {
		metrics = engine.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHub{
		resolver: resolver,
		metrics:  metrics,
		logger:   logger.Named("sessions"),
		sessions: make(map[uint64]*Session),
	}
}

// Open создает сессию, привязанную к ctx (обычно контекст SSE-запроса), и сразу запускает прогон.
func (h *SessionHub) Open(ctx context.Context, email string) *Session {
	m := engine.NewStateMachine(ctx, h.resolver, h.logger)

	h.mu.Lock()
	h.nextID++
	s := &Session{ID: h.nextID, Email: strings.TrimSpace(email), Machine: m, hub: h}
	h.sessions[s.ID] = s
	h.mu.Unlock()

	h.metrics.ActiveSessions.Inc()
	m.SetIdentity(s.Email)
	return s
}

func (h *SessionHub) remove(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if ok {
		h.metrics.ActiveSessions.Dec()
	}
}

func (h *SessionHub) snapshot(match func(*Session) bool) []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Reload перезапускает прогон во всех сессиях пользователя. Email сравнивается без учета регистра.
func (h *SessionHub) Reload(email string) int {
	email = strings.TrimSpace(email)
	n := 0
	for _, s := range h.snapshot(func(s *Session) bool { return strings.EqualFold(s.Email, email) }) {
		if s.Machine.Reload() {
			n++
		}
	}
	return n
}

func (h *SessionHub) ReloadAll() int {
	n := 0
	for _, s := range h.snapshot(func(*Session) bool { return true }) {
		if s.Machine.Reload() {
			n++
		}
	}
	return n
}

// HandleSignal: обработчик сообщений из Redis канала перезагрузки.
func (h *SessionHub) HandleSignal(sig engine.ReloadSignal) {
	if !sig.Reload {
		return
	}
	var n int
	if sig.All() {
		n = h.ReloadAll()
	} else {
		n = h.Reload(sig.Email)
	}
	h.logger.Info("reload signal applied", zap.Bool("all", sig.All()), zap.Int("sessions", n))
}

func (h *SessionHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAll: при остановке сервиса.
func (h *SessionHub) CloseAll() {
	for _, s := range h.snapshot(func(*Session) bool { return true }) {
		s.Close()
	}
}
