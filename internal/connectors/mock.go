package connectors

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// MockAdmin: in-memory admin-сервис с фикстурами. Используется в тестах
// и в `agentsctl mock-admin` для локальной разработки дашборда.
// Умеет имитировать задержку и отказы отдельных маршрутов и групп.
type MockAdmin struct {
	mu          sync.RWMutex
	direct      map[string]any // email -> ответ основного пути
	fallback    map[string]any // email -> ответ резервного пути
	assignments map[string]any // email -> список назначений
	groups      map[string]any // groupID -> roster

	failRoute    map[string]int // endpoint -> HTTP статус
	failGroup    map[string]int // groupID -> HTTP статус
	rawGroup     map[string]string
	latency      map[string]time.Duration
	groupLatency map[string]time.Duration

	calls  map[string]*atomic.Int64
	router chi.Router
}

func NewMockAdmin() *MockAdmin {
	m := &MockAdmin{
		direct:       make(map[string]any),
		fallback:     make(map[string]any),
		assignments:  make(map[string]any),
		groups:       make(map[string]any),
		failRoute:    make(map[string]int),
		failGroup:    make(map[string]int),
		rawGroup:     make(map[string]string),
		latency:      make(map[string]time.Duration),
		groupLatency: make(map[string]time.Duration),
		calls:        make(map[string]*atomic.Int64),
	}
	for _, e := range Endpoints {
		m.calls[e] = &atomic.Int64{}
	}

	r := chi.NewRouter()
	r.Get("/admin/selected-agents", m.serve(EndpointDirectAgents, func(r *http.Request) (any, bool) {
		return m.lookup(m.direct, r.URL.Query().Get("email"))
	}))
	r.Get("/admin/users/{email}/agents", m.serve(EndpointDirectAgentsFallback, func(r *http.Request) (any, bool) {
		return m.lookup(m.fallback, chi.URLParam(r, "email"))
	}))
	r.Get("/admin/group-assignments", m.serve(EndpointGroupAssignments, func(r *http.Request) (any, bool) {
		v, ok := m.lookup(m.assignments, r.URL.Query().Get("email"))
		if !ok {
			return []any{}, true
		}
		return v, true
	}))
	r.Get("/admin/groups/{id}/agents", m.serveGroup)
	m.router = r
	return m
}

func (m *MockAdmin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.router.ServeHTTP(w, r)
}

// --- Фикстуры ---

func (m *MockAdmin) SetDirect(email string, payload any) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direct[email] = payload
	return m
}

func (m *MockAdmin) SetFallback(email string, payload any) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback[email] = payload
	return m
}

func (m *MockAdmin) SetAssignments(email string, payload any) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[email] = payload
	return m
}

func (m *MockAdmin) SetGroup(id string, payload any) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[id] = payload
	return m
}

// SetGroupRaw отдает тело как есть (для битого JSON).
func (m *MockAdmin) SetGroupRaw(id, body string) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawGroup[id] = body
	return m
}

// FailRoute заставляет эндпоинт отвечать статусом; 0 снимает отказ.
func (m *MockAdmin) FailRoute(endpoint string, status int) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRoute[endpoint] = status
	return m
}

func (m *MockAdmin) FailGroup(id string, status int) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGroup[id] = status
	return m
}

func (m *MockAdmin) SetLatency(endpoint string, d time.Duration) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency[endpoint] = d
	return m
}

func (m *MockAdmin) SetGroupLatency(id string, d time.Duration) *MockAdmin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupLatency[id] = d
	return m
}

// Calls: сколько раз дернули эндпоинт.
func (m *MockAdmin) Calls(endpoint string) int64 {
	if c, ok := m.calls[endpoint]; ok {
		return c.Load()
	}
	return 0
}

func (m *MockAdmin) TotalCalls() int64 {
	var total int64
	for _, c := range m.calls {
		total += c.Load()
	}
	return total
}

// --- Обработчики ---

func (m *MockAdmin) lookup(src map[string]any, key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := src[key]
	return v, ok
}

// delay имитирует сетевую задержку и уважает отмену запроса.
func delay(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-r.Context().Done():
		return false
	}
}

func (m *MockAdmin) serve(endpoint string, load func(*http.Request) (any, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.calls[endpoint].Add(1)

		m.mu.RLock()
		status := m.failRoute[endpoint]
		d := m.latency[endpoint]
		m.mu.RUnlock()

		if !delay(r, d) {
			return
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		v, ok := load(r)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, v)
	}
}

func (m *MockAdmin) serveGroup(w http.ResponseWriter, r *http.Request) {
	m.calls[EndpointGroupAgents].Add(1)
	id := chi.URLParam(r, "id")

	m.mu.RLock()
	status := m.failRoute[EndpointGroupAgents]
	if s, ok := m.failGroup[id]; ok && s != 0 {
		status = s
	}
	d := m.latency[EndpointGroupAgents]
	if gd, ok := m.groupLatency[id]; ok {
		d = gd
	}
	raw, hasRaw := m.rawGroup[id]
	payload, hasPayload := m.groups[id]
	m.mu.RUnlock()

	if !delay(r, d) {
		return
	}
	switch {
	case status != 0:
		http.Error(w, http.StatusText(status), status)
	case hasRaw:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
	case hasPayload:
		writeJSON(w, payload)
	default:
		http.Error(w, "group not found", http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// DemoFixtures наполняет мок данными, похожими на боевые.
func (m *MockAdmin) DemoFixtures() *MockAdmin {
	const email = "demo@ai-scaleup.com"
	m.SetDirect(email, []string{"JIM", "MIKE", "LARA"})
	m.SetAssignments(email, []map[string]any{
		{"id": "asg-1", "email": email, "groupId": "7f3c9a10-marketing", "isActive": true,
			"group": map[string]any{"id": "7f3c9a10-marketing", "name": "Marketing Team"}},
		{"id": "asg-2", "email": email, "groupId": "b81e44d2-sales", "isActive": true, "groupDescription": "Pipeline and deals"},
	})
	m.SetGroup("7f3c9a10-marketing", map[string]any{
		"group":  map[string]any{"id": "7f3c9a10-marketing", "name": "Marketing Team", "description": "Campaigns and content", "isActive": true},
		"agents": []string{"MIKE", "TONY", "SIMONE"},
		"count":  3,
	})
	m.SetGroup("b81e44d2-sales", map[string]any{
		"items": []map[string]any{
			{"id": "ga-1", "groupId": "b81e44d2-sales", "agentName": "DANIELE", "isActive": true},
			{"id": "ga-2", "groupId": "b81e44d2-sales", "agentName": "ALADINO", "isActive": true},
		},
	})
	return m
}
