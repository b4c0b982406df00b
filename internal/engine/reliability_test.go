package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-agent-portal/internal/connectors"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
)

type stubGetter struct {
	calls int
	err   error
	body  []byte
}

func (s *stubGetter) Get(ctx context.Context, _, _ string) ([]byte, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.body, s.err
}

func metricValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func settings() ReliabilitySettings {
	s := DefaultReliabilitySettings()
	s.CBFailureThreshold = 2
	s.CBTimeout = time.Minute
	return s
}

func TestReliability_PassesThroughOnce(t *testing.T) {
	stub := &stubGetter{body: []byte(`["JIM"]`)}
	m := NewMetrics(prometheus.NewRegistry())
	w := NewReliabilityWrapper(stub, settings(), m, nil)

	body, err := w.Get(context.Background(), connectors.EndpointDirectAgents, "/x")
	require.NoError(t, err)
	assert.Equal(t, `["JIM"]`, string(body))
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, 1.0, metricValue(t, m.UpstreamRequests.WithLabelValues(connectors.EndpointDirectAgents, "ok")))
}

func TestReliability_NoRetryOnFailure(t *testing.T) {
	stub := &stubGetter{err: &connectors.StatusError{Endpoint: connectors.EndpointDirectAgents, Code: http.StatusBadGateway}}
	w := NewReliabilityWrapper(stub, settings(), nil, nil)

	_, err := w.Get(context.Background(), connectors.EndpointDirectAgents, "/x")
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestReliability_BreakerOpensPerEndpoint(t *testing.T) {
	stub := &stubGetter{err: errors.New("connection refused")}
	m := NewMetrics(prometheus.NewRegistry())
	w := NewReliabilityWrapper(stub, settings(), m, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = w.Get(ctx, connectors.EndpointDirectAgents, "/d")
	}
	_, err := w.Get(ctx, connectors.EndpointDirectAgents, "/d")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, stub.calls)
	assert.Equal(t, 1.0, metricValue(t, m.CircuitBreakerState.WithLabelValues(connectors.EndpointDirectAgents)))

	// Соседний эндпоинт не задет
	stub.err = nil
	_, err = w.Get(ctx, connectors.EndpointDirectAgentsFallback, "/f")
	assert.NoError(t, err)
}

// rosterGetter отвечает 500 на roster группы fail, остальным отдает рабочий состав.
type rosterGetter struct {
	fail string
}

func (g rosterGetter) Get(_ context.Context, endpoint, path string) ([]byte, error) {
	if strings.Contains(path, "/"+g.fail+"/") {
		return nil, &connectors.StatusError{Endpoint: endpoint, Code: http.StatusInternalServerError}
	}
	return []byte(`{"group":{"name":"Ops"},"agents":["JIM"]}`), nil
}

func TestReliability_BrokenGroupDoesNotTripHealthyGroups(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	w := NewReliabilityWrapper(rosterGetter{fail: "bad"}, settings(), m, nil)
	api := connectors.NewAdminAPI(w, connectors.DefaultRoutes(), nil, nil)
	r := NewGroupResolver(api, nil, m, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		got := r.Resolve(ctx, []domain.GroupAssignment{{GroupID: "bad"}})
		require.Len(t, got, 1)
		assert.True(t, got[0].Degraded)
	}
	assert.Equal(t, 1.0, metricValue(t, m.OpenGroupBreakers))

	got := r.Resolve(ctx, []domain.GroupAssignment{{GroupID: "ok"}})
	require.Len(t, got, 1)
	assert.False(t, got[0].Degraded)
	assert.Equal(t, "Ops", got[0].Name)
	assert.Equal(t, []domain.AgentKey{"JIM"}, got[0].Agents.Sorted())
}

func TestReliability_ClientErrorsDoNotTrip(t *testing.T) {
	stub := &stubGetter{err: &connectors.StatusError{Endpoint: connectors.EndpointGroupAgents, Code: http.StatusNotFound}}
	w := NewReliabilityWrapper(stub, settings(), nil, nil)

	for i := 0; i < 5; i++ {
		_, err := w.Get(context.Background(), connectors.EndpointGroupAgents, "/g")
		assert.Equal(t, http.StatusNotFound, connectors.StatusCode(err))
	}
	assert.Equal(t, 5, stub.calls)
}

func TestReliability_CancelledBeforeCall(t *testing.T) {
	stub := &stubGetter{}
	w := NewReliabilityWrapper(stub, settings(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Get(ctx, connectors.EndpointDirectAgents, "/x")
	assert.ErrorIs(t, err, context.Canceled)
}
