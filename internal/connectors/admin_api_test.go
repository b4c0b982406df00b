package connectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"github.com/xela07ax/spaceai-agent-portal/internal/normalize"
)

const email = "user+test@example.com"

func newAPI(t *testing.T, mock *MockAdmin) *AdminAPI {
	t.Helper()
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)
	return NewAdminAPI(NewHTTPAdapter(srv.URL, srv.Client()), Routes{}, normalize.New(nil, nil, nil), nil)
}

func TestFetchDirectAgents_Primary(t *testing.T) {
	mock := NewMockAdmin().SetDirect(email, []string{"jim", "MIKE", "ghost"})
	api := newAPI(t, mock)

	got, err := api.FetchDirectAgents(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, []domain.AgentKey{"JIM", "MIKE"}, got.Sorted())
	assert.EqualValues(t, 0, mock.Calls(EndpointDirectAgentsFallback))
}

func TestNewAdminAPI_DefaultNormalizer(t *testing.T) {
	mock := NewMockAdmin().
		SetDirect(email, []string{"JIM"}).
		SetAssignments(email, []map[string]any{{"groupId": "g1", "isActive": true}})
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)
	api := NewAdminAPI(NewHTTPAdapter(srv.URL, srv.Client()), Routes{}, nil, nil)

	var (
		direct      domain.AgentSet
		assignments []domain.GroupAssignment
		err         error
	)
	require.NotPanics(t, func() {
		direct, err = api.FetchDirectAgents(context.Background(), email)
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.AgentKey{"JIM"}, direct.Sorted())

	require.NotPanics(t, func() {
		assignments, err = api.FetchGroupAssignments(context.Background(), email)
	})
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "g1", assignments[0].GroupID)
}

func TestFetchDirectAgents_FallbackOnStatus(t *testing.T) {
	mock := NewMockAdmin().
		FailRoute(EndpointDirectAgents, http.StatusInternalServerError).
		SetFallback(email, map[string]any{"email": email, "agents": []string{"TONY"}})
	api := newAPI(t, mock)

	got, err := api.FetchDirectAgents(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, []domain.AgentKey{"TONY"}, got.Sorted())
	assert.EqualValues(t, 1, mock.Calls(EndpointDirectAgents))
	assert.EqualValues(t, 1, mock.Calls(EndpointDirectAgentsFallback))
}

func TestFetchDirectAgents_BothPathsFail(t *testing.T) {
	mock := NewMockAdmin().
		FailRoute(EndpointDirectAgents, http.StatusBadGateway).
		FailRoute(EndpointDirectAgentsFallback, http.StatusServiceUnavailable)
	api := newAPI(t, mock)

	_, err := api.FetchDirectAgents(context.Background(), email)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Contains(t, err.Error(), "fallback")
	// Каждый путь ровно один раз
	assert.EqualValues(t, 1, mock.Calls(EndpointDirectAgents))
	assert.EqualValues(t, 1, mock.Calls(EndpointDirectAgentsFallback))
}

func TestFetchGroupAssignments(t *testing.T) {
	mock := NewMockAdmin().SetAssignments(email, []map[string]any{
		{"id": "a1", "groupId": "g1", "isActive": true},
		{"id": "g2"},
	})
	api := newAPI(t, mock)

	got, err := api.FetchGroupAssignments(context.Background(), email)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g1", got[0].GroupID)
	assert.Equal(t, "g2", got[1].GroupID)
}

func TestFetchGroupAssignments_HardFailure(t *testing.T) {
	mock := NewMockAdmin().FailRoute(EndpointGroupAssignments, http.StatusInternalServerError)
	api := newAPI(t, mock)

	_, err := api.FetchGroupAssignments(context.Background(), email)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestFetchGroupAgents_InvalidJSON(t *testing.T) {
	mock := NewMockAdmin().SetGroupRaw("g1", "{not json")
	api := newAPI(t, mock)

	_, err := api.FetchGroupAgents(context.Background(), "g1")
	var de *DecodeError
	require.True(t, errors.As(err, &de))
}

func TestFetch_CancelledBeforeCall(t *testing.T) {
	mock := NewMockAdmin().SetDirect(email, []string{"JIM"})
	api := newAPI(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := api.FetchDirectAgents(ctx, email)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, mock.TotalCalls())
}

func TestFetch_CancelledInFlightSkipsFallback(t *testing.T) {
	mock := NewMockAdmin().
		SetDirect(email, []string{"JIM"}).
		SetLatency(EndpointDirectAgents, time.Second)
	api := newAPI(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := api.FetchDirectAgents(ctx, email)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 0, mock.Calls(EndpointDirectAgentsFallback))
}

func TestExpand(t *testing.T) {
	assert.Equal(t, "/admin/selected-agents?email=a%2Bb%40c.io",
		expand("/admin/selected-agents?email={email}", "email", "a+b@c.io"))
	assert.Equal(t, "/admin/groups/g%2F1/agents",
		expand("/admin/groups/{id}/agents", "id", "g/1"))
	assert.Equal(t, "/static", expand("/static", "id", "x"))
}
