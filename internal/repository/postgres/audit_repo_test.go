package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-agent-portal/internal/audit"
)

func TestBuildResolutionInsert(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []audit.ResolutionEvent{
		{ID: "e1", RunID: "r1", Email: "a@x.io", Outcome: audit.OutcomeReady, DirectCount: 2, Timestamp: ts},
		{ID: "e2", RunID: "r2", Email: "b@x.io", Outcome: audit.OutcomeReady, DegradedGroups: []string{"g2"}, Timestamp: ts},
	}

	query, args, err := buildResolutionInsert(events)
	require.NoError(t, err)

	assert.Contains(t, query, "INSERT INTO entitlement_resolutions")
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11),($12,")
	assert.Contains(t, query, "$22)")
	require.Len(t, args, 22)
	assert.Equal(t, "[]", args[7])
	assert.Equal(t, `["g2"]`, args[18])
	assert.Equal(t, ts, args[21])
}
