package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xela07ax/spaceai-agent-portal/internal/audit"
)

const auditColumns = 11

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// WriteBatch: одна пакетная вставка на пачку событий.
func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.ResolutionEvent) error {
	if len(events) == 0 {
		return nil
	}
	query, args, err := buildResolutionInsert(events)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: insert resolutions: %w", err)
	}
	return nil
}

func buildResolutionInsert(events []audit.ResolutionEvent) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO entitlement_resolutions " +
		"(id, run_id, trace_id, email, outcome, direct_count, group_count, degraded_groups, error, duration_ms, created_at) VALUES ")

	args := make([]any, 0, len(events)*auditColumns)
	for i, e := range events {
		degraded := e.DegradedGroups
		if degraded == nil {
			degraded = []string{}
		}
		raw, err := json.Marshal(degraded)
		if err != nil {
			return "", nil, fmt.Errorf("postgres: marshal degraded groups: %w", err)
		}

		if i > 0 {
			sb.WriteByte(',')
		}
		p := i * auditColumns
		sb.WriteString("(")
		for c := 1; c <= auditColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", p+c)
		}
		sb.WriteString(")")

		args = append(args,
			e.ID, e.RunID, e.TraceID, e.Email, e.Outcome,
			e.DirectCount, e.GroupCount, string(raw), e.Error, e.DurationMs, e.Timestamp,
		)
	}
	return sb.String(), args, nil
}
