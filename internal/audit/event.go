package audit

import "time"

// Исходы прогона резолвинга
const (
	OutcomeReady     = "READY"
	OutcomeFailed    = "FAILED"
	OutcomeCancelled = "CANCELLED"
)

// ResolutionEvent: запись об одном завершенном прогоне резолвинга.
// Это операционный след, а не сохраненное состояние пользователя.
type ResolutionEvent struct {
	ID      string `json:"id"`       // UUID события
	RunID   string `json:"run_id"`   // ID прогона
	TraceID string `json:"trace_id"` // Сквозной ID запроса
	Email   string `json:"email"`

	// Результат
	Outcome        string    `json:"outcome"`
	DirectCount    int       `json:"direct_count"`
	GroupCount     int       `json:"group_count"`
	DegradedGroups []string  `json:"degraded_groups"`
	Error          string    `json:"error"`
	Timestamp      time.Time `json:"timestamp"`
	DurationMs     int64     `json:"duration_ms"`
}
