package quota

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of a counter window date.
const DateLayout = "2006-01-02"

// UsageCounter matches the usage_counters table schema. WindowStart is a
// civil date (YYYY-MM-DD) in the configured reference time zone: all
// requests on the same calendar day share one window regardless of
// wall-clock time.
type UsageCounter struct {
	UserID      uuid.UUID `json:"user_id"`
	TotalCount  int64     `json:"total_count"`
	WindowCount int       `json:"window_count"`
	WindowStart string    `json:"window_start"`
	DailyLimit  int       `json:"daily_limit"`
	Version     int64     `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Decision is the admission verdict for a generation request. An over-quota
// outcome is an expected decision, not an error: callers render it as a 429
// with the limit and used figures, never as a server fault.
type Decision struct {
	Allowed bool `json:"allowed"`
	Limit   int  `json:"limit"`
	Used    int  `json:"used"`
}

// Status is the API response showing current usage against the daily limit.
type Status struct {
	Used        int    `json:"used_today"`
	Limit       int    `json:"daily_limit"`
	Remaining   int    `json:"remaining"`
	TotalCount  int64  `json:"total_prompts"`
	WindowStart string `json:"window_start"`
}
