package sessions

import "time"

// SessionID identifier type
type SessionID string

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Aggregate Root: Session, one submitted analysis request and its lifecycle.
// Lifecycle: pending -> processing -> completed|failed. Progress is an advisory
// 0-100 hint, monotonically non-decreasing within a run.
type Session struct {
	ID           SessionID  `json:"id"`
	OrigLocation string     `json:"orig_location,omitempty"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
