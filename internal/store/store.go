package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is the audit entry for one NLU operation. It carries metadata only;
// user messages and extracted values are never stored.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Operation  string    `json:"operation"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Outcome    string    `json:"outcome"`
	Attempts   int       `json:"attempts"`
	Errors     []string  `json:"errors,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Recorder persists operation records; an external DB implementation can replace this.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
