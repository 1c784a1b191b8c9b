package store

import "context"

// NoopRecorder discards records. Used when AUDIT_PROVIDER=none.
type NoopRecorder struct{}

func NewNoop() *NoopRecorder { return &NoopRecorder{} }

func (NoopRecorder) Record(context.Context, Record) error { return nil }

func (NoopRecorder) ListRecent(context.Context, int) ([]Record, error) { return nil, nil }

func (NoopRecorder) Close() error { return nil }
