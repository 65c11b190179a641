// Package store provides the persistence sinks for finished sessions: a
// SQLite archive, a Redis sink, and a no-op sink for unconfigured deployments.
package store

// Sink receives best-effort snapshots of session state. Save reports whether
// the snapshot was persisted; it must never panic and callers never treat a
// false return as an error.
type Sink interface {
	Save(snapshot map[string]any) bool
}

// NoopSink is the sink used when persistence is not configured.
type NoopSink struct{}

func (NoopSink) Save(map[string]any) bool { return false }
