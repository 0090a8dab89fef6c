package triage

import "context"

// Store is the persistence interface for feedback, audit entries and
// settings.
type Store interface {
	Get(ctx context.Context, id string) (*FeedbackItem, bool, error)

	// List returns every item in queue order (see QueueLess).
	List(ctx context.Context) ([]*FeedbackItem, error)

	// ListAudit returns up to limit entries, newest first.
	ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error)

	Settings(ctx context.Context) (map[string]string, error)
	PutSettings(ctx context.Context, settings map[string]string) error

	// Atomic runs fn as one unit: either everything fn wrote through tx is
	// committed or none of it is.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of Store, only usable inside Atomic.
type Tx interface {
	Get(ctx context.Context, id string) (*FeedbackItem, bool, error)
	PutFeedback(ctx context.Context, item *FeedbackItem) error
	AppendAudit(ctx context.Context, entry *AuditEntry) error

	// DeleteAudit removes audit entries in scope. For ScopeSamples that is
	// every entry referencing a sample-flagged item.
	DeleteAudit(ctx context.Context, scope Scope) (int64, error)
	DeleteFeedback(ctx context.Context, scope Scope) (int64, error)
}

// KeyLookup validates API keys for authenticated ingestion.
type KeyLookup interface {
	LookupActiveKey(ctx context.Context, key string) (bool, error)
}

// Notifier is told about newly created urgent feedback.
type Notifier interface {
	Notify(ctx context.Context, item *FeedbackItem) error
}
