package triage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/linnemanlabs/sift/internal/triage"

const (
	// DefaultNotifyThreshold is the score at or above which new feedback is
	// pushed to the notifier.
	DefaultNotifyThreshold = bandImmediate

	// MaxAuditPage caps AuditLog.
	MaxAuditPage = 100
)

// Options are the optional collaborators of a Service.
type Options struct {
	Hooks           ServiceHooks
	Notifier        Notifier
	NotifyThreshold int
	Samples         []ImportRecord
}

// Service is the business boundary for feedback triage. It owns the item
// lifecycle and writes an audit entry in the same transaction as every
// mutation.
type Service struct {
	store    Store
	keys     KeyLookup
	logger   log.Logger
	hooks    ServiceHooks
	notifier Notifier
	notifyAt int
	samples  []ImportRecord
	now      func() time.Time
}

// NewService creates a new triage service.
func NewService(store Store, keys KeyLookup, logger log.Logger, opts Options) *Service {
	if store == nil {
		panic(xerrors.New("triage store is required"))
	}
	if keys == nil {
		panic(xerrors.New("key lookup is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if opts.NotifyThreshold <= 0 {
		opts.NotifyThreshold = DefaultNotifyThreshold
	}
	if opts.Samples == nil {
		opts.Samples = DefaultSamples()
	}
	return &Service{
		store:    store,
		keys:     keys,
		logger:   logger,
		hooks:    opts.Hooks,
		notifier: opts.Notifier,
		notifyAt: opts.NotifyThreshold,
		samples:  opts.Samples,
		now:      time.Now,
	}
}

// Weights returns the currently committed category weights.
func (s *Service) Weights(ctx context.Context) (Weights, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return Weights{}, fmt.Errorf("load weights: %w", err)
	}
	return WeightsFromSettings(settings), nil
}

// Assess classifies and scores text under the current weights without
// persisting anything.
func (s *Service) Assess(ctx context.Context, text string) (Assessment, error) {
	w, err := s.Weights(ctx)
	if err != nil {
		return Assessment{}, err
	}
	return Assess(text, w), nil
}

// Create triages and stores a new feedback item. API-origin items must go
// through CreateAuthenticated.
func (s *Service) Create(ctx context.Context, text string, origin Origin) (*FeedbackItem, error) {
	ctx, span := startSpan(ctx, "triage.Create", attribute.String("sift.feedback.origin", string(origin)))
	defer span.End()

	if err := validateNew(text, origin); err != nil {
		endSpan(span, err)
		return nil, err
	}

	w, err := s.Weights(ctx)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	item, err := s.create(ctx, text, origin, w)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("sift.feedback.id", item.ID),
		attribute.String("sift.feedback.category", item.Category.String()),
		attribute.Int("sift.feedback.score", item.Score),
	)
	return item, nil
}

// CreateAuthenticated is Create for the API origin. The key is checked
// before anything else happens.
func (s *Service) CreateAuthenticated(ctx context.Context, key, text string) (*FeedbackItem, error) {
	ctx, span := startSpan(ctx, "triage.CreateAuthenticated")
	defer span.End()

	if strings.TrimSpace(key) == "" {
		s.authFailed(ctx, "missing_key")
		err := fmt.Errorf("%w: API key required", ErrAuth)
		endSpan(span, err)
		return nil, err
	}

	ok, err := s.keys.LookupActiveKey(ctx, key)
	if err != nil {
		err = fmt.Errorf("lookup api key: %w", err)
		endSpan(span, err)
		return nil, err
	}
	if !ok {
		s.authFailed(ctx, "invalid_key")
		err := fmt.Errorf("%w: invalid API key", ErrAuth)
		endSpan(span, err)
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("%w: content is required", ErrValidation)
		endSpan(span, err)
		return nil, err
	}

	w, err := s.Weights(ctx)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	item, err := s.create(ctx, text, OriginAPI, w)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("sift.feedback.id", item.ID),
		attribute.String("sift.feedback.category", item.Category.String()),
		attribute.Int("sift.feedback.score", item.Score),
	)
	return item, nil
}

// ChangeStatus moves an item to a new status. Re-applying the current
// status is allowed and still audited.
func (s *Service) ChangeStatus(ctx context.Context, id string, status Status) (*FeedbackItem, error) {
	ctx, span := startSpan(ctx, "triage.ChangeStatus",
		attribute.String("sift.feedback.id", id),
		attribute.String("sift.feedback.status", string(status)),
	)
	defer span.End()

	if !status.Valid() {
		err := fmt.Errorf("%w: invalid status %q", ErrValidation, status)
		endSpan(span, err)
		return nil, err
	}

	var (
		updated *FeedbackItem
		prev    Status
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		item, err := mustGet(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(item.Status, status); err != nil {
			return err
		}

		now := s.now().UTC()
		prev = item.Status
		item.Status = status
		item.UpdatedAt = now

		if err := tx.PutFeedback(ctx, item); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, newAudit(item.ID, ActionStatusChange, strPtr(string(prev)), strPtr(string(status)), now)); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		err = fmt.Errorf("change status of %s: %w", id, err)
		endSpan(span, err)
		return nil, err
	}

	if s.hooks.OnStatusChange != nil {
		s.hooks.OnStatusChange(prev, status)
	}
	s.logger.Info(ctx, "feedback status changed",
		"feedback_id", id,
		"from", prev,
		"to", status,
	)
	return updated, nil
}

// LowerPriority drops an item's score by one step, never below zero. It is
// a manual override and does not consult the scorer.
func (s *Service) LowerPriority(ctx context.Context, id string) (*FeedbackItem, error) {
	ctx, span := startSpan(ctx, "triage.LowerPriority", attribute.String("sift.feedback.id", id))
	defer span.End()

	var (
		updated  *FeedbackItem
		oldScore int
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		item, err := mustGet(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		oldScore = item.Score
		item.Score = lowered(item.Score)
		item.UpdatedAt = now

		if err := tx.PutFeedback(ctx, item); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, newAudit(item.ID, ActionPriorityLowered, strPtr(strconv.Itoa(oldScore)), strPtr(strconv.Itoa(item.Score)), now)); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		err = fmt.Errorf("lower priority of %s: %w", id, err)
		endSpan(span, err)
		return nil, err
	}

	if s.hooks.OnPriorityLowered != nil {
		s.hooks.OnPriorityLowered(oldScore, updated.Score)
	}
	s.logger.Info(ctx, "feedback priority lowered",
		"feedback_id", id,
		"from", oldScore,
		"to", updated.Score,
	)
	return updated, nil
}

// Import creates one csv-origin item per record. Records without text are
// skipped. A storage failure stops the import; the count of items already
// created is returned with the error.
func (s *Service) Import(ctx context.Context, records []ImportRecord) (int, error) {
	ctx, span := startSpan(ctx, "triage.Import", attribute.Int("sift.import.records", len(records)))
	defer span.End()

	if len(records) == 0 {
		err := fmt.Errorf("%w: data array is required", ErrValidation)
		endSpan(span, err)
		return 0, err
	}

	n, err := s.importRecords(ctx, "import_csv", records, OriginCSV)
	endSpan(span, err)
	return n, err
}

// LoadSamples adds the sample set. Every call adds a fresh copy.
func (s *Service) LoadSamples(ctx context.Context) (int, error) {
	ctx, span := startSpan(ctx, "triage.LoadSamples")
	defer span.End()

	n, err := s.importRecords(ctx, "load_samples", s.samples, OriginSample)
	endSpan(span, err)
	return n, err
}

// ResetSamples replaces all sample items with a fresh sample set. Items
// that are not samples are untouched.
func (s *Service) ResetSamples(ctx context.Context) (int, error) {
	ctx, span := startSpan(ctx, "triage.ResetSamples")
	defer span.End()

	if err := s.clear(ctx, ScopeSamples); err != nil {
		endSpan(span, err)
		return 0, err
	}

	n, err := s.importRecords(ctx, "load_samples", s.samples, OriginSample)
	endSpan(span, err)
	return n, err
}

// ClearSamples deletes every sample item and its audit entries.
func (s *Service) ClearSamples(ctx context.Context) error {
	ctx, span := startSpan(ctx, "triage.ClearSamples")
	defer span.End()

	err := s.clear(ctx, ScopeSamples)
	endSpan(span, err)
	return err
}

// ClearAll deletes every item and every audit entry.
func (s *Service) ClearAll(ctx context.Context) error {
	ctx, span := startSpan(ctx, "triage.ClearAll")
	defer span.End()

	err := s.clear(ctx, ScopeAll)
	endSpan(span, err)
	return err
}

// Get retrieves a feedback item by ID.
func (s *Service) Get(ctx context.Context, id string) (*FeedbackItem, bool, error) {
	return s.store.Get(ctx, id)
}

// List returns the triage queue.
func (s *Service) List(ctx context.Context) ([]*FeedbackItem, error) {
	return s.store.List(ctx)
}

// AuditLog returns the most recent audit entries. limit is clamped to
// 1..MaxAuditPage; zero means MaxAuditPage.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 || limit > MaxAuditPage {
		limit = MaxAuditPage
	}
	return s.store.ListAudit(ctx, limit)
}

// Settings returns the raw settings map.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	return s.store.Settings(ctx)
}

// UpdateSettings applies a partial settings update and returns the result.
func (s *Service) UpdateSettings(ctx context.Context, patch map[string]string) (map[string]string, error) {
	clean, err := validateSettings(patch)
	if err != nil {
		return nil, err
	}
	if len(clean) > 0 {
		if err := s.store.PutSettings(ctx, clean); err != nil {
			return nil, fmt.Errorf("update settings: %w", err)
		}
		s.logger.Info(ctx, "settings updated", "keys", len(clean))
	}
	return s.store.Settings(ctx)
}

// create assumes validated input and weights read once by the caller.
func (s *Service) create(ctx context.Context, text string, origin Origin, w Weights) (*FeedbackItem, error) {
	content := strings.TrimSpace(text)
	a := Assess(content, w)
	now := s.now().UTC()

	item := &FeedbackItem{
		ID:        ulid.Make().String(),
		Content:   content,
		Origin:    origin,
		Category:  a.Category,
		Score:     a.Score,
		Reason:    a.Reason,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		IsSample:  origin == OriginSample,
	}
	entry := newAudit(item.ID, ActionCreated, nil, strPtr(string(StatusPending)), now)

	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.PutFeedback(ctx, item); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}

	if s.hooks.OnCreate != nil {
		s.hooks.OnCreate(origin, item.Category, item.Score)
	}
	s.logger.Info(ctx, "feedback created",
		"feedback_id", item.ID,
		"origin", origin,
		"category", item.Category.String(),
		"score", item.Score,
		"signals", a.Signals,
	)

	if s.notifier != nil && origin != OriginSample && item.Score >= s.notifyAt {
		cp := *item
		go s.notify(context.WithoutCancel(ctx), &cp)
	}

	return item, nil
}

func (s *Service) importRecords(ctx context.Context, op string, records []ImportRecord, origin Origin) (int, error) {
	w, err := s.Weights(ctx)
	if err != nil {
		return 0, err
	}

	imported := 0
	for i, rec := range records {
		text := rec.text()
		if text == "" {
			continue
		}
		if _, err := s.create(ctx, text, origin, w); err != nil {
			s.bulkDone(ctx, op, imported)
			return imported, fmt.Errorf("%s: record %d: %w", op, i, err)
		}
		imported++
	}

	s.bulkDone(ctx, op, imported)
	return imported, nil
}

// clear removes audit entries before the items they reference, in one
// transaction.
func (s *Service) clear(ctx context.Context, scope Scope) error {
	var entries, items int64
	err := s.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if entries, err = tx.DeleteAudit(ctx, scope); err != nil {
			return err
		}
		items, err = tx.DeleteFeedback(ctx, scope)
		return err
	})

	op := "clear_all"
	if scope == ScopeSamples {
		op = "clear_samples"
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info(ctx, "feedback cleared", "op", op, "items", items, "audit_entries", entries)
	if s.hooks.OnBulk != nil {
		s.hooks.OnBulk(op, int(items))
	}
	return nil
}

func (s *Service) bulkDone(ctx context.Context, op string, n int) {
	s.logger.Info(ctx, "bulk import finished", "op", op, "imported", n)
	if s.hooks.OnBulk != nil {
		s.hooks.OnBulk(op, n)
	}
}

func (s *Service) authFailed(ctx context.Context, reason string) {
	s.logger.Warn(ctx, "rejected authenticated ingestion", "reason", reason)
	if s.hooks.OnAuthFailure != nil {
		s.hooks.OnAuthFailure(reason)
	}
}

func (s *Service) notify(ctx context.Context, item *FeedbackItem) {
	err := s.notifier.Notify(ctx, item)
	if err != nil {
		s.logger.Error(ctx, err, "failed to notify urgent feedback", "feedback_id", item.ID)
	}
	if s.hooks.OnNotify != nil {
		s.hooks.OnNotify(err)
	}
}

func validateNew(text string, origin Origin) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if !origin.Valid() {
		return fmt.Errorf("%w: invalid source %q", ErrValidation, origin)
	}
	if origin == OriginAPI {
		return fmt.Errorf("%w: api feedback requires an API key", ErrValidation)
	}
	return nil
}

// checkTransition enforces the lifecycle: resolved is terminal and pending
// is never re-entered. Re-applying the current status is always allowed.
func checkTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if from == StatusResolved {
		return fmt.Errorf("%w: resolved feedback cannot move to %s", ErrValidation, to)
	}
	if to == StatusPending {
		return fmt.Errorf("%w: %s feedback cannot move back to pending", ErrValidation, from)
	}
	return nil
}

func mustGet(ctx context.Context, tx Tx, id string) (*FeedbackItem, error) {
	item, ok, err := tx.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: feedback %s", ErrNotFound, id)
	}
	return item, nil
}

func newAudit(feedbackID string, action Action, oldValue, newValue *string, at time.Time) *AuditEntry {
	return &AuditEntry{
		ID:         ulid.Make().String(),
		FeedbackID: strPtr(feedbackID),
		Action:     action,
		OldValue:   oldValue,
		NewValue:   newValue,
		CreatedAt:  at,
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
