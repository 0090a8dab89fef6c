// Package feedbackapi exposes the triage service and API key management over
// HTTP.
package feedbackapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/apikey"
	"github.com/linnemanlabs/sift/internal/authmw"
	"github.com/linnemanlabs/sift/internal/triage"
)

// TriageService defines the business operations feedbackapi needs.
type TriageService interface {
	Get(ctx context.Context, id string) (*triage.FeedbackItem, bool, error)
	List(ctx context.Context) ([]*triage.FeedbackItem, error)
	Assess(ctx context.Context, text string) (triage.Assessment, error)
	Create(ctx context.Context, text string, origin triage.Origin) (*triage.FeedbackItem, error)
	CreateAuthenticated(ctx context.Context, key, text string) (*triage.FeedbackItem, error)
	ChangeStatus(ctx context.Context, id string, status triage.Status) (*triage.FeedbackItem, error)
	LowerPriority(ctx context.Context, id string) (*triage.FeedbackItem, error)
	Import(ctx context.Context, records []triage.ImportRecord) (int, error)
	LoadSamples(ctx context.Context) (int, error)
	ResetSamples(ctx context.Context) (int, error)
	ClearSamples(ctx context.Context) error
	ClearAll(ctx context.Context) error
	AuditLog(ctx context.Context, limit int) ([]*triage.AuditEntry, error)
	Analytics(ctx context.Context, now time.Time) (*triage.Analytics, error)
	Settings(ctx context.Context) (map[string]string, error)
	UpdateSettings(ctx context.Context, patch map[string]string) (map[string]string, error)
}

// KeyService defines the API key operations feedbackapi needs.
type KeyService interface {
	Create(ctx context.Context, name string) (*apikey.Key, error)
	List(ctx context.Context) ([]*apikey.Key, error)
	Toggle(ctx context.Context, id string) (*apikey.Key, error)
	Delete(ctx context.Context, id string) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	svc        TriageService
	keys       KeyService
	adminToken string
	now        func() time.Time
}

// New creates a new API handler. adminToken guards every destructive or
// configuration route.
func New(logger log.Logger, svc TriageService, keys KeyService, adminToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	if keys == nil {
		panic(xerrors.New("api key service is required"))
	}
	return &API{
		logger:     logger,
		svc:        svc,
		keys:       keys,
		adminToken: adminToken,
		now:        time.Now,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/feedback", a.handleListFeedback)
		r.Post("/feedback", a.handleCreateFeedback)
		r.Get("/feedback/{id}", a.handleGetFeedback)
		r.Patch("/feedback/{id}/status", a.handleChangeStatus)
		r.Patch("/feedback/{id}/lower-priority", a.handleLowerPriority)
		r.Post("/feedback/import-csv", a.handleImport)

		r.Get("/audit-log", a.handleAuditLog)
		r.Get("/analytics", a.handleAnalytics)
		r.Post("/classify", a.handleClassify)

		r.Group(func(r chi.Router) {
			r.Use(authmw.BearerToken(a.adminToken))

			r.Delete("/feedback", a.handleClearAll)

			r.Post("/sample-data/load", a.handleLoadSamples)
			r.Post("/sample-data/reset", a.handleResetSamples)
			r.Delete("/sample-data", a.handleClearSamples)

			r.Get("/settings", a.handleGetSettings)
			r.Patch("/settings", a.handleUpdateSettings)

			r.Get("/api-keys", a.handleListKeys)
			r.Post("/api-keys", a.handleCreateKey)
			r.Patch("/api-keys/{id}/toggle", a.handleToggleKey)
			r.Delete("/api-keys/{id}", a.handleDeleteKey)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error onto a status code. Client errors echo the
// error text; anything else is logged and reported as an internal error.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, msg string, kv ...any) {
	switch {
	case errors.Is(err, triage.ErrValidation), errors.Is(err, apikey.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, triage.ErrAuth):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, triage.ErrNotFound), errors.Is(err, apikey.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		a.logger.Error(r.Context(), err, msg, kv...)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}
