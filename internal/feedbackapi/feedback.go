package feedbackapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/sift/internal/authmw"
	"github.com/linnemanlabs/sift/internal/triage"
)

type createRequest struct {
	Content string        `json:"content"`
	Source  triage.Origin `json:"source"`
}

type statusRequest struct {
	Status triage.Status `json:"status"`
}

type importRequest struct {
	Data []triage.ImportRecord `json:"data"`
}

func (a *API) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to list feedback")
		return
	}
	if items == nil {
		items = []*triage.FeedbackItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sift.feedback.id", id))

	item, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to get feedback", "id", id)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("sift.feedback.status", string(item.Status)))
	writeJSON(w, http.StatusOK, item)
}

// handleCreateFeedback defaults the source to api, which requires a key.
func (a *API) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		req.Source = triage.OriginAPI
	}

	var (
		item *triage.FeedbackItem
		err  error
	)
	if req.Source == triage.OriginAPI {
		item, err = a.svc.CreateAuthenticated(r.Context(), authmw.APIKey(r), req.Content)
	} else {
		item, err = a.svc.Create(r.Context(), req.Content, req.Source)
	}
	if err != nil {
		a.fail(w, r, err, "failed to create feedback", "source", req.Source)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if !decode(w, r, &req) {
		return
	}

	item, err := a.svc.ChangeStatus(r.Context(), id, req.Status)
	if err != nil {
		a.fail(w, r, err, "failed to change status", "id", id, "status", req.Status)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleLowerPriority(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := a.svc.LowerPriority(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to lower priority", "id", id)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decode(w, r, &req) {
		return
	}

	n, err := a.svc.Import(r.Context(), req.Data)
	if err != nil {
		a.fail(w, r, err, "import failed", "imported", n)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (a *API) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.ClearAll(r.Context()); err != nil {
		a.fail(w, r, err, "failed to clear feedback")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (a *API) handleLoadSamples(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.LoadSamples(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to load samples", "imported", n)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (a *API) handleResetSamples(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.ResetSamples(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to reset samples", "imported", n)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset": true, "imported": n})
}

func (a *API) handleClearSamples(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.ClearSamples(r.Context()); err != nil {
		a.fail(w, r, err, "failed to clear samples")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// auditView is an audit entry joined with its item's content. Content is
// empty when the item no longer exists.
type auditView struct {
	*triage.AuditEntry
	FeedbackContent string `json:"feedback_content"`
}

func (a *API) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := a.svc.AuditLog(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err, "failed to read audit log")
		return
	}

	items, err := a.svc.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to read audit log")
		return
	}
	content := make(map[string]string, len(items))
	for _, it := range items {
		content[it.ID] = it.Content
	}

	out := make([]auditView, 0, len(entries))
	for _, e := range entries {
		v := auditView{AuditEntry: e}
		if e.FeedbackID != nil {
			v.FeedbackContent = content[*e.FeedbackID]
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.Analytics(r.Context(), a.now())
	if err != nil {
		a.fail(w, r, err, "failed to compute analytics")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleClassify previews the verdict for some text without storing it.
func (a *API) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	verdict, err := a.svc.Assess(r.Context(), req.Content)
	if err != nil {
		a.fail(w, r, err, "failed to classify")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}
