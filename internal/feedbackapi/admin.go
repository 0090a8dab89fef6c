package feedbackapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/sift/internal/apikey"
)

type createKeyRequest struct {
	Name string `json:"name"`
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.svc.Settings(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings accepts numbers or numeric strings per key. The
// service does the range checks.
func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if !decode(w, r, &raw) {
		return
	}

	patch := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case json.Number:
			patch[k] = v.String()
		case string:
			patch[k] = v
		default:
			writeError(w, http.StatusBadRequest, "setting "+k+" must be a number")
			return
		}
	}

	settings, err := a.svc.UpdateSettings(r.Context(), patch)
	if err != nil {
		a.fail(w, r, err, "failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := a.keys.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "failed to list api keys")
		return
	}
	if keys == nil {
		keys = []*apikey.Key{}
	}
	writeJSON(w, http.StatusOK, keys)
}

func (a *API) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if !decode(w, r, &req) {
		return
	}

	k, err := a.keys.Create(r.Context(), req.Name)
	if err != nil {
		a.fail(w, r, err, "failed to create api key")
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

func (a *API) handleToggleKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	k, err := a.keys.Toggle(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, "failed to toggle api key", "key_id", id)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (a *API) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := a.keys.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err, "failed to delete api key", "key_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
