package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/page-stats-service/internal/model"
	"github.com/fairyhunter13/page-stats-service/internal/obs"
	"github.com/fairyhunter13/page-stats-service/internal/store"
)

// App holds the dependencies of the HTTP facade. It forwards to the same
// store operations as the queue path, so mutation semantics are identical.
type App struct {
	Store store.Store
}

// NewApp constructs the facade around a counter store.
func NewApp(st store.Store) *App {
	return &App{Store: st}
}

type actionBody struct {
	Action model.Action `json:"action"`
}

func pageIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "page_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// getStatsHandler serves GET /stats/{page_id}.
func (a *App) getStatsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pageIDParam(r)
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "invalid_page_id", "")
		return
	}
	st, err := a.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteJSONError(w, http.StatusNotFound, "not_found", "")
			return
		}
		obs.Logger.Error().Err(err).Int64("page_id", id).Msg("stats_read_failed")
		WriteJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// postPageHandler serves POST /page/{page_id}?action=new.
func (a *App) postPageHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pageIDParam(r)
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "invalid_page_id", "")
		return
	}
	if r.URL.Query().Get("action") != string(model.ActionNew) {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "action must be \"new\"")
		return
	}
	if err := a.Store.Create(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			WriteJSONError(w, http.StatusConflict, "already_exists", "")
			return
		}
		obs.Logger.Error().Err(err).Int64("page_id", id).Msg("page_create_failed")
		WriteJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "created", "page_id": id})
}

// putCounterHandler serves PUT /{post|like|follower}/{page_id} with body
// {"action": "plus"|"minus"}.
func (a *App) putCounterHandler(w http.ResponseWriter, r *http.Request) {
	field := model.Field(chi.URLParam(r, "field"))
	if _, ok := field.CounterName(); !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	id, ok := pageIDParam(r)
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "invalid_page_id", "")
		return
	}
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return
	}
	var body actionBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	var err error
	switch body.Action {
	case model.ActionPlus:
		err = a.Store.Increment(r.Context(), id, field)
	case model.ActionMinus:
		err = a.Store.Decrement(r.Context(), id, field)
	default:
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "action must be \"plus\" or \"minus\"")
		return
	}

	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "page_id": id})
	case errors.Is(err, store.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, store.ErrConditionFailed):
		WriteJSONError(w, http.StatusConflict, "condition_failed", "counter already at zero")
	default:
		obs.Logger.Error().Err(err).Int64("page_id", id).Str("field", string(field)).
			Msg("counter_update_failed")
		WriteJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "")
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
