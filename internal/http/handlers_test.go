package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/fairyhunter13/page-stats-service/internal/http"
	"github.com/fairyhunter13/page-stats-service/internal/model"
	"github.com/fairyhunter13/page-stats-service/internal/store"
)

func newTestRouter() http.Handler {
	return httpapi.NewRouter(httpapi.NewApp(store.NewMemStore()))
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPageLifecycle(t *testing.T) {
	h := newTestRouter()

	rr := do(t, h, http.MethodPost, "/page/42?action=new", "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodPost, "/page/42?action=new", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	for i := 0; i < 2; i++ {
		rr = do(t, h, http.MethodPut, "/post/42", `{"action": "plus"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	rr = do(t, h, http.MethodPut, "/follower/42", `{"action": "plus"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPut, "/follower/42", `{"action": "minus"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/stats/42", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var st model.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, model.Stats{PageID: 42, PostsCount: 2}, st)
}

func TestDecrementAtZeroConflicts(t *testing.T) {
	h := newTestRouter()

	rr := do(t, h, http.MethodPost, "/page/1?action=new", "")
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodPut, "/like/1", `{"action": "minus"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodGet, "/stats/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var st model.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, int64(0), st.LikesCount)
}

func TestStatsUnknownPageNotFound(t *testing.T) {
	h := newTestRouter()
	rr := do(t, h, http.MethodGet, "/stats/999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCounterUpdateUnknownPageNotFound(t *testing.T) {
	h := newTestRouter()
	rr := do(t, h, http.MethodPut, "/post/999", `{"action": "plus"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestValidation(t *testing.T) {
	h := newTestRouter()
	rr := do(t, h, http.MethodPost, "/page/7?action=new", "")
	require.Equal(t, http.StatusCreated, rr.Code)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad page id", http.MethodGet, "/stats/abc", "", http.StatusBadRequest},
		{"negative page id", http.MethodGet, "/stats/-2", "", http.StatusBadRequest},
		{"create without action", http.MethodPost, "/page/8", "", http.StatusBadRequest},
		{"create with wrong action", http.MethodPost, "/page/8?action=plus", "", http.StatusBadRequest},
		{"unknown counter field", http.MethodPut, "/banana/7", `{"action": "plus"}`, http.StatusNotFound},
		{"page is not a counter", http.MethodPut, "/page/7", `{"action": "plus"}`, http.StatusNotFound},
		{"bad action", http.MethodPut, "/post/7", `{"action": "reset"}`, http.StatusBadRequest},
		{"bad json", http.MethodPut, "/post/7", `{"action":`, http.StatusBadRequest},
		{"unknown body field", http.MethodPut, "/post/7", `{"action": "plus", "count": 5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestCounterUpdateRequiresJSON(t *testing.T) {
	h := newTestRouter()
	rr := do(t, h, http.MethodPost, "/page/2?action=new", "")
	require.Equal(t, http.StatusCreated, rr.Code)

	req := httptest.NewRequest(http.MethodPut, "/post/2", strings.NewReader(`{"action": "plus"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestHealthz(t *testing.T) {
	h := newTestRouter()
	rr := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
