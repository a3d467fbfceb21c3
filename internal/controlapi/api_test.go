package controlapi_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/catalog"
	"github.com/rafaeljc/accolade/internal/condition"
	"github.com/rafaeljc/accolade/internal/controlapi"
	"github.com/rafaeljc/accolade/internal/engine"
	"github.com/rafaeljc/accolade/internal/store"
	"github.com/rafaeljc/accolade/internal/testsupport"
	"github.com/rafaeljc/accolade/internal/trigger"
)

const testAPIKey = "s3cret-key"

// staticProvider serves one snapshot per known user.
type staticProvider map[string]*condition.UserContextData

func (p staticProvider) Snapshot(_ context.Context, userID string) (*condition.UserContextData, error) {
	d, ok := p[userID]
	if !ok {
		return nil, badge.ErrNotFound
	}
	return d, nil
}

func (p staticProvider) UserExists(_ context.Context, userID string) (bool, error) {
	_, ok := p[userID]
	return ok, nil
}

// queueDispatcher accepts events without evaluating them.
type queueDispatcher struct{ got []badge.Event }

func (q *queueDispatcher) Dispatch(_ context.Context, ev badge.Event) ([]badge.AwardResult, error) {
	q.got = append(q.got, ev)
	return nil, nil
}

func newCatalog() *catalog.Static {
	retired := &badge.Definition{ID: "retired", Title: "Retired", Category: badge.CategorySpecial, Rarity: badge.RarityRare,
		Condition: condition.AtLeast("postsPublished", 0)}
	return catalog.NewStatic(nil,
		&badge.Definition{ID: "first-post", Title: "First Post", Category: badge.CategoryAchievement, Rarity: badge.RarityCommon,
			Active: true, Triggers: []badge.EventType{badge.EventContentPublished}, Condition: condition.AtLeast("postsPublished", 1)},
		&badge.Definition{ID: "prolific", Title: "Prolific", Category: badge.CategoryAchievement, Rarity: badge.RarityEpic,
			Active: true, Triggers: []badge.EventType{badge.EventContentPublished}, Condition: condition.AtLeast("postsPublished", 50)},
		retired,
	)
}

func newProvider() staticProvider {
	d := condition.NewUserContextData("u1")
	d.Metrics["postsPublished"] = condition.Int(3)
	return staticProvider{"u1": d}
}

type env struct {
	api    *controlapi.API
	awards *store.MemoryStore
}

func setup(t *testing.T, authenticated bool, dispatcher trigger.Dispatcher) env {
	t.Helper()

	cat := newCatalog()
	awards := store.NewMemoryStore()
	eng := engine.New(nil, engine.Config{OperationTimeout: time.Second}, cat, awards, newProvider())
	if dispatcher == nil {
		dispatcher = trigger.Direct(eng)
	}
	deps := controlapi.Deps{Engine: eng, Badges: cat, Dispatcher: dispatcher}

	if authenticated {
		sum := sha256.Sum256([]byte(testAPIKey))
		return env{api: controlapi.NewAPI(deps, hex.EncodeToString(sum[:])), awards: awards}
	}
	return env{api: controlapi.NewAPIWithConfig(deps, "", true), awards: awards}
}

func do(t *testing.T, api *controlapi.API, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	api.Router.ServeHTTP(rr, req)
	return rr
}

func TestNewAPI_Panics(t *testing.T) {
	t.Parallel()

	cat := newCatalog()
	eng := engine.New(nil, engine.Config{}, cat, store.NewMemoryStore(), newProvider())

	assert.Panics(t, func() { controlapi.NewAPI(controlapi.Deps{Engine: eng, Badges: cat, Dispatcher: trigger.Direct(eng)}, "") })
	assert.Panics(t, func() { controlapi.NewAPIWithConfig(controlapi.Deps{Badges: cat, Dispatcher: trigger.Direct(eng)}, "", true) })
}

func TestAuthentication(t *testing.T) {
	t.Parallel()

	e := setup(t, true, nil)

	tests := []struct {
		name     string
		headers  []string
		wantCode int
	}{
		{name: "missing key", wantCode: http.StatusUnauthorized},
		{name: "wrong key", headers: []string{"X-API-Key", "nope"}, wantCode: http.StatusUnauthorized},
		{name: "valid key header", headers: []string{"X-API-Key", testAPIKey}, wantCode: http.StatusOK},
		{name: "valid bearer token", headers: []string{"Authorization", "Bearer " + testAPIKey}, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := do(t, e.api, http.MethodGet, "/api/v1/badges", nil, tt.headers...)
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}

	t.Run("health is public", func(t *testing.T) {
		t.Parallel()
		rr := do(t, e.api, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestListBadges(t *testing.T) {
	t.Parallel()

	e := setup(t, false, nil)

	t.Run("Should list every badge with conditions", func(t *testing.T) {
		t.Parallel()
		rr := do(t, e.api, http.MethodGet, "/api/v1/badges", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Data       []controlapi.Badge     `json:"data"`
			Pagination controlapi.Pagination `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 3)
		assert.Equal(t, int64(3), resp.Pagination.TotalItems)
		assert.JSONEq(t, `{"type":"METRIC_THRESHOLD","metric":"postsPublished","op":">=","value":1}`, string(resp.Data[0].Condition))
	})

	t.Run("Should paginate and filter active badges", func(t *testing.T) {
		t.Parallel()
		rr := do(t, e.api, http.MethodGet, "/api/v1/badges?active=true&page=2&page_size=1", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Data       []controlapi.Badge     `json:"data"`
			Pagination controlapi.Pagination `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "prolific", resp.Data[0].ID)
		assert.Equal(t, 2, resp.Pagination.TotalPages)
	})

	t.Run("Should reject a malformed page", func(t *testing.T) {
		t.Parallel()
		rr := do(t, e.api, http.MethodGet, "/api/v1/badges?page=banana", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestIngestEvent(t *testing.T) {
	t.Parallel()

	t.Run("Should evaluate synchronously and return results", func(t *testing.T) {
		t.Parallel()
		e := setup(t, false, nil)

		rr := do(t, e.api, http.MethodPost, "/api/v1/events", map[string]any{
			"event_type": "content_published",
			"user_id":    "u1",
		})

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var resp controlapi.EvaluationResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, badge.EventContentPublished, resp.EventType)
		got := map[string]badge.AwardResult{}
		for _, r := range resp.Results {
			got[r.BadgeID] = r
		}
		assert.True(t, got["first-post"].Awarded)
		assert.False(t, got["prolific"].Awarded)
	})

	t.Run("Should accept asynchronously queued events", func(t *testing.T) {
		t.Parallel()
		q := &queueDispatcher{}
		e := setup(t, false, q)
		occurred := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		rr := do(t, e.api, http.MethodPost, "/api/v1/events", map[string]any{
			"event_type":  "REVIEW_SUBMITTED",
			"user_id":     "u1",
			"occurred_at": occurred,
			"payload":     map[string]any{"review_id": "r-1"},
		})

		require.Equal(t, http.StatusAccepted, rr.Code)
		require.Len(t, q.got, 1)
		assert.Equal(t, occurred, q.got[0].OccurredAt)
		assert.Equal(t, "r-1", q.got[0].Payload["review_id"])
	})

	t.Run("Should normalise occurred_at and default it to now", func(t *testing.T) {
		t.Parallel()
		q := &queueDispatcher{}
		e := setup(t, false, q)
		local := time.Date(2026, 1, 2, 5, 4, 5, 0, time.FixedZone("CEST", 2*60*60))

		before := time.Now().UTC()
		rr := do(t, e.api, http.MethodPost, "/api/v1/events", map[string]any{"event_type": "PLACE_CLAIMED", "user_id": "u1", "occurred_at": local})
		require.Equal(t, http.StatusAccepted, rr.Code)
		rr = do(t, e.api, http.MethodPost, "/api/v1/events", map[string]any{"event_type": "PLACE_CLAIMED", "user_id": "u1"})
		require.Equal(t, http.StatusAccepted, rr.Code)

		require.Len(t, q.got, 2)
		assert.True(t, q.got[0].OccurredAt.Equal(local))
		assert.Equal(t, time.UTC, q.got[0].OccurredAt.Location())
		assert.False(t, q.got[1].OccurredAt.Before(before))
	})

	t.Run("Should reject unknown event types", func(t *testing.T) {
		t.Parallel()
		e := setup(t, false, nil)

		rr := do(t, e.api, http.MethodPost, "/api/v1/events", map[string]any{"event_type": "LOGGED_IN", "user_id": "u1"})

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var resp controlapi.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "event_type", resp.Details[0].Field)
	})

	t.Run("Should return 404 for an unknown user", func(t *testing.T) {
		t.Parallel()
		e := setup(t, false, nil)

		rr := do(t, e.api, http.MethodPost, "/api/v1/events", map[string]any{"event_type": "CONTENT_PUBLISHED", "user_id": "ghost"})

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestEvaluateAndReconcile(t *testing.T) {
	t.Parallel()

	e := setup(t, false, nil)

	rr := do(t, e.api, http.MethodPost, "/api/v1/users/u1/evaluate", map[string]any{"event_type": "PLACE_CLAIMED"})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp controlapi.EvaluationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)

	rr = do(t, e.api, http.MethodPost, "/api/v1/users/u1/reconcile", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, badge.EventFullReconciliation, resp.EventType)
	assert.Len(t, resp.Results, 2, "only active badges are swept")

	rr = do(t, e.api, http.MethodPost, "/api/v1/users/u1/evaluate", map[string]any{"event_type": "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestManualAwardLifecycle(t *testing.T) {
	t.Parallel()

	e := setup(t, false, nil)

	rr := do(t, e.api, http.MethodPost, "/api/v1/users/u1/badges/prolific", controlapi.ManualAwardRequest{Reason: "hall of fame"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, e.api, http.MethodPost, "/api/v1/users/u1/badges/prolific", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res badge.AwardResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.AlreadyHad)

	rr = do(t, e.api, http.MethodDelete, "/api/v1/users/u1/badges/prolific", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, e.api, http.MethodDelete, "/api/v1/users/u1/badges/prolific", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, e.api, http.MethodPost, "/api/v1/users/u1/badges/prolific", nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, e.api, http.MethodGet, "/api/v1/users/u1/badges", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Awards []badge.Award `json:"awards"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Awards, 2)

	rr = do(t, e.api, http.MethodGet, "/api/v1/users/u1/badges?active=true", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Awards, 1)
}

func TestManualAward_NotFound(t *testing.T) {
	t.Parallel()

	e := setup(t, false, nil)

	tests := []struct {
		name string
		path string
	}{
		{name: "unknown badge", path: "/api/v1/users/u1/badges/nope"},
		{name: "inactive badge", path: "/api/v1/users/u1/badges/retired"},
		{name: "unknown user", path: "/api/v1/users/ghost/badges/prolific"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := do(t, e.api, http.MethodPost, tt.path, nil)
			assert.Equal(t, http.StatusNotFound, rr.Code)
		})
	}
}

func TestMetrics(t *testing.T) {
	// Metrics are global; no t.Parallel.
	e := setup(t, false, nil)

	t.Run("records the route pattern, not the raw path", func(t *testing.T) {
		labels := map[string]string{
			"method": "DELETE",
			"route":  "/api/v1/users/{userID}/badges/{badgeID}",
			"code":   "404",
		}
		testsupport.AssertMetricDelta(t, "accolade_control_plane_http_requests_total", labels, 1, func() {
			rr := do(t, e.api, http.MethodDelete, "/api/v1/users/user-123/badges/missing", nil)
			require.Equal(t, http.StatusNotFound, rr.Code)
		})
		testsupport.AssertHistogramRecorded(t, "accolade_control_plane_http_handling_seconds",
			map[string]string{"method": "DELETE", "route": "/api/v1/users/{userID}/badges/{badgeID}"})
	})

	t.Run("records health checks", func(t *testing.T) {
		labels := map[string]string{"method": "GET", "route": "/health", "code": "200"}
		testsupport.AssertMetricDelta(t, "accolade_control_plane_http_requests_total", labels, 1, func() {
			rr := do(t, e.api, http.MethodGet, "/health", nil)
			require.Equal(t, http.StatusOK, rr.Code)
		})
	})
}

func TestRequestBodyLimit(t *testing.T) {
	t.Parallel()

	cat := newCatalog()
	eng := engine.New(nil, engine.Config{OperationTimeout: time.Second}, cat, store.NewMemoryStore(), newProvider())
	api := controlapi.NewAPIWithConfig(controlapi.Deps{
		Engine:       eng,
		Badges:       cat,
		Dispatcher:   trigger.Direct(eng),
		MaxBodyBytes: 128,
	}, "", true)

	small := map[string]any{"event_type": "CONTENT_PUBLISHED", "user_id": "u1"}
	rr := do(t, api, http.MethodPost, "/api/v1/events", small)
	assert.Equal(t, http.StatusOK, rr.Code)

	large := map[string]any{
		"event_type": "CONTENT_PUBLISHED",
		"user_id":    "u1",
		"payload":    map[string]any{"body": strings.Repeat("x", 512)},
	}
	rr = do(t, api, http.MethodPost, "/api/v1/events", large)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	var body controlapi.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ERR_PAYLOAD_TOO_LARGE", body.Code)
}
