package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/settlement/scheduler"
)

type fakeOps struct {
	report scheduler.RunReport
	health scheduler.Health
	err    error
}

func (f *fakeOps) Trigger(context.Context) (scheduler.RunReport, error) { return f.report, f.err }
func (f *fakeOps) Health(context.Context) (scheduler.Health, error)     { return f.health, f.err }

func do(t *testing.T, ops Operations, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	api := &API{Log: zap.NewNop(), Ops: ops}
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestTrigger(t *testing.T) {
	rec := do(t, &fakeOps{report: scheduler.RunReport{GamesSynced: 3, GamesUpdated: 2, WagersSettled: 5}}, http.MethodPost, "/v1/settlement/trigger")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body["gamesSynced"])
	assert.Equal(t, 2, body["gamesUpdated"])
	assert.Equal(t, 5, body["wagersSettled"])
	assert.Equal(t, 0, body["gamesFailed"])
}

func TestTriggerErrors(t *testing.T) {
	rec := do(t, &fakeOps{err: domain.ErrLockHeld}, http.MethodPost, "/v1/settlement/trigger")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, &fakeOps{err: &domain.SettlementError{GameRef: "*", Err: errors.New("feed down")}}, http.MethodPost, "/v1/settlement/trigger")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, &fakeOps{}, http.MethodGet, "/v1/settlement/trigger")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	ok := scheduler.Health{Status: scheduler.StatusHealthy, Score: 100, Queue: scheduler.QueueDepth{Waiting: 2}}
	rec := do(t, &fakeOps{health: ok}, http.MethodGet, "/v1/settlement/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Score  int    `json:"score"`
		Queue  struct {
			Waiting int `json:"waiting"`
		} `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 100, body.Score)
	assert.Equal(t, 2, body.Queue.Waiting)

	rec = do(t, &fakeOps{health: scheduler.Health{Status: scheduler.StatusUnhealthy, Score: 20}}, http.MethodGet, "/v1/settlement/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
