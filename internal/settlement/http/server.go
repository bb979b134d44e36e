package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/settlement/scheduler"
)

// Operations é o que os endpoints operacionais chamam
type Operations interface {
	Trigger(ctx context.Context) (scheduler.RunReport, error)
	Health(ctx context.Context) (scheduler.Health, error)
}

// API expõe o disparo manual e a saúde da liquidação
type API struct {
	Log *zap.Logger
	Ops Operations
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/settlement/trigger", a.trigger)
	r.Get("/v1/settlement/health", a.health)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) trigger(w http.ResponseWriter, r *http.Request) {
	rep, err := a.Ops.Trigger(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "settlement run already in progress"})
			return
		}
		a.Log.Error("manual settlement failed", zap.Error(err))
		var serr *domain.SettlementError
		if errors.As(err, &serr) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// health responde 503 quando unhealthy, para o probe do orquestrador
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	h, err := a.Ops.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if h.Status == scheduler.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}
