package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
	"github.com/radieske/wager-ledger/internal/wager-service/dto"
	"github.com/radieske/wager-ledger/internal/wager-service/placement"
)

const (
	HeaderOwner          = "X-Owner-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultLimit = 50
	maxLimit     = 200
)

// WagerReader é a leitura de apostas usada pelos GETs
type WagerReader interface {
	GetWager(ctx context.Context, id string) (*domain.Wager, error)
	ListByOwner(ctx context.Context, ownerID string, status domain.Status, limit, offset int) ([]*domain.Wager, error)
}

// API expõe colocação, consulta de apostas e conta do dono
type API struct {
	Log       *zap.Logger
	Placement *placement.Service
	Ledger    *ledger.Manager
	Wagers    WagerReader
	Metrics   *metrics.Placement
}

type ownerKey struct{}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(requireOwner)
		r.Post("/v1/wagers", a.placeWager)
		r.Get("/v1/wagers", a.listWagers)
		r.Get("/v1/wagers/{id}", a.getWager)
		r.Get("/v1/accounts/me", a.getAccount)
		r.Post("/v1/accounts/me/deposits", a.deposit)
	})
	return r
}

// requireOwner lê o dono do header preenchido pelo gateway autenticado
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(HeaderOwner)
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "missing " + HeaderOwner})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func owner(r *http.Request) string {
	s, _ := r.Context().Value(ownerKey{}).(string)
	return s
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError traduz a taxonomia de erros para status HTTP
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "validation failed", Fields: verr.Fields})
		return
	}
	var ins *domain.InsufficientFundsError
	if errors.As(err, &ins) {
		writeJSON(w, http.StatusConflict, dto.InsufficientFundsResponse{
			Error:     "insufficient funds",
			Balance:   ins.Balance,
			Risk:      ins.Risk,
			Available: ins.Available,
			Required:  ins.Required,
		})
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "not found"})
		return
	}
	a.Log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("requestId", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
}

func (a *API) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json: " + err.Error()})
		return
	}
	if key := r.Header.Get(HeaderIdempotencyKey); key != "" {
		req.IdempotencyKey = key
	}

	res, err := a.Placement.Place(r.Context(), owner(r), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !res.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, dto.PlaceWagerResponse{Wager: res.Wager, Created: res.Created, Account: res.Account})
}

// getWager só devolve apostas do próprio dono; as demais respondem 404
func (a *API) getWager(w http.ResponseWriter, r *http.Request) {
	wg, err := a.Wagers.GetWager(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if wg.OwnerID != owner(r) {
		a.writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wg)
}

func (a *API) listWagers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verr := &domain.ValidationError{}

	status := domain.Status(q.Get("status"))
	switch status {
	case "", domain.StatusPending, domain.StatusPartiallySettled, domain.StatusWon, domain.StatusLost, domain.StatusPush:
	default:
		verr.Add("status", "unknown status %q", status)
	}
	limit := intParam(q.Get("limit"), defaultLimit, "limit", verr)
	offset := intParam(q.Get("offset"), 0, "offset", verr)
	if limit < 1 || limit > maxLimit {
		verr.Add("limit", "must be between 1 and %d", maxLimit)
	}
	if offset < 0 {
		verr.Add("offset", "must not be negative")
	}
	if err := verr.Err(); err != nil {
		a.writeError(w, r, err)
		return
	}

	ws, err := a.Wagers.ListByOwner(r.Context(), owner(r), status, limit, offset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if ws == nil {
		ws = []*domain.Wager{}
	}
	writeJSON(w, http.StatusOK, dto.ListWagersResponse{Wagers: ws, Limit: limit, Offset: offset})
}

func intParam(raw string, def int, field string, verr *domain.ValidationError) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(field, "must be an integer")
		return def
	}
	return n
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	view, err := a.Ledger.Account(r.Context(), owner(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// deposit responde 201 quando credita e 200 quando o externalRef já tinha sido aplicado
func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json: " + err.Error()})
		return
	}
	if verr := req.Validate(); verr.Err() != nil {
		a.writeError(w, r, verr)
		return
	}
	view, applied, err := a.Ledger.Deposit(r.Context(), owner(r), req.Amount, req.ExternalRef)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if applied {
		status = http.StatusCreated
		a.Metrics.Deposited()
	}
	writeJSON(w, status, dto.DepositResponse{Account: view, Applied: applied})
}
