package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
)

// PlaceWagerResponse devolve a aposta e o saldo disponível depois da admissão.
// Em replay idempotente Created=false e Account traz o estado atual.
type PlaceWagerResponse struct {
	Wager   *domain.Wager      `json:"wager"`
	Created bool               `json:"created"`
	Account ledger.AccountView `json:"account"`
}

type ListWagersResponse struct {
	Wagers []*domain.Wager `json:"wagers"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type DepositResponse struct {
	Account ledger.AccountView `json:"account"`
	Applied bool               `json:"applied"`
}

type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

type InsufficientFundsResponse struct {
	Error     string          `json:"error"`
	Balance   decimal.Decimal `json:"balance"`
	Risk      decimal.Decimal `json:"risk"`
	Available decimal.Decimal `json:"available"`
	Required  decimal.Decimal `json:"required"`
}
