package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account é o saldo liquidado de um dono. Risco não é armazenado: é derivado das apostas abertas.
type Account struct {
	OwnerID   string          `json:"ownerId"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// EntryKind classifica os lançamentos do ledger
type EntryKind string

const (
	EntryDeposit EntryKind = "deposit"
	EntryPayout  EntryKind = "payout"
)

// LedgerEntry é um crédito aplicado ao saldo. Ref é única: o mesmo crédito nunca entra duas vezes.
type LedgerEntry struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Kind      EntryKind       `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Ref       string          `json:"ref"`
	WagerID   string          `json:"wagerId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// PayoutRef é a referência idempotente do crédito de uma aposta vencedora
func PayoutRef(wagerID string) string { return "payout:" + wagerID }

// DepositRef é a referência idempotente de um depósito externo
func DepositRef(externalRef string) string { return "deposit:" + externalRef }
