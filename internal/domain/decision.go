package domain

import "github.com/shopspring/decimal"

// Decision é o que a graduação decidiu sobre uma aposta num dado momento.
// Status pending significa "ainda não determinável"; partially_settled só ocorre em tipos sequenciais.
type Decision struct {
	Status  Status
	Results []LegResult
	// Payout é o retorno bruto creditado quando Status == won
	Payout decimal.Decimal
}

// Final informa se a decisão encerra a aposta
func (d Decision) Final() bool { return d.Status.Terminal() }
