// Package odds converte odds americanas em multiplicadores de pagamento.
package odds

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
)

// MaxAbs é o maior |odds| aceito (+100000 paga 1001x)
const MaxAbs = 100000

var hundred = decimal.NewFromInt(100)

// Multiplier converte odds americanas no fator aplicado ao stake para obter o retorno bruto
//
//	o > 0: 1 + o/100
//	o < 0: 1 + 100/|o|
func Multiplier(o int) (decimal.Decimal, error) {
	if o > MaxAbs || o < -MaxAbs {
		return decimal.Zero, fmt.Errorf("%w: |odds| must be <= %d, got %d", domain.ErrInvalidOdds, MaxAbs, o)
	}
	switch {
	case o > 0:
		return decimal.NewFromInt(int64(o)).Div(hundred).Add(decimal.NewFromInt(1)), nil
	case o < 0:
		return hundred.Div(decimal.NewFromInt(int64(-o))).Add(decimal.NewFromInt(1)), nil
	}
	return decimal.Zero, fmt.Errorf("%w: odds must be nonzero", domain.ErrInvalidOdds)
}

// ChainMultiplier é o produto dos multiplicadores (parlay)
func ChainMultiplier(odds ...int) (decimal.Decimal, error) {
	m := decimal.NewFromInt(1)
	for _, o := range odds {
		x, err := Multiplier(o)
		if err != nil {
			return decimal.Zero, err
		}
		m = m.Mul(x)
	}
	return m, nil
}

// Payout aplica o multiplicador encadeado ao stake e arredonda para centavos
func Payout(stake decimal.Decimal, odds ...int) (decimal.Decimal, error) {
	m, err := ChainMultiplier(odds...)
	if err != nil {
		return decimal.Zero, err
	}
	return Money(stake.Mul(m)), nil
}

// Money arredonda um valor monetário para centavos
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
