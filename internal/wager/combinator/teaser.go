package combinator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
)

// TeaserTable: pontos ("6", "6.5", "7") -> quantidade de pernas -> odds americanas do teaser
type TeaserTable map[string]map[int]int

// DefaultTeaserTable é a tabela padrão de teasers de futebol/basquete
var DefaultTeaserTable = TeaserTable{
	"6":   {2: -110, 3: 180, 4: 300, 5: 450, 6: 600},
	"6.5": {2: -120, 3: 160, 4: 250, 5: 400, 6: 500},
	"7":   {2: -130, 3: 140, 4: 200, 5: 350, 6: 400},
}

const (
	minTeaserLegs = 2
	maxTeaserLegs = 6
)

// Odds devolve o preço do teaser para a quantidade de pernas
func (t TeaserTable) Odds(points decimal.Decimal, legs int) (int, bool) {
	byLegs, ok := t[points.String()]
	if !ok {
		return 0, false
	}
	o, ok := byLegs[legs]
	return o, ok
}

// Supports informa se a tabela conhece a pontuação
func (t TeaserTable) Supports(points decimal.Decimal) bool {
	_, ok := t[points.String()]
	return ok
}

// shiftLine move a linha a favor do apostador
func shiftLine(leg domain.Leg, points decimal.Decimal) (domain.Leg, error) {
	switch p := leg.Pick.(type) {
	case domain.Spread:
		p.Line = p.Line.Add(points)
		leg.Pick = p
	case domain.Total:
		if p.Side == domain.SideOver {
			p.Line = p.Line.Sub(points)
			if !p.Line.IsPositive() {
				return leg, fmt.Errorf("total line %s cannot be teased by %s points", p.Line.Add(points), points)
			}
		} else {
			p.Line = p.Line.Add(points)
		}
		leg.Pick = p
	default:
		return leg, fmt.Errorf("%s legs cannot be teased", leg.Market())
	}
	return leg, nil
}
