// Package normalize valida e canoniza pernas cruas em variantes tipadas de domain.Pick.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/wager/odds"
)

// Numeric aceita número JSON ou string numérica ("-3.5", "+150").
// A conversão fica para o normalizador, que reporta o erro junto com os demais.
type Numeric struct {
	raw string
	set bool
}

// N constrói um Numeric a partir do texto (útil em testes e clientes Go)
func N(s string) Numeric { return Numeric{raw: s, set: true} }

func (n *Numeric) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = Numeric{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*n = Numeric{raw: strings.TrimSpace(str), set: true}
		return nil
	}
	*n = Numeric{raw: s, set: true}
	return nil
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return json.Marshal(n.raw)
}

// Set informa se o campo veio no payload
func (n Numeric) Set() bool { return n.set && n.raw != "" }

func (n Numeric) decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimPrefix(n.raw, "+"))
}

func (n Numeric) integer() (int, error) {
	raw := strings.TrimPrefix(n.raw, "+")
	if i, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return int(i), nil
	}
	// "150.0" é aceito, "150.5" e "1e30" não
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("not an integer")
	}
	i := d.IntPart()
	if !d.Equal(decimal.NewFromInt(i)) || i > math.MaxInt32 || i < math.MinInt32 {
		return 0, fmt.Errorf("out of range")
	}
	return int(i), nil
}

// RawLeg é a perna como chega do cliente
type RawLeg struct {
	GameRef    string  `json:"gameRef"`
	MarketType string  `json:"marketType"`
	Selection  string  `json:"selection"`
	Line       Numeric `json:"line"`
	Odds       Numeric `json:"odds"`
	// Subject: jogador (player_prop) ou segmento do jogo (game_prop)
	Subject string `json:"subject,omitempty"`
	Stat    string `json:"stat,omitempty"`
}

var (
	half            = decimal.RequireFromString("0.5")
	minAmericanOdds = 100
	maxAmericanOdds = odds.MaxAbs
	sidesByMarket   = map[domain.MarketType][]domain.Side{
		domain.MarketMoneyline:  {domain.SideHome, domain.SideAway},
		domain.MarketSpread:     {domain.SideHome, domain.SideAway},
		domain.MarketTotal:      {domain.SideOver, domain.SideUnder},
		domain.MarketPlayerProp: {domain.SideOver, domain.SideUnder},
		domain.MarketGameProp:   {domain.SideOver, domain.SideUnder},
	}
)

// Normalize valida uma perna. Todas as violações voltam juntas num *domain.ValidationError.
func Normalize(raw RawLeg) (domain.Leg, error) {
	verr := &domain.ValidationError{}

	gameRef := strings.TrimSpace(raw.GameRef)
	if gameRef == "" {
		verr.Add("gameRef", "is required")
	}

	market := domain.MarketType(strings.ToLower(strings.TrimSpace(raw.MarketType)))
	if market == "" {
		verr.Add("marketType", "is required")
	} else if !market.Valid() {
		verr.Add("marketType", "unknown market type %q", raw.MarketType)
	}

	odds := 0
	if !raw.Odds.Set() {
		verr.Add("odds", "is required")
	} else if o, err := raw.Odds.integer(); err != nil {
		verr.Add("odds", "must be an integer in American format, got %q", raw.Odds.raw)
	} else if o == 0 {
		verr.Add("odds", "must be nonzero")
	} else if o > -minAmericanOdds && o < minAmericanOdds {
		verr.Add("odds", "American odds must be <= -100 or >= +100, got %d", o)
	} else if o > maxAmericanOdds || o < -maxAmericanOdds {
		verr.Add("odds", "American odds must be within ±%d, got %d", maxAmericanOdds, o)
	} else {
		odds = o
	}

	// sem mercado válido não dá para validar seleção/linha
	if !market.Valid() {
		return domain.Leg{}, verr
	}

	side := domain.Side(strings.ToLower(strings.TrimSpace(raw.Selection)))
	if side == "" {
		verr.Add("selection", "is required")
	} else if !allowedSide(market, side) {
		verr.Add("selection", "must be one of %s for %s", joinSides(sidesByMarket[market]), market)
	}

	var line decimal.Decimal
	if market == domain.MarketMoneyline {
		if raw.Line.Set() {
			verr.Add("line", "must be absent for moneyline")
		}
	} else if !raw.Line.Set() {
		verr.Add("line", "is required for %s", market)
	} else if l, err := raw.Line.decimal(); err != nil {
		verr.Add("line", "must be numeric, got %q", raw.Line.raw)
	} else {
		line = l
		validateLine(verr, market, l)
	}

	switch market {
	case domain.MarketPlayerProp:
		if raw.Subject == "" {
			verr.Add("subject", "player identifier is required for player_prop")
		}
		if raw.Stat == "" {
			verr.Add("stat", "statistic key is required for player_prop")
		}
	case domain.MarketGameProp:
		if raw.Stat == "" {
			verr.Add("stat", "statistic key is required for game_prop")
		}
	default:
		if raw.Subject != "" || raw.Stat != "" {
			verr.Add("subject", "only prop markets carry subject/stat")
		}
	}

	if err := verr.Err(); err != nil {
		return domain.Leg{}, err
	}

	leg := domain.Leg{GameRef: gameRef, Odds: odds}
	switch market {
	case domain.MarketMoneyline:
		leg.Pick = domain.Moneyline{Side: side}
	case domain.MarketSpread:
		leg.Pick = domain.Spread{Side: side, Line: line}
	case domain.MarketTotal:
		leg.Pick = domain.Total{Side: side, Line: line}
	case domain.MarketPlayerProp:
		leg.Pick = domain.PlayerProp{PlayerID: raw.Subject, Stat: raw.Stat, Side: side, Line: line}
	case domain.MarketGameProp:
		segment := raw.Subject
		if segment == "" {
			segment = "game"
		}
		leg.Pick = domain.GameProp{Segment: segment, Stat: raw.Stat, Side: side, Line: line}
	}
	return leg, nil
}

// NormalizeAll valida todas as pernas e devolve um único ValidationError com caminhos legs[i].campo
func NormalizeAll(raws []RawLeg) ([]domain.Leg, error) {
	verr := &domain.ValidationError{}
	if len(raws) == 0 {
		verr.Add("legs", "at least one leg is required")
		return nil, verr
	}
	legs := make([]domain.Leg, 0, len(raws))
	for i, raw := range raws {
		leg, err := Normalize(raw)
		if err != nil {
			if ve, ok := err.(*domain.ValidationError); ok {
				verr.Merge(fmt.Sprintf("legs[%d]", i), ve)
				continue
			}
			return nil, err
		}
		legs = append(legs, leg)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return legs, nil
}

func validateLine(verr *domain.ValidationError, market domain.MarketType, l decimal.Decimal) {
	switch market {
	case domain.MarketSpread:
		if !l.Mod(half).IsZero() {
			verr.Add("line", "spread line must be a multiple of 0.5, got %s", l)
		}
	case domain.MarketTotal:
		if !l.IsPositive() {
			verr.Add("line", "total line must be positive, got %s", l)
		} else if !l.Mod(half).IsZero() {
			verr.Add("line", "total line must be a multiple of 0.5, got %s", l)
		}
	case domain.MarketPlayerProp, domain.MarketGameProp:
		if l.IsNegative() {
			verr.Add("line", "prop line must not be negative, got %s", l)
		}
	}
}

func allowedSide(m domain.MarketType, s domain.Side) bool {
	for _, v := range sidesByMarket[m] {
		if v == s {
			return true
		}
	}
	return false
}

func joinSides(sides []domain.Side) string {
	parts := make([]string, len(sides))
	for i, s := range sides {
		parts[i] = string(s)
	}
	return strings.Join(parts, "|")
}
