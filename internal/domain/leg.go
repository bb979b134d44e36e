package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// MarketType identifica o mercado de uma perna (tag do union Pick)
type MarketType string

const (
	MarketMoneyline  MarketType = "moneyline"
	MarketSpread     MarketType = "spread"
	MarketTotal      MarketType = "total"
	MarketPlayerProp MarketType = "player_prop"
	MarketGameProp   MarketType = "game_prop"
)

// Valid informa se o mercado é conhecido
func (m MarketType) Valid() bool {
	switch m {
	case MarketMoneyline, MarketSpread, MarketTotal, MarketPlayerProp, MarketGameProp:
		return true
	}
	return false
}

// Side é a seleção dentro do mercado
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// Pick é o union tipado de seleções. Cada variante carrega só os campos do seu mercado.
type Pick interface {
	Market() MarketType
}

type Moneyline struct {
	Side Side `json:"side"`
}

type Spread struct {
	Side Side            `json:"side"`
	Line decimal.Decimal `json:"line"`
}

type Total struct {
	Side Side            `json:"side"`
	Line decimal.Decimal `json:"line"`
}

type PlayerProp struct {
	PlayerID string          `json:"playerId"`
	Stat     string          `json:"stat"`
	Side     Side            `json:"side"`
	Line     decimal.Decimal `json:"line"`
}

// GameProp usa Segment vazio ou "game" para o jogo inteiro, ou o id do período ("q1", "h2", ...)
type GameProp struct {
	Segment string          `json:"segment"`
	Stat    string          `json:"stat"`
	Side    Side            `json:"side"`
	Line    decimal.Decimal `json:"line"`
}

func (Moneyline) Market() MarketType  { return MarketMoneyline }
func (Spread) Market() MarketType     { return MarketSpread }
func (Total) Market() MarketType      { return MarketTotal }
func (PlayerProp) Market() MarketType { return MarketPlayerProp }
func (GameProp) Market() MarketType   { return MarketGameProp }

// Leg é uma seleção de mercado dentro de uma aposta
type Leg struct {
	GameRef string
	Odds    int
	Pick    Pick
}

// Market retorna o tipo de mercado da perna
func (l Leg) Market() MarketType {
	if l.Pick == nil {
		return ""
	}
	return l.Pick.Market()
}

// Line retorna a linha da perna, se houver
func (l Leg) Line() (decimal.Decimal, bool) {
	switch p := l.Pick.(type) {
	case Spread:
		return p.Line, true
	case Total:
		return p.Line, true
	case PlayerProp:
		return p.Line, true
	case GameProp:
		return p.Line, true
	}
	return decimal.Zero, false
}

// legEnvelope é o formato persistido: a tag "market" decide como ler "pick"
type legEnvelope struct {
	GameRef string          `json:"gameRef"`
	Odds    int             `json:"odds"`
	Market  MarketType      `json:"market"`
	Pick    json.RawMessage `json:"pick"`
}

func (l Leg) MarshalJSON() ([]byte, error) {
	if l.Pick == nil {
		return nil, fmt.Errorf("leg %s: missing pick", l.GameRef)
	}
	pick, err := json.Marshal(l.Pick)
	if err != nil {
		return nil, err
	}
	return json.Marshal(legEnvelope{
		GameRef: l.GameRef,
		Odds:    l.Odds,
		Market:  l.Pick.Market(),
		Pick:    pick,
	})
}

func (l *Leg) UnmarshalJSON(b []byte) error {
	var env legEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	var pick Pick
	var err error
	switch env.Market {
	case MarketMoneyline:
		var p Moneyline
		err = json.Unmarshal(env.Pick, &p)
		pick = p
	case MarketSpread:
		var p Spread
		err = json.Unmarshal(env.Pick, &p)
		pick = p
	case MarketTotal:
		var p Total
		err = json.Unmarshal(env.Pick, &p)
		pick = p
	case MarketPlayerProp:
		var p PlayerProp
		err = json.Unmarshal(env.Pick, &p)
		pick = p
	case MarketGameProp:
		var p GameProp
		err = json.Unmarshal(env.Pick, &p)
		pick = p
	default:
		return fmt.Errorf("%w: unknown market %q", ErrMalformedLeg, env.Market)
	}
	if err != nil {
		return fmt.Errorf("%w: %s pick: %v", ErrMalformedLeg, env.Market, err)
	}
	*l = Leg{GameRef: env.GameRef, Odds: env.Odds, Pick: pick}
	return nil
}

// LegResult é o resultado de uma perna. LegPending significa "não examinada".
type LegResult string

const (
	LegPending LegResult = "pending"
	LegWon     LegResult = "won"
	LegLost    LegResult = "lost"
	LegPush    LegResult = "push"
)

// Graded informa se a perna já tem resultado definitivo
func (r LegResult) Graded() bool {
	return r == LegWon || r == LegLost || r == LegPush
}
