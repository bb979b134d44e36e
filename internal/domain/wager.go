package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind é o tipo estrutural da aposta
type Kind string

const (
	KindSingle     Kind = "single"
	KindParlay     Kind = "parlay"
	KindTeaser     Kind = "teaser"
	KindRoundRobin Kind = "round_robin"
	KindIfBet      Kind = "if_bet"
	KindReverse    Kind = "reverse"
	KindBetItAll   Kind = "bet_it_all"
)

// Kinds lista todos os tipos aceitos, na ordem usada em mensagens de validação
var Kinds = []Kind{KindSingle, KindParlay, KindTeaser, KindRoundRobin, KindIfBet, KindReverse, KindBetItAll}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Sequential informa se a aposta é graduada em cadeia (pode ficar partially_settled)
func (k Kind) Sequential() bool {
	return k == KindIfBet || k == KindReverse || k == KindBetItAll
}

// Status do ciclo de vida da aposta
type Status string

const (
	StatusPending          Status = "pending"
	StatusPartiallySettled Status = "partially_settled"
	StatusWon              Status = "won"
	StatusLost             Status = "lost"
	StatusPush             Status = "push"
)

// Terminal informa se o status não aceita mais transições
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusPush
}

// Open informa se a aposta ainda conta como risco do dono
func (s Status) Open() bool {
	return s == StatusPending || s == StatusPartiallySettled
}

// CanTransition valida que o status só anda para frente
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusPartiallySettled || to.Terminal() || to == StatusPending
	case StatusPartiallySettled:
		return to == StatusPartiallySettled || to.Terminal()
	}
	return false
}

// PushRule define o que um push faz dentro de uma cadeia (if_bet, reverse, bet_it_all)
type PushRule string

const (
	// PushContinue trata o push como multiplicador 1 e ativa a próxima perna
	PushContinue PushRule = "continue"
	// PushHalt encerra a cadeia no push; a aposta liquida com o que acumulou
	PushHalt PushRule = "halt"
)

func (r PushRule) Valid() bool { return r == PushContinue || r == PushHalt }

// Plan guarda as estruturas combinatórias calculadas na colocação.
// A liquidação só lê o plano, nunca o recalcula.
type Plan struct {
	// StakeUnit é o stake por parlay (round robin), por sequência (reverse) ou por perna ativada (if_bet)
	StakeUnit decimal.Decimal `json:"stakeUnit"`
	// Combos: round robin (índices de pernas por sub-parlay) ou reverse (sequências ordenadas)
	Combos [][]int `json:"combos,omitempty"`
	Sizes  []int   `json:"sizes,omitempty"`
	// Chain é a ordem de ativação em if_bet e bet_it_all
	Chain []int `json:"chain,omitempty"`
	// Schedule é o pagamento progressivo do bet_it_all: Schedule[0] = stake
	Schedule     []decimal.Decimal `json:"schedule,omitempty"`
	TeaserPoints *decimal.Decimal  `json:"teaserPoints,omitempty"`
	TeaserOdds   int               `json:"teaserOdds,omitempty"`
	PushRule     PushRule          `json:"pushRule,omitempty"`
}

// Wager é a raiz do agregado de uma aposta colocada
type Wager struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"ownerId"`
	Kind            Kind            `json:"kind"`
	Stake           decimal.Decimal `json:"stake"`
	PotentialPayout decimal.Decimal `json:"potentialPayout"`
	Payout          decimal.Decimal `json:"payout"`
	Legs            []Leg           `json:"legs"`
	Plan            Plan            `json:"plan"`
	Results         []LegResult     `json:"results"`
	Status          Status          `json:"status"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty"`
	PlacedAt        time.Time       `json:"placedAt"`
	SettledAt       *time.Time      `json:"settledAt,omitempty"`
}

// GameRefs retorna os jogos referenciados pela aposta, sem repetição, na ordem das pernas
func (w *Wager) GameRefs() []string {
	seen := make(map[string]struct{}, len(w.Legs))
	out := make([]string, 0, len(w.Legs))
	for _, l := range w.Legs {
		if _, ok := seen[l.GameRef]; ok {
			continue
		}
		seen[l.GameRef] = struct{}{}
		out = append(out, l.GameRef)
	}
	return out
}

// Clone devolve uma cópia sem aliasing de slices
func (w *Wager) Clone() *Wager {
	c := *w
	c.Legs = append([]Leg(nil), w.Legs...)
	c.Results = append([]LegResult(nil), w.Results...)
	c.Plan.Sizes = append([]int(nil), w.Plan.Sizes...)
	c.Plan.Chain = append([]int(nil), w.Plan.Chain...)
	c.Plan.Schedule = append([]decimal.Decimal(nil), w.Plan.Schedule...)
	if w.Plan.Combos != nil {
		c.Plan.Combos = make([][]int, len(w.Plan.Combos))
		for i, combo := range w.Plan.Combos {
			c.Plan.Combos[i] = append([]int(nil), combo...)
		}
	}
	if w.SettledAt != nil {
		t := *w.SettledAt
		c.SettledAt = &t
	}
	return &c
}

// PendingResults cria o vetor inicial de resultados (todas as pernas não examinadas)
func PendingResults(n int) []LegResult {
	out := make([]LegResult, n)
	for i := range out {
		out[i] = LegPending
	}
	return out
}
