// Package combinator calcula, na colocação, as estruturas derivadas de cada tipo de aposta
// (sub-parlays, sequências reversas, cadeias) e o pagamento potencial.
package combinator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/wager/odds"
)

const (
	maxParlayLegs     = 12
	maxRoundRobinLegs = 10
	minReverseLegs    = 2
	maxReverseLegs    = 4
)

// Options carrega os parâmetros opcionais de cada tipo
type Options struct {
	RoundRobinSizes []int
	TeaserPoints    *decimal.Decimal
	PushRule        domain.PushRule
	// Teasers sobrescreve a tabela padrão (nil usa DefaultTeaserTable)
	Teasers TeaserTable
}

// Quote é o resultado do cálculo: o que vai ser persistido junto com a aposta
type Quote struct {
	Plan domain.Plan
	// Stake é o risco total (por parlay/sequência × quantidade)
	Stake           decimal.Decimal
	PotentialPayout decimal.Decimal
	// Legs pode ter linhas ajustadas (teaser)
	Legs []domain.Leg
}

// Build valida a estrutura da aposta e calcula o plano. stake é o valor por unidade:
// por parlay no round robin, por sequência na reversa, e o stake cheio nos demais.
func Build(kind domain.Kind, stake decimal.Decimal, legs []domain.Leg, opts Options) (Quote, error) {
	verr := &domain.ValidationError{}
	if !kind.Valid() {
		verr.Add("kind", "unknown wager kind %q", kind)
		return Quote{}, verr
	}
	if !stake.IsPositive() {
		verr.Add("stake", "must be positive")
	} else if !stake.Equal(stake.Round(2)) {
		verr.Add("stake", "must have at most 2 decimal places")
	}
	if len(legs) == 0 {
		verr.Add("legs", "at least one leg is required")
	}
	if err := verr.Err(); err != nil {
		return Quote{}, err
	}

	rule := opts.PushRule
	if rule == "" {
		rule = domain.PushContinue
	}
	if !rule.Valid() {
		return Quote{}, fmt.Errorf("unknown push rule %q", rule)
	}

	switch kind {
	case domain.KindSingle:
		return buildSingle(stake, legs)
	case domain.KindParlay:
		return buildParlay(stake, legs)
	case domain.KindTeaser:
		table := opts.Teasers
		if table == nil {
			table = DefaultTeaserTable
		}
		return buildTeaser(stake, legs, opts.TeaserPoints, table)
	case domain.KindRoundRobin:
		return buildRoundRobin(stake, legs, opts.RoundRobinSizes)
	case domain.KindIfBet:
		return buildIfBet(stake, legs, rule)
	case domain.KindReverse:
		return buildReverse(stake, legs, rule)
	default:
		return buildBetItAll(stake, legs, rule)
	}
}

func invalid(field, format string, args ...any) error {
	verr := &domain.ValidationError{}
	verr.Add(field, format, args...)
	return verr
}

func legOdds(legs []domain.Leg, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = legs[j].Odds
	}
	return out
}

func allIndexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func distinctGames(legs []domain.Leg) error {
	seen := make(map[string]int, len(legs))
	for i, l := range legs {
		if j, ok := seen[l.GameRef]; ok {
			return invalid(fmt.Sprintf("legs[%d].gameRef", i), "game %s already used by legs[%d]", l.GameRef, j)
		}
		seen[l.GameRef] = i
	}
	return nil
}

func buildSingle(stake decimal.Decimal, legs []domain.Leg) (Quote, error) {
	if len(legs) != 1 {
		return Quote{}, invalid("legs", "single takes exactly 1 leg, got %d", len(legs))
	}
	payout, err := odds.Payout(stake, legs[0].Odds)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Plan: domain.Plan{StakeUnit: stake}, Stake: stake, PotentialPayout: payout, Legs: legs}, nil
}

func buildParlay(stake decimal.Decimal, legs []domain.Leg) (Quote, error) {
	if len(legs) < 2 || len(legs) > maxParlayLegs {
		return Quote{}, invalid("legs", "parlay takes 2 to %d legs, got %d", maxParlayLegs, len(legs))
	}
	if err := distinctGames(legs); err != nil {
		return Quote{}, err
	}
	payout, err := odds.Payout(stake, legOdds(legs, allIndexes(len(legs)))...)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Plan: domain.Plan{StakeUnit: stake}, Stake: stake, PotentialPayout: payout, Legs: legs}, nil
}

func buildTeaser(stake decimal.Decimal, legs []domain.Leg, points *decimal.Decimal, table TeaserTable) (Quote, error) {
	verr := &domain.ValidationError{}
	if len(legs) < minTeaserLegs || len(legs) > maxTeaserLegs {
		verr.Add("legs", "teaser takes %d to %d legs, got %d", minTeaserLegs, maxTeaserLegs, len(legs))
	}
	if points == nil {
		verr.Add("teaserPoints", "is required for teaser")
	} else if !table.Supports(*points) {
		verr.Add("teaserPoints", "unsupported teaser points %s", points)
	}
	if err := verr.Err(); err != nil {
		return Quote{}, err
	}
	if err := distinctGames(legs); err != nil {
		return Quote{}, err
	}

	shifted := make([]domain.Leg, len(legs))
	for i, l := range legs {
		s, err := shiftLine(l, *points)
		if err != nil {
			verr.Add(fmt.Sprintf("legs[%d].marketType", i), "%v", err)
			continue
		}
		shifted[i] = s
	}
	if err := verr.Err(); err != nil {
		return Quote{}, err
	}

	price, ok := table.Odds(*points, len(legs))
	if !ok {
		return Quote{}, invalid("teaserPoints", "no price for %d legs at %s points", len(legs), points)
	}
	payout, err := odds.Payout(stake, price)
	if err != nil {
		return Quote{}, err
	}
	pts := *points
	return Quote{
		Plan:            domain.Plan{StakeUnit: stake, TeaserPoints: &pts, TeaserOdds: price},
		Stake:           stake,
		PotentialPayout: payout,
		Legs:            shifted,
	}, nil
}

// RoundRobinSizes valida os tamanhos pedidos; vazio significa 2..N-1
func RoundRobinSizes(n int, requested []int) ([]int, error) {
	if len(requested) == 0 {
		out := make([]int, 0, n-2)
		for k := 2; k < n; k++ {
			out = append(out, k)
		}
		return out, nil
	}
	seen := map[int]bool{}
	out := make([]int, 0, len(requested))
	for _, k := range requested {
		if k < 2 || k > n {
			return nil, invalid("roundRobinSizes", "size %d out of range 2..%d", k, n)
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out, nil
}

func buildRoundRobin(unit decimal.Decimal, legs []domain.Leg, requested []int) (Quote, error) {
	n := len(legs)
	if n < 3 || n > maxRoundRobinLegs {
		return Quote{}, invalid("legs", "round robin takes 3 to %d legs, got %d", maxRoundRobinLegs, n)
	}
	if err := distinctGames(legs); err != nil {
		return Quote{}, err
	}
	sizes, err := RoundRobinSizes(n, requested)
	if err != nil {
		return Quote{}, err
	}

	var combos [][]int
	potential := decimal.Zero
	for _, k := range sizes {
		for _, c := range Combinations(n, k) {
			p, err := odds.Payout(unit, legOdds(legs, c)...)
			if err != nil {
				return Quote{}, err
			}
			potential = potential.Add(p)
			combos = append(combos, c)
		}
	}
	return Quote{
		Plan:            domain.Plan{StakeUnit: unit, Combos: combos, Sizes: sizes},
		Stake:           unit.Mul(decimal.NewFromInt(int64(len(combos)))),
		PotentialPayout: potential,
		Legs:            legs,
	}, nil
}

// ifBetPayout: retorno bruto de uma cadeia em que todas as pernas ganham.
// Cada perna ativada arrisca a unidade; o lucro de cada uma se acumula sobre o stake.
func ifBetPayout(unit decimal.Decimal, legs []domain.Leg, chain []int) (decimal.Decimal, error) {
	total := unit
	one := decimal.NewFromInt(1)
	for _, i := range chain {
		m, err := odds.Multiplier(legs[i].Odds)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(unit.Mul(m.Sub(one)))
	}
	return odds.Money(total), nil
}

func buildIfBet(stake decimal.Decimal, legs []domain.Leg, rule domain.PushRule) (Quote, error) {
	if len(legs) < 2 {
		return Quote{}, invalid("legs", "if_bet takes at least 2 legs, got %d", len(legs))
	}
	chain := allIndexes(len(legs))
	payout, err := ifBetPayout(stake, legs, chain)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Plan:            domain.Plan{StakeUnit: stake, Chain: chain, PushRule: rule},
		Stake:           stake,
		PotentialPayout: payout,
		Legs:            legs,
	}, nil
}

func buildReverse(unit decimal.Decimal, legs []domain.Leg, rule domain.PushRule) (Quote, error) {
	if len(legs) < minReverseLegs || len(legs) > maxReverseLegs {
		return Quote{}, invalid("legs", "reverse takes %d to %d legs, got %d", minReverseLegs, maxReverseLegs, len(legs))
	}
	seqs := ReverseSequences(len(legs))
	potential := decimal.Zero
	for _, s := range seqs {
		p, err := ifBetPayout(unit, legs, s)
		if err != nil {
			return Quote{}, err
		}
		potential = potential.Add(p)
	}
	return Quote{
		Plan:            domain.Plan{StakeUnit: unit, Combos: seqs, PushRule: rule},
		Stake:           unit.Mul(decimal.NewFromInt(int64(len(seqs)))),
		PotentialPayout: potential,
		Legs:            legs,
	}, nil
}

// ProgressiveSchedule: schedule[0] = stake, schedule[i] = schedule[i-1] * m(leg i)
func ProgressiveSchedule(stake decimal.Decimal, legs []domain.Leg) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(legs)+1)
	running := stake
	out = append(out, odds.Money(running))
	for _, l := range legs {
		m, err := odds.Multiplier(l.Odds)
		if err != nil {
			return nil, err
		}
		running = running.Mul(m)
		out = append(out, odds.Money(running))
	}
	return out, nil
}

func buildBetItAll(stake decimal.Decimal, legs []domain.Leg, rule domain.PushRule) (Quote, error) {
	if len(legs) < 2 {
		return Quote{}, invalid("legs", "bet_it_all takes at least 2 legs, got %d", len(legs))
	}
	schedule, err := ProgressiveSchedule(stake, legs)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Plan:            domain.Plan{StakeUnit: stake, Chain: allIndexes(len(legs)), Schedule: schedule, PushRule: rule},
		Stake:           stake,
		PotentialPayout: schedule[len(schedule)-1],
		Legs:            legs,
	}, nil
}
