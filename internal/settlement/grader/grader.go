package grader

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/wager/combinator"
	"github.com/radieske/wager-ledger/internal/wager/odds"
)

// Outcomes indexa os resultados de jogo por gameRef
type Outcomes map[string]*domain.GameOutcome

type Grader struct {
	teasers     combinator.TeaserTable
	defaultPush domain.PushRule
}

// New cria um Grader. defaultPush vale para apostas gravadas sem regra de push no plano.
func New(teasers combinator.TeaserTable, defaultPush domain.PushRule) *Grader {
	if teasers == nil {
		teasers = combinator.DefaultTeaserTable
	}
	if !defaultPush.Valid() {
		defaultPush = domain.PushContinue
	}
	return &Grader{teasers: teasers, defaultPush: defaultPush}
}

// outcome de uma sub-estrutura (parlay, sequência)
type partial struct {
	status domain.Status
	payout decimal.Decimal
}

var one = decimal.NewFromInt(1)

// Grade decide o estado da aposta. Nunca decide terminal sem dados para isso:
// perna não graduável deixa a aposta pending (ou partially_settled nos tipos sequenciais).
// Dado persistido inválido vira *domain.CorruptWagerError.
func (g *Grader) Grade(w *domain.Wager, outcomes Outcomes) (domain.Decision, error) {
	if err := checkShape(w); err != nil {
		return domain.Decision{}, &domain.CorruptWagerError{WagerID: w.ID, Err: err}
	}

	grades := make([]domain.LegResult, len(w.Legs))
	for i, leg := range w.Legs {
		r, err := GradeLeg(leg, outcomes[leg.GameRef])
		if err != nil {
			return domain.Decision{}, &domain.CorruptWagerError{WagerID: w.ID, Err: fmt.Errorf("legs[%d]: %w", i, err)}
		}
		grades[i] = r
	}

	var (
		d   domain.Decision
		err error
	)
	switch w.Kind {
	case domain.KindSingle, domain.KindParlay:
		d, err = g.parlayDecision(w, grades)
	case domain.KindTeaser:
		d, err = g.teaserDecision(w, grades)
	case domain.KindRoundRobin:
		d, err = g.roundRobinDecision(w, grades)
	case domain.KindIfBet:
		d, err = g.ifBetDecision(w, grades)
	case domain.KindReverse:
		d, err = g.reverseDecision(w, grades)
	case domain.KindBetItAll:
		d, err = g.betItAllDecision(w, grades)
	default:
		err = fmt.Errorf("unknown kind %q", w.Kind)
	}
	if err != nil {
		return domain.Decision{}, &domain.CorruptWagerError{WagerID: w.ID, Err: err}
	}
	return d, nil
}

func checkShape(w *domain.Wager) error {
	n := len(w.Legs)
	if n == 0 {
		return fmt.Errorf("no legs")
	}
	if !w.Stake.IsPositive() {
		return fmt.Errorf("stake %s", w.Stake)
	}
	if w.Results != nil && len(w.Results) != n {
		return fmt.Errorf("%d results for %d legs", len(w.Results), n)
	}
	for _, c := range w.Plan.Combos {
		if err := checkIndexes(c, n); err != nil {
			return fmt.Errorf("plan combos: %w", err)
		}
	}
	if err := checkIndexes(w.Plan.Chain, n); err != nil {
		return fmt.Errorf("plan chain: %w", err)
	}
	return nil
}

func checkIndexes(idx []int, n int) error {
	for _, i := range idx {
		if i < 0 || i >= n {
			return fmt.Errorf("leg index %d out of range", i)
		}
	}
	return nil
}

func (g *Grader) pushRule(w *domain.Wager) domain.PushRule {
	if w.Plan.PushRule.Valid() {
		return w.Plan.PushRule
	}
	return g.defaultPush
}

func (g *Grader) unit(w *domain.Wager) decimal.Decimal {
	if w.Plan.StakeUnit.IsPositive() {
		return w.Plan.StakeUnit
	}
	return w.Stake
}

// gradeParlay: qualquer perna perdida perde; qualquer perna sem resultado espera;
// pushes saem do multiplicador; nenhuma perna ganha é push.
func gradeParlay(legs []domain.Leg, grades []domain.LegResult, idx []int, unit decimal.Decimal) (partial, error) {
	undetermined := false
	var won []int
	for _, i := range idx {
		switch grades[i] {
		case domain.LegLost:
			return partial{status: domain.StatusLost}, nil
		case domain.LegWon:
			won = append(won, legs[i].Odds)
		case domain.LegPending:
			undetermined = true
		}
	}
	if undetermined {
		return partial{status: domain.StatusPending}, nil
	}
	if len(won) == 0 {
		return partial{status: domain.StatusPush}, nil
	}
	payout, err := odds.Payout(unit, won...)
	if err != nil {
		return partial{}, err
	}
	return partial{status: domain.StatusWon, payout: payout}, nil
}

func (g *Grader) parlayDecision(w *domain.Wager, grades []domain.LegResult) (domain.Decision, error) {
	p, err := gradeParlay(w.Legs, grades, allIndexes(len(w.Legs)), w.Stake)
	if err != nil {
		return domain.Decision{}, err
	}
	return domain.Decision{Status: p.status, Results: grades, Payout: p.payout}, nil
}

// teaserDecision: pushes saem e o teaser é reprecificado pela quantidade de pernas ganhas
func (g *Grader) teaserDecision(w *domain.Wager, grades []domain.LegResult) (domain.Decision, error) {
	won, undetermined := 0, false
	for _, r := range grades {
		switch r {
		case domain.LegLost:
			return domain.Decision{Status: domain.StatusLost, Results: grades}, nil
		case domain.LegWon:
			won++
		case domain.LegPending:
			undetermined = true
		}
	}
	if undetermined {
		return domain.Decision{Status: domain.StatusPending, Results: grades}, nil
	}
	if won < 2 {
		return domain.Decision{Status: domain.StatusPush, Results: grades}, nil
	}

	price := w.Plan.TeaserOdds
	if won < len(w.Legs) || price == 0 {
		if w.Plan.TeaserPoints == nil {
			return domain.Decision{}, fmt.Errorf("teaser without points")
		}
		o, ok := g.teasers.Odds(*w.Plan.TeaserPoints, won)
		if !ok {
			return domain.Decision{}, fmt.Errorf("no teaser price for %d legs at %s points", won, w.Plan.TeaserPoints)
		}
		price = o
	}
	payout, err := odds.Payout(w.Stake, price)
	if err != nil {
		return domain.Decision{}, err
	}
	return domain.Decision{Status: domain.StatusWon, Results: grades, Payout: payout}, nil
}

// combine junta sub-apostas independentes (round robin, reversa)
func combine(parts []partial) partial {
	total := decimal.Zero
	allPush := true
	for _, p := range parts {
		if !p.status.Terminal() {
			return partial{status: domain.StatusPending}
		}
		if p.status == domain.StatusWon {
			total = total.Add(p.payout)
		}
		if p.status != domain.StatusPush {
			allPush = false
		}
	}
	switch {
	case total.IsPositive():
		return partial{status: domain.StatusWon, payout: total}
	case allPush:
		return partial{status: domain.StatusPush}
	}
	return partial{status: domain.StatusLost}
}

func (g *Grader) roundRobinDecision(w *domain.Wager, grades []domain.LegResult) (domain.Decision, error) {
	if len(w.Plan.Combos) == 0 {
		return domain.Decision{}, fmt.Errorf("round robin without combinations")
	}
	unit := g.unit(w)
	parts := make([]partial, 0, len(w.Plan.Combos))
	for _, c := range w.Plan.Combos {
		p, err := gradeParlay(w.Legs, grades, c, unit)
		if err != nil {
			return domain.Decision{}, err
		}
		parts = append(parts, p)
	}
	c := combine(parts)
	return domain.Decision{Status: c.status, Results: grades, Payout: c.payout}, nil
}

// gradeIfChain percorre uma cadeia de if-bet. examined marca as pernas alcançadas.
// Retorna pending quando parou numa perna sem resultado.
func gradeIfChain(legs []domain.Leg, grades []domain.LegResult, chain []int, unit decimal.Decimal, rule domain.PushRule, examined []bool) (partial, error) {
	profit := decimal.Zero
	for _, i := range chain {
		examined[i] = true
		switch grades[i] {
		case domain.LegPending:
			return partial{status: domain.StatusPending}, nil
		case domain.LegLost:
			return partial{status: domain.StatusLost}, nil
		case domain.LegWon:
			m, err := odds.Multiplier(legs[i].Odds)
			if err != nil {
				return partial{}, err
			}
			profit = profit.Add(unit.Mul(m.Sub(one)))
		case domain.LegPush:
			if rule == domain.PushHalt {
				return settleChain(unit, profit), nil
			}
		}
	}
	return settleChain(unit, profit), nil
}

func settleChain(unit, profit decimal.Decimal) partial {
	if profit.IsPositive() {
		return partial{status: domain.StatusWon, payout: odds.Money(unit.Add(profit))}
	}
	return partial{status: domain.StatusPush}
}

// sequentialResults expõe só as pernas examinadas; as demais ficam pending (não examinadas)
func sequentialResults(grades []domain.LegResult, examined []bool) ([]domain.LegResult, bool) {
	out := domain.PendingResults(len(grades))
	anyGraded := false
	for i, ok := range examined {
		if ok {
			out[i] = grades[i]
			if grades[i].Graded() {
				anyGraded = true
			}
		}
	}
	return out, anyGraded
}

// openStatus: cadeia que parou esperando dado fica partially_settled se já graduou alguma perna
func openStatus(anyGraded bool) domain.Status {
	if anyGraded {
		return domain.StatusPartiallySettled
	}
	return domain.StatusPending
}

func (g *Grader) ifBetDecision(w *domain.Wager, grades []domain.LegResult) (domain.Decision, error) {
	chain := w.Plan.Chain
	if len(chain) == 0 {
		chain = allIndexes(len(w.Legs))
	}
	examined := make([]bool, len(w.Legs))
	p, err := gradeIfChain(w.Legs, grades, chain, g.unit(w), g.pushRule(w), examined)
	if err != nil {
		return domain.Decision{}, err
	}
	results, anyGraded := sequentialResults(grades, examined)
	if p.status == domain.StatusPending {
		return domain.Decision{Status: openStatus(anyGraded), Results: results}, nil
	}
	return domain.Decision{Status: p.status, Results: results, Payout: p.payout}, nil
}

func (g *Grader) reverseDecision(w *domain.Wager, grades []domain.LegResult) (domain.Decision, error) {
	if len(w.Plan.Combos) == 0 {
		return domain.Decision{}, fmt.Errorf("reverse without sequences")
	}
	unit, rule := g.unit(w), g.pushRule(w)
	examined := make([]bool, len(w.Legs))
	parts := make([]partial, 0, len(w.Plan.Combos))
	for _, seq := range w.Plan.Combos {
		p, err := gradeIfChain(w.Legs, grades, seq, unit, rule, examined)
		if err != nil {
			return domain.Decision{}, err
		}
		parts = append(parts, p)
	}
	results, anyGraded := sequentialResults(grades, examined)
	c := combine(parts)
	if c.status == domain.StatusPending {
		return domain.Decision{Status: openStatus(anyGraded), Results: results}, nil
	}
	return domain.Decision{Status: c.status, Results: results, Payout: c.payout}, nil
}

// betItAllDecision: o valor corrente é multiplicado a cada perna ganha.
// Uma derrota perde tudo e as pernas seguintes nunca são examinadas.
func (g *Grader) betItAllDecision(w *domain.Wager, grades []domain.LegResult) (domain.Decision, error) {
	chain := w.Plan.Chain
	if len(chain) == 0 {
		chain = allIndexes(len(w.Legs))
	}
	rule := g.pushRule(w)
	examined := make([]bool, len(w.Legs))
	running := w.Stake

	status := domain.StatusWon
walk:
	for _, i := range chain {
		examined[i] = true
		switch grades[i] {
		case domain.LegPending:
			status = domain.StatusPending
			break walk
		case domain.LegLost:
			status = domain.StatusLost
			break walk
		case domain.LegWon:
			m, err := odds.Multiplier(w.Legs[i].Odds)
			if err != nil {
				return domain.Decision{}, err
			}
			running = running.Mul(m)
		case domain.LegPush:
			if rule == domain.PushHalt {
				break walk
			}
		}
	}

	results, anyGraded := sequentialResults(grades, examined)
	switch status {
	case domain.StatusPending:
		return domain.Decision{Status: openStatus(anyGraded), Results: results}, nil
	case domain.StatusLost:
		return domain.Decision{Status: domain.StatusLost, Results: results}, nil
	}
	payout := odds.Money(running)
	if !payout.GreaterThan(w.Stake) {
		return domain.Decision{Status: domain.StatusPush, Results: results}, nil
	}
	return domain.Decision{Status: domain.StatusWon, Results: results, Payout: payout}, nil
}

func allIndexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
