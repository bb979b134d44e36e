// Package grader decide o resultado de cada perna e o estado agregado de uma aposta
// a partir dos resultados finais dos jogos.
package grader

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
)

// GradeLeg gradua uma perna. Jogo ausente, não terminado ou dado faltando devolve LegPending.
// Erro só para pick malformado.
func GradeLeg(leg domain.Leg, g *domain.GameOutcome) (domain.LegResult, error) {
	if leg.Pick == nil {
		return domain.LegPending, fmt.Errorf("%w: leg on %s has no pick", domain.ErrMalformedLeg, leg.GameRef)
	}
	if g == nil || !g.Finished {
		return domain.LegPending, nil
	}

	switch p := leg.Pick.(type) {
	case domain.Moneyline:
		return gradeMoneyline(p, g)
	case domain.Spread:
		return gradeSpread(p, g.Final)
	case domain.Total:
		return overUnder(p.Side, decimal.NewFromInt(int64(g.Final.Total())), p.Line)
	case domain.PlayerProp:
		v, ok := g.PlayerStat(p.PlayerID, p.Stat)
		if !ok {
			return domain.LegPending, nil
		}
		return overUnder(p.Side, v, p.Line)
	case domain.GameProp:
		v, ok := gameStat(g, p.Segment, p.Stat)
		if !ok {
			return domain.LegPending, nil
		}
		return overUnder(p.Side, v, p.Line)
	}
	return domain.LegPending, fmt.Errorf("%w: unsupported pick %T", domain.ErrMalformedLeg, leg.Pick)
}

func gradeMoneyline(p domain.Moneyline, g *domain.GameOutcome) (domain.LegResult, error) {
	home, away := g.Final.Home, g.Final.Away
	if home == away {
		if g.TiesAllowed() {
			return domain.LegPush, nil
		}
		// empate num esporte sem empate: placar final incompleto
		return domain.LegPending, nil
	}
	switch p.Side {
	case domain.SideHome:
		return result(home > away), nil
	case domain.SideAway:
		return result(away > home), nil
	}
	return domain.LegPending, fmt.Errorf("%w: moneyline side %q", domain.ErrMalformedLeg, p.Side)
}

// gradeSpread aplica a linha à diferença de placar do lado escolhido
func gradeSpread(p domain.Spread, s domain.Score) (domain.LegResult, error) {
	var diff int
	switch p.Side {
	case domain.SideHome:
		diff = s.Home - s.Away
	case domain.SideAway:
		diff = s.Away - s.Home
	default:
		return domain.LegPending, fmt.Errorf("%w: spread side %q", domain.ErrMalformedLeg, p.Side)
	}
	adjusted := decimal.NewFromInt(int64(diff)).Add(p.Line)
	switch adjusted.Sign() {
	case 1:
		return domain.LegWon, nil
	case -1:
		return domain.LegLost, nil
	}
	return domain.LegPush, nil
}

func overUnder(side domain.Side, value, line decimal.Decimal) (domain.LegResult, error) {
	cmp := value.Cmp(line)
	if cmp == 0 {
		return domain.LegPush, nil
	}
	switch side {
	case domain.SideOver:
		return result(cmp > 0), nil
	case domain.SideUnder:
		return result(cmp < 0), nil
	}
	return domain.LegPending, fmt.Errorf("%w: over/under side %q", domain.ErrMalformedLeg, side)
}

func result(won bool) domain.LegResult {
	if won {
		return domain.LegWon
	}
	return domain.LegLost
}

// gameStat resolve uma estatística de jogo ou de segmento.
// Estatística explícita do feed tem precedência; senão deriva do placar (total/home/away).
func gameStat(g *domain.GameOutcome, segment, stat string) (decimal.Decimal, bool) {
	segment = strings.ToLower(segment)
	stat = strings.ToLower(stat)

	if segment == "" || segment == "game" {
		if v, ok := g.GameStats[stat]; ok {
			return v, true
		}
		return scoreStat(g.Final, stat)
	}

	if v, ok := g.GameStats[segment+"."+stat]; ok {
		return v, true
	}
	score, ok := g.Periods[segment]
	if !ok {
		return decimal.Zero, false
	}
	return scoreStat(score, stat)
}

func scoreStat(s domain.Score, stat string) (decimal.Decimal, bool) {
	switch stat {
	case "total", "points", "total_points":
		return decimal.NewFromInt(int64(s.Total())), true
	case "home", "home_points":
		return decimal.NewFromInt(int64(s.Home)), true
	case "away", "away_points":
		return decimal.NewFromInt(int64(s.Away)), true
	}
	return decimal.Zero, false
}
