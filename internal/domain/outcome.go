package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Score é o placar de um jogo ou de um segmento dele
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Total soma os pontos dos dois lados
func (s Score) Total() int { return s.Home + s.Away }

// GameOutcome é o fato externo vindo do feed. Somente leitura para o núcleo.
type GameOutcome struct {
	GameRef  string `json:"gameRef"`
	Sport    string `json:"sport"`
	Finished bool   `json:"finished"`
	Final    Score  `json:"final"`
	// Periods: placar por período/segmento ("q1", "h1", "p3", ...)
	Periods map[string]Score `json:"periods,omitempty"`
	// PlayerStats: playerId -> estatística -> valor
	PlayerStats map[string]map[string]decimal.Decimal `json:"playerStats,omitempty"`
	// GameStats: estatísticas do jogo inteiro que não são placar (escanteios, cartões, ...)
	GameStats  map[string]decimal.Decimal `json:"gameStats,omitempty"`
	FinishedAt *time.Time                 `json:"finishedAt,omitempty"`
	UpdatedAt  time.Time                  `json:"updatedAt"`
}

// noTieSports são esportes onde um empate final indica dado incompleto
var noTieSports = map[string]bool{
	"basketball": true,
	"baseball":   true,
	"tennis":     true,
	"mma":        true,
}

// TiesAllowed informa se o esporte admite empate no placar final
func (g *GameOutcome) TiesAllowed() bool {
	return !noTieSports[g.Sport]
}

// PlayerStat busca uma estatística de jogador
func (g *GameOutcome) PlayerStat(playerID, stat string) (decimal.Decimal, bool) {
	stats, ok := g.PlayerStats[playerID]
	if !ok {
		return decimal.Zero, false
	}
	v, ok := stats[stat]
	return v, ok
}
