package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// GameFinished é o aviso do feed externo de que um jogo tem resultado (final ou corrigido)
type GameFinished struct {
	GameRef     string                                `json:"game_ref"`
	Sport       string                                `json:"sport"`
	Finished    bool                                  `json:"finished"`
	Final       Score                                 `json:"final"`
	Periods     map[string]Score                      `json:"periods,omitempty"`
	PlayerStats map[string]map[string]decimal.Decimal `json:"player_stats,omitempty"`
	GameStats   map[string]decimal.Decimal            `json:"game_stats,omitempty"`
	FinishedAt  *time.Time                            `json:"finished_at,omitempty"`
	Source      string                                `json:"source"`
}
