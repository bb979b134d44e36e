package events

import "time"

// WagerPlaced é publicado pelo wager-service depois que a aposta foi admitida
type WagerPlaced struct {
	WagerID         string    `json:"wager_id"`
	OwnerID         string    `json:"owner_id"`
	Kind            string    `json:"kind"`
	Stake           string    `json:"stake"`
	PotentialPayout string    `json:"potential_payout"`
	GameRefs        []string  `json:"game_refs"`
	PlacedAt        time.Time `json:"placed_at"`
	TsUnixMs        int64     `json:"ts_unix_ms"`
}
