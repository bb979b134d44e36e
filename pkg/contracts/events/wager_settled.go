package events

import "time"

// WagerSettled é emitido pela liquidação quando a aposta muda de status
type WagerSettled struct {
	WagerID   string    `json:"wager_id"`
	OwnerID   string    `json:"owner_id"`
	Kind      string    `json:"kind"`
	From      string    `json:"from"`
	Status    string    `json:"status"` // partially_settled | won | lost | push
	Payout    string    `json:"payout"`
	Credited  string    `json:"credited"`
	GameRef   string    `json:"game_ref"` // jogo cuja liquidação disparou a mudança
	SettledAt time.Time `json:"settled_at"`
}
