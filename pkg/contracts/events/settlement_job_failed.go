package events

import "time"

// SettlementJobFailed vai para a DLQ quando um job esgota as tentativas
type SettlementJobFailed struct {
	JobID    string    `json:"job_id"`
	Type     string    `json:"type"`
	GameRef  string    `json:"game_ref,omitempty"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}
