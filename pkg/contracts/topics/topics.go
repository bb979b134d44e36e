package topics

const (
	// Apostas
	WagerPlaced  = "wager_placed"
	WagerSettled = "wager_settled"

	// Feed de resultados
	GameFinished = "game_finished"

	// DLQs
	SettlementJobsDLQ = "settlement_jobs_dlq"
)
