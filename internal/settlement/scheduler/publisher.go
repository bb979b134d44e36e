package scheduler

import (
	"context"

	sharedkafka "github.com/radieske/wager-ledger/internal/shared/kafka"
	"github.com/radieske/wager-ledger/pkg/contracts/events"
)

// Events é o que a liquidação publica
type Events interface {
	PublishWagerSettled(ctx context.Context, e events.WagerSettled) error
	PublishJobFailed(ctx context.Context, e events.SettlementJobFailed) error
}

// KafkaPublisher publica em wager_settled e na DLQ de jobs
type KafkaPublisher struct {
	Settled sharedkafka.MessageWriter
	DLQ     sharedkafka.MessageWriter
}

func NewKafkaPublisher(settled, dlq sharedkafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Settled: settled, DLQ: dlq}
}

func (p *KafkaPublisher) PublishWagerSettled(ctx context.Context, e events.WagerSettled) error {
	return sharedkafka.WriteJSON(ctx, p.Settled, e.WagerID, e)
}

func (p *KafkaPublisher) PublishJobFailed(ctx context.Context, e events.SettlementJobFailed) error {
	return sharedkafka.WriteJSON(ctx, p.DLQ, e.JobID, e)
}
