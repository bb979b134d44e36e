package producer

import (
	"context"
	"time"

	sharedkafka "github.com/radieske/wager-ledger/internal/shared/kafka"
	"github.com/radieske/wager-ledger/pkg/contracts/events"
)

type KafkaPublisher struct {
	Writer sharedkafka.MessageWriter
}

func NewKafkaPublisher(w sharedkafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

// PublishWagerPlaced particiona por dono para manter a ordem das apostas de cada um
func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return sharedkafka.WriteJSON(ctx, p.Writer, e.OwnerID, e)
}
