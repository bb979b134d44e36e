package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/settlement/outcomes"
	"github.com/radieske/wager-ledger/pkg/contracts/events"
)

// MessageReader é o pedaço do *kafka.Reader que o consumer usa
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Consumer consome game_finished, grava o resultado e avisa quando um jogo finalizado mudou
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Consumer struct {
	Log    *zap.Logger
	Reader MessageReader
	Store  outcomes.Store
	// Backoff é a espera após erro de leitura (padrão 500ms)
	Backoff time.Duration

	// OnFinished recebe jogos finalizados cujo resultado mudou (normalmente enfileira grade_game)
	OnFinished func(ctx context.Context, gameRef string)

	OnConsumed func()       // métricas (counter++)
	OnUpserted func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop de consumo até o contexto ser cancelado
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("kafka read failed", zap.Error(err))
			c.onError("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff()):
			}
			continue
		}
		if c.OnConsumed != nil {
			c.OnConsumed()
		}
		c.Handle(ctx, m)
	}
}

func (c *Consumer) backoff() time.Duration {
	if c.Backoff > 0 {
		return c.Backoff
	}
	return 500 * time.Millisecond
}

// Handle processa uma mensagem. Mensagem inválida é descartada com log.
func (c *Consumer) Handle(ctx context.Context, m kafka.Message) {
	var ev events.GameFinished
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.Log.Warn("invalid message", zap.Error(err))
		c.onError("decode")
		return
	}
	g, err := ToOutcome(ev)
	if err != nil {
		c.Log.Warn("invalid message", zap.Error(err))
		c.onError("decode")
		return
	}

	changed, err := c.Store.Upsert(ctx, g)
	if err != nil {
		c.Log.Warn("outcome upsert failed", zap.String("gameRef", g.GameRef), zap.Error(err))
		c.onError("db_upsert")
		return
	}
	if !changed {
		return
	}
	if c.OnUpserted != nil {
		c.OnUpserted()
	}
	if g.Finished && c.OnFinished != nil {
		c.OnFinished(ctx, g.GameRef)
	}
}

func (c *Consumer) onError(stage string) {
	if c.OnError != nil {
		c.OnError(stage)
	}
}
