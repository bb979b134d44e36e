package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-ledger/pkg/contracts/events"
)

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublishWagerPlacedKeysByOwner(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaPublisher(w)
	require.NoError(t, p.PublishWagerPlaced(context.Background(), events.WagerPlaced{WagerID: "w1", OwnerID: "u1", Kind: "single", Stake: "10.00"}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "u1", string(w.msgs[0].Key))
	var ev events.WagerPlaced
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "w1", ev.WagerID)
	assert.NotZero(t, ev.TsUnixMs)
}
