package producer_test

import (
	"context"
	"encoding/json"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/gridbet-engine/internal/wager-service/producer"
	"github.com/radieske/gridbet-engine/pkg/contracts/events"
)

type captureWriter struct{ msgs []kafkago.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher_RoutesByTopicAndKeysByWallet(t *testing.T) {
	w := &captureWriter{}
	p := producer.NewKafkaPublisher(w, producer.DefaultTopics())
	ctx := context.Background()

	require.NoError(t, p.PublishWagerPlaced(ctx, events.WagerPlaced{WagerID: "a", WalletAddress: "w1", Amount: "10"}))
	require.NoError(t, p.PublishWagerResolved(ctx, events.WagerResolved{WagerID: "a", WalletAddress: "w1", Status: "won"}))
	require.NoError(t, p.PublishWagerCancelled(ctx, events.WagerCancelled{WagerID: "b", WalletAddress: "w2"}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, []string{"wager_placed", "wager_resolved", "wager_cancelled"},
		[]string{w.msgs[0].Topic, w.msgs[1].Topic, w.msgs[2].Topic})
	assert.Equal(t, "w1", string(w.msgs[0].Key))
	assert.Equal(t, "w2", string(w.msgs[2].Key))

	var placed events.WagerPlaced
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &placed))
	assert.NotZero(t, placed.TsUnixMs)
	assert.Equal(t, "10", placed.Amount)
}
