package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope(WalletCredited, map[string]any{"user_id": 1, "amount": 1000})

	assert.Equal(t, WalletCredited, env.Event)
	assert.Equal(t, 1, env.Version)
	_, err := time.Parse(time.RFC3339, env.OccurredAt)
	require.NoError(t, err)

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"event":"wallet.credited"`)
	assert.Contains(t, string(b), `"amount":1000`)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), BookingPaid, nil))
	assert.NoError(t, p.Close())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_ = r.Publish(context.Background(), WalletDebited, 1)
	_ = r.Publish(context.Background(), BookingPaid, 2)

	assert.Equal(t, []string{WalletDebited, BookingPaid}, r.Keys())
}
