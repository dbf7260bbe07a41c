package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictor/market"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	s, err := ByName("value")
	require.NoError(t, err)
	assert.Equal(t, "value", s.ID())

	// Name resolution is forgiving about case and whitespace.
	s, err = ByName("  Value ")
	require.NoError(t, err)
	assert.Equal(t, "value", s.ID())

	_, err = ByName("does-not-exist")
	assert.Error(t, err)

	assert.Contains(t, Names(), "value")
	assert.Contains(t, Names(), "noop")
}

func TestValueSignalsOnCheapAsk(t *testing.T) {
	t.Parallel()

	v := &Value{MaxAsk: 40, WinProbability: 0.52}
	q := market.Quote{Ticker: "RAIN-NYC", Bid: 34, Ask: 36}

	sig, ok, err := v.Evaluate(context.Background(), q)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NoError(t, sig.Validate())
	assert.Equal(t, "RAIN-NYC", sig.Ticker)
	assert.Equal(t, market.SideYes, sig.Side)
	assert.Equal(t, market.Price(36), sig.SuggestedPrice)
	assert.InDelta(t, 17.0, sig.EdgePct, 1e-9) // 0.52 − mid 0.35, in points
}

func TestValueDeclines(t *testing.T) {
	t.Parallel()

	v := &Value{MaxAsk: 40, WinProbability: 0.52}

	// Ask above the ceiling.
	_, ok, err := v.Evaluate(context.Background(), market.Quote{Bid: 43, Ask: 45})
	require.NoError(t, err)
	assert.False(t, ok)

	// No edge when the model prob sits below the midpoint.
	v.WinProbability = 0.30
	_, ok, err = v.Evaluate(context.Background(), market.Quote{Bid: 38, Ask: 40})
	require.NoError(t, err)
	assert.False(t, ok)

	// Untradable quote.
	v.WinProbability = 0.52
	_, ok, err = v.Evaluate(context.Background(), market.Quote{Ask: 0})
	require.NoError(t, err)
	assert.False(t, ok)

	// One-sided book: no bid means no midpoint to price against.
	_, ok, err = v.Evaluate(context.Background(), market.Quote{Ask: 10})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoopNeverSignals(t *testing.T) {
	t.Parallel()

	_, ok, err := Noop{}.Evaluate(context.Background(), market.Quote{Ask: 10})
	require.NoError(t, err)
	assert.False(t, ok)
}
