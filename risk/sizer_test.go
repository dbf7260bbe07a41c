package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testStage() Stage {
	return Stage{
		MinEdgePct:     5,
		KellyFraction:  0.25,
		MaxBetUSD:      5,
		MaxBankrollPct: 0.05,
		GlobalCapUSD:   50,
	}
}

func TestSizeQuarterKelly(t *testing.T) {
	t.Parallel()

	// p=0.65 with a 5 point edge means the market implies 0.60. Full Kelly
	// f* = (p·b − q)/b with b = 0.40/0.60 is 0.125; a quarter of that on a
	// $100 bankroll is $3.125, under every cap.
	got, ok := Size(SizeInputs{EdgePct: 5, WinProbability: 0.65, Bankroll: 100}, testStage())
	assert.True(t, ok)
	assert.InDelta(t, 3.125, got, 1e-9)
}

func TestSizeLowestCapWins(t *testing.T) {
	t.Parallel()

	in := SizeInputs{EdgePct: 20, WinProbability: 0.70, Bankroll: 10_000}

	// Raw quarter-Kelly here is far above all caps.
	stage := testStage()
	got, ok := Size(in, stage)
	assert.True(t, ok)
	assert.Equal(t, 5.0, got) // MaxBetUSD binds

	stage.MaxBetUSD = 1000
	stage.GlobalCapUSD = 10_000
	got, ok = Size(in, stage)
	assert.True(t, ok)
	assert.Equal(t, 500.0, got) // 5% of bankroll binds

	stage.MaxBankrollPct = 0.20
	stage.GlobalCapUSD = 50
	got, ok = Size(in, stage)
	assert.True(t, ok)
	assert.Equal(t, 50.0, got) // global ceiling binds
}

func TestSizeRejectsBelowMinEdge(t *testing.T) {
	t.Parallel()

	_, ok := Size(SizeInputs{EdgePct: 4.9, WinProbability: 0.65, Bankroll: 100}, testStage())
	assert.False(t, ok)
}

func TestSizeRejectsBadInputs(t *testing.T) {
	t.Parallel()

	stage := testStage()
	cases := []struct {
		name string
		in   SizeInputs
	}{
		{"zero bankroll", SizeInputs{EdgePct: 10, WinProbability: 0.6, Bankroll: 0}},
		{"negative edge", SizeInputs{EdgePct: -1, WinProbability: 0.6, Bankroll: 100}},
		{"prob zero", SizeInputs{EdgePct: 10, WinProbability: 0, Bankroll: 100}},
		{"prob one", SizeInputs{EdgePct: 10, WinProbability: 1, Bankroll: 100}},
		{"nan edge", SizeInputs{EdgePct: math.NaN(), WinProbability: 0.6, Bankroll: 100}},
		{"nan prob", SizeInputs{EdgePct: 10, WinProbability: math.NaN(), Bankroll: 100}},
		{"implied nonpositive", SizeInputs{EdgePct: 60, WinProbability: 0.5, Bankroll: 100}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			size, ok := Size(tc.in, stage)
			assert.False(t, ok)
			assert.Zero(t, size)
		})
	}
}
