package queuecore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/queuecore/internal/kv"
)

func TestPackPriorityScore_OrdersByPriorityThenCounter(t *testing.T) {
	cases := []struct {
		name                 string
		pHigh, cHigh         int64
		pLow, cLow           int64
	}{
		{"lower priority number beats higher even with a much later counter", 1, 0, 5, 1_000_000},
		{"same priority: earlier counter sorts first", 3, 10, 3, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := PackPriorityScore(tc.pHigh, tc.cHigh)
			second := PackPriorityScore(tc.pLow, tc.cLow)
			require.Less(t, first, second)
		})
	}
}

func TestPackPriorityScore_CounterFitsWithoutCarry(t *testing.T) {
	// A counter near the top of its 40-bit band must never carry into the
	// priority bits packed above it.
	scoreAtBandTop := PackPriorityScore(1, counterMask)
	scoreNextPriority := PackPriorityScore(2, 0)
	require.Less(t, scoreAtBandTop, scoreNextPriority)
}

func TestNextPriorityCounter_Monotonic(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")

	var values []int64
	for i := 0; i < 5; i++ {
		mustUpdate(t, store, func(tx *kv.Tx) error {
			n, err := NextPriorityCounter(tx, keys)
			require.NoError(t, err)
			values = append(values, n)
			return nil
		})
	}

	for i := 1; i < len(values); i++ {
		require.Greater(t, values[i], values[i-1])
	}
}
