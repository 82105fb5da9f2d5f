package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweepScheduleFromInterval(t *testing.T) {
	require.Equal(t, "*/5 * * * * *", sweepScheduleFromInterval(5*time.Second))
	require.Equal(t, "*/1 * * * * *", sweepScheduleFromInterval(500*time.Millisecond))
	require.Equal(t, "0 * * * * *", sweepScheduleFromInterval(90*time.Second))
}
