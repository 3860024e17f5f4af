package ocr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTotalBatches(t *testing.T) {
	require.Equal(t, 3, TotalBatches(250, 100))
	require.Equal(t, 1, TotalBatches(1, 100))
	require.Equal(t, 0, TotalBatches(0, 100))
	require.Equal(t, 2, TotalBatches(200, 100))
}

func TestBatchBounds(t *testing.T) {
	start, end := BatchBounds(0, 250, 100)
	require.Equal(t, 0, start)
	require.Equal(t, 100, end)

	start, end = BatchBounds(2, 250, 100)
	require.Equal(t, 200, start)
	require.Equal(t, 250, end)
}

func TestBatchProgressCrossesExpectedCheckpoints(t *testing.T) {
	// S4: 250 scenes, 3 batches, per the formula 25 + floor(((i+1)/total)*65).
	require.Equal(t, 46, BatchProgress(0, 3))
	require.Equal(t, 68, BatchProgress(1, 3))
	require.Equal(t, 89, BatchProgress(2, 3)) // exact value is 90, capped at 89
}

func TestBatchProgressNeverExceedsCap(t *testing.T) {
	require.Equal(t, 89, BatchProgress(99, 100))
}
