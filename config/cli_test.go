package config

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestCliZeroValue(t *testing.T) {
	var cli Cli
	require.Equal(t, "", cli.WorkerSecret)
	require.Equal(t, 0, cli.OCRBatchSize)
	require.Equal(t, time.Duration(0), cli.HeartbeatInterval)
}

func TestNowMillisUsesClock(t *testing.T) {
	realClock := Clock
	defer func() { Clock = realClock }()

	mock := clock.NewMock()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.Set(fixed)
	Clock = mock

	require.Equal(t, fixed.UnixMilli(), NowMillis())
}
