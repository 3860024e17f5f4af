package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/job"
)

type fakeWriter struct {
	mu     sync.Mutex
	writes []job.JobStatus
}

func (f *fakeWriter) Put(ctx context.Context, s job.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, s)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func setup(t *testing.T) (*clock.Mock, *fakeWriter, *Reporter, func()) {
	realClock := Clock
	mock := clock.NewMock()
	Clock = mock

	writer := &fakeWriter{}
	reporter := NewReporter(context.Background(), writer, "upload-1")
	return mock, writer, reporter, func() {
		reporter.Stop()
		Clock = realClock
	}
}

func forward(mock *clock.Mock, d time.Duration) {
	time.Sleep(1 * time.Millisecond)
	mock.Add(d)
	time.Sleep(1 * time.Millisecond)
}

func TestReporterThrottlesSubThresholdProgress(t *testing.T) {
	mock, writer, reporter, cleanup := setup(t)
	defer cleanup()

	progress := 0
	reporter.Track(func() job.JobStatus { return job.JobStatus{Progress: progress} })

	progress = 1
	forward(mock, 1*time.Second)
	require.Equal(t, 1, writer.count()) // first observation always reports

	progress = 1
	forward(mock, 1*time.Second)
	require.Equal(t, 1, writer.count())
}

func TestReporterReportsOnTwoPercentAdvance(t *testing.T) {
	mock, writer, reporter, cleanup := setup(t)
	defer cleanup()

	progress := 0
	reporter.Track(func() job.JobStatus { return job.JobStatus{Progress: progress} })

	forward(mock, 1*time.Second)
	require.Equal(t, 1, writer.count())

	progress = 3
	forward(mock, 1*time.Second)
	require.Equal(t, 2, writer.count())
}

func TestReporterReportsOnStageChange(t *testing.T) {
	mock, writer, reporter, cleanup := setup(t)
	defer cleanup()

	stage := job.StageDownloading
	reporter.Track(func() job.JobStatus { return job.JobStatus{Progress: 5, Stage: stage} })
	forward(mock, 1*time.Second)
	require.Equal(t, 1, writer.count())

	stage = job.StageMetadata
	forward(mock, 1*time.Second)
	require.Equal(t, 2, writer.count())
}

func TestReporterHeartbeatsWithoutProgressAdvance(t *testing.T) {
	mock, writer, reporter, cleanup := setup(t)
	defer cleanup()

	reporter.Track(func() job.JobStatus { return job.JobStatus{Progress: 5} })
	forward(mock, 1*time.Second)
	require.Equal(t, 1, writer.count())

	forward(mock, config.HeartbeatInterval)
	require.Equal(t, 2, writer.count())
}

func TestDownloadProgressInterpolatesIntoTenTwentyRange(t *testing.T) {
	require.Equal(t, 10, DownloadProgress(0, 1000))
	require.Equal(t, 15, DownloadProgress(500, 1000))
	require.Equal(t, 20, DownloadProgress(1000, 1000))
	require.Equal(t, 10, DownloadProgress(0, 0))
}
