package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/job"
)

func TestDecodeTaskBodyRoundTrips(t *testing.T) {
	payload := []byte(`{"upload_id":"abc","batch_index":2}`)
	encoded := []byte("eyJ1cGxvYWRfaWQiOiJhYmMiLCJiYXRjaF9pbmRleCI6Mn0=")
	decoded, err := DecodeTaskBody(encoded)
	require.NoError(t, err)
	require.JSONEq(t, string(payload), string(decoded))
}

func TestFakeTaskQueueDispatchesSynchronously(t *testing.T) {
	var got job.BatchTask
	fake := &FakeTaskQueue{
		Dispatch: func(_ context.Context, path string, task interface{}) error {
			got = task.(job.BatchTask)
			require.Equal(t, "/process-ocr-batch", path)
			return nil
		},
	}

	err := fake.Enqueue(context.Background(), "/process-ocr-batch", job.BatchTask{UploadID: "abc", BatchIndex: 2}, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "abc", got.UploadID)
	require.Equal(t, 2, got.BatchIndex)
}
