package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/job"
)

func TestMemStorePutGetRoundTrips(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	s := job.JobStatus{UploadID: "abc", Status: job.StatusProcessing, Progress: 10}
	require.NoError(t, store.Put(ctx, s))

	got, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 10, got.Progress)
}

func TestMemStoreCheckpointRoundTrips(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	c := job.Checkpoint{
		UploadID:           "abc",
		CurrentStep:        job.CheckpointStepOCR,
		TotalScenes:        250,
		CompletedOCRScenes: map[int]bool{0: true, 1: true},
		RetryCount:         1,
		UpdatedAt:          time.Now(),
		ExpiresAt:          time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, store.PutCheckpoint(ctx, c))

	got, ok, err := store.GetCheckpoint(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.CompletedOCRScenes[0])
	require.True(t, got.CompletedOCRScenes[1])

	require.NoError(t, store.DeleteCheckpoint(ctx, "abc"))
	_, ok, err = store.GetCheckpoint(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStoreDeleteExpired(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.PutCheckpoint(ctx, job.Checkpoint{UploadID: "old", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.PutCheckpoint(ctx, job.Checkpoint{UploadID: "fresh", ExpiresAt: now.Add(time.Hour)}))

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok, _ := store.GetCheckpoint(ctx, "fresh")
	require.True(t, ok)
}

func TestSceneSetMarshalRoundTrips(t *testing.T) {
	set := map[int]bool{0: true, 5: true, 99: true}
	b, err := marshalSceneSet(set)
	require.NoError(t, err)

	got, err := unmarshalSceneSet(b)
	require.NoError(t, err)
	require.Equal(t, set, got)
}
