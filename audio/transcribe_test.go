package audio

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/ratelimit"
)

type fakeSpeechProvider struct {
	behaviors []func() ([]job.TranscriptSegment, error)
	calls     int
}

func (f *fakeSpeechProvider) Transcribe(ctx context.Context, _ []byte) ([]job.TranscriptSegment, error) {
	b := f.behaviors[f.calls]
	f.calls++
	return b()
}

func TestTranscribeChunksShiftsTimestampsAndDedupes(t *testing.T) {
	limiter := ratelimit.New(10, 100, time.Minute)

	provider := &fakeSpeechProvider{behaviors: []func() ([]job.TranscriptSegment, error){
		func() ([]job.TranscriptSegment, error) {
			return []job.TranscriptSegment{{Timestamp: 0.5, Text: "hello"}}, nil
		},
		func() ([]job.TranscriptSegment, error) {
			return []job.TranscriptSegment{{Timestamp: 0.2, Text: "world"}, {Timestamp: 0.2, Text: "world"}}, nil
		},
	}}

	chunks := []ChunkAudio{
		NewChunkAudio(0, []byte("chunk0")),
		NewChunkAudio(10, []byte("chunk1")),
	}

	segments := TranscribeChunks(context.Background(), limiter, provider, chunks)
	require.Len(t, segments, 2)
	require.Equal(t, "hello", segments[0].Text)
	require.InDelta(t, 0.5, segments[0].Timestamp, 0.001)
	require.Equal(t, "world", segments[1].Text)
	require.InDelta(t, 10.2, segments[1].Timestamp, 0.001)
}

func TestTranscribeChunksSkipsFailedChunkWithoutFailingJob(t *testing.T) {
	limiter := ratelimit.New(10, 100, time.Minute, ratelimit.WithMaxRetries(0))

	provider := &fakeSpeechProvider{behaviors: []func() ([]job.TranscriptSegment, error){
		func() ([]job.TranscriptSegment, error) {
			return nil, fmt.Errorf("invalid audio format")
		},
		func() ([]job.TranscriptSegment, error) {
			return []job.TranscriptSegment{{Timestamp: 1, Text: "second chunk ok"}}, nil
		},
	}}

	chunks := []ChunkAudio{
		NewChunkAudio(0, []byte("bad")),
		NewChunkAudio(5, []byte("good")),
	}

	segments := TranscribeChunks(context.Background(), limiter, provider, chunks)
	require.Len(t, segments, 1)
	require.Equal(t, "second chunk ok", segments[0].Text)
	require.InDelta(t, 6, segments[0].Timestamp, 0.001)
}

func TestDedupeSegmentsPreservesFirstSeenOrder(t *testing.T) {
	in := []job.TranscriptSegment{
		{Timestamp: 1, Text: "a"},
		{Timestamp: 1, Text: "a"},
		{Timestamp: 2, Text: "b"},
	}
	out := dedupeSegments(in)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].Text)
	require.Equal(t, "b", out[1].Text)
}
