package audio

import (
	"context"
	"fmt"
	"sort"

	"github.com/videoreport/api/job"
	"github.com/videoreport/api/ratelimit"
)

// SpeechProvider is the external speech-to-text collaborator (§1, out of
// scope for this module beyond its call contract): submit audio bytes with
// fixed parameters and get back model-local-timestamped segments.
type SpeechProvider interface {
	Transcribe(ctx context.Context, audioBytes []byte) ([]job.TranscriptSegment, error)
}

// TranscribeChunks runs transcription fan-out over chunks (§4.3.3): each
// chunk's audio is submitted independently through the rate limiter, with
// up to 5 retries and exponential backoff; non-retryable errors
// (authentication, invalid audio format) abort just that chunk rather than
// the whole job. Results are timestamp-shifted by each chunk's start time,
// merged, sorted, and deduplicated on identical (text, timestamp) pairs
// (an artifact of overlapping VAD windows).
func TranscribeChunks(ctx context.Context, limiter *ratelimit.Limiter, provider SpeechProvider, chunks []ChunkAudio) []job.TranscriptSegment {
	var all []job.TranscriptSegment

	for i, c := range chunks {
		var segments []job.TranscriptSegment
		err := limiter.ExecuteWithRetry(ctx, ratelimit.IsRetryableFunc(ratelimit.IsRetryable), func(ctx context.Context) error {
			var err error
			segments, err = provider.Transcribe(ctx, c.audioBytes)
			return err
		})
		if err != nil {
			// One chunk's failure does not fail the job (§4.3.3): record an
			// empty result for it and continue.
			continue
		}

		for _, s := range segments {
			s.Timestamp += c.startTime
			s.ChunkIndex = i
			all = append(all, s)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })
	return dedupeSegments(all)
}

// ChunkAudio pairs an already-extracted chunk's audio bytes with the
// chunk's absolute start time, needed to shift model-local timestamps.
type ChunkAudio struct {
	startTime  float64
	audioBytes []byte
}

func NewChunkAudio(startTime float64, audioBytes []byte) ChunkAudio {
	return ChunkAudio{startTime: startTime, audioBytes: audioBytes}
}

func dedupeSegments(segments []job.TranscriptSegment) []job.TranscriptSegment {
	seen := map[string]bool{}
	var deduped []job.TranscriptSegment
	for _, s := range segments {
		key := fmt.Sprintf("%.3f|%s", s.Timestamp, s.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, s)
	}
	return deduped
}
