package audio

import (
	"context"
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/videoreport/api/config"
	"github.com/videoreport/api/subprocess"
)

// Extract pulls the single audio track out of sourcePath into outputPath as
// 16kHz mono MP3 at 64kbps with volume normalization, per §4.3.1. Bounded
// by config.AudioExtractionTimeout; a timeout or non-zero exit fails the
// job (the caller is responsible for treating ffmpeg's "no audio stream"
// error as a phase-skip rather than a failure — see video.InputVideo.HasAudio).
func Extract(ctx context.Context, sourcePath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, config.AudioExtractionTimeout)
	defer cancel()

	err := subprocess.RunWithTimeout(ctx, func() *ffmpeg.Stream {
		return ffmpeg.Input(sourcePath).Output(outputPath, ffmpeg.KwArgs{
			"vn":        "",
			"ac":        1,
			"ar":        16000,
			"c:a":       "libmp3lame",
			"b:a":       "64k",
			"af":        "loudnorm",
			"map_metadata": -1,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to extract audio from %s: %w", sourcePath, err)
	}
	return nil
}

// SuppressBGM applies a crude vocal-isolation bandpass (80Hz-4kHz, where
// Japanese speech energy concentrates) plus a noise gate, as a best-effort
// preprocessing pass before VAD and transcription (§4.2). Bounded by
// config.AudioPreprocessingTimeout. Callers must treat a non-nil error as
// non-fatal and fall back to the unprocessed extraction (§4.2's "failure is
// non-fatal" clause) rather than failing the job.
func SuppressBGM(ctx context.Context, mp3Path, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, config.AudioPreprocessingTimeout)
	defer cancel()

	err := subprocess.RunWithTimeout(ctx, func() *ffmpeg.Stream {
		return ffmpeg.Input(mp3Path).Output(outputPath, ffmpeg.KwArgs{
			"af":  "highpass=f=80,lowpass=f=4000,agate=threshold=0.02",
			"c:a": "libmp3lame",
			"b:a": "64k",
		})
	})
	if err != nil {
		return fmt.Errorf("failed to suppress BGM in %s: %w", mp3Path, err)
	}
	return nil
}

// ToPCM converts the extracted MP3 to raw 16-bit signed little-endian PCM
// at 16kHz mono, the format the VAD model consumes (§4.3.2). Bounded by
// config.PCMConversionTimeout.
func ToPCM(ctx context.Context, mp3Path, pcmPath string) error {
	ctx, cancel := context.WithTimeout(ctx, config.PCMConversionTimeout)
	defer cancel()

	err := subprocess.RunWithTimeout(ctx, func() *ffmpeg.Stream {
		return ffmpeg.Input(mp3Path).Output(pcmPath, ffmpeg.KwArgs{
			"f":   "s16le",
			"ac":  1,
			"ar":  16000,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to convert %s to PCM: %w", mp3Path, err)
	}
	return nil
}

// ExtractChunk pulls [start, start+duration) out of the preprocessed MP3
// into a short file for submission to the speech API (§4.3.3). Bounded by
// config.ChunkExtractionTimeout.
func ExtractChunk(ctx context.Context, mp3Path, outputPath string, start, duration float64) error {
	ctx, cancel := context.WithTimeout(ctx, config.ChunkExtractionTimeout)
	defer cancel()

	err := subprocess.RunWithTimeout(ctx, func() *ffmpeg.Stream {
		return ffmpeg.Input(mp3Path, ffmpeg.KwArgs{"ss": start}).
			Output(outputPath, ffmpeg.KwArgs{
				"t":   duration,
				"c":   "copy",
			})
	})
	if err != nil {
		return fmt.Errorf("failed to extract chunk [%.2f,%.2f) from %s: %w", start, start+duration, mp3Path, err)
	}
	return nil
}
