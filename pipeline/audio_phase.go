package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/videoreport/api/audio"
	"github.com/videoreport/api/config"
	xerrors "github.com/videoreport/api/errors"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/log"
)

// runAudioPhase implements §4.3: extraction, best-effort BGM suppression,
// VAD-gated chunking, and transcription fan-out. A container with no audio
// track transitions straight to skipped with an empty transcript.
func (o *Orchestrator) runAudioPhase(ctx context.Context, st *jobState) error {
	st.status.Phase = job.PhaseAudio
	st.status.PhaseStatus = job.PhaseStatusInProgress

	if !st.video.HasAudio() {
		st.status.Stage = job.StageAudioSkipped
		st.status.PhaseStatus = job.PhaseStatusSkipped
		st.status.Progress = config.Phase1ProgressEnd
		st.status.UpdatedAt = config.Clock.Now()
		st.transcript = nil
		return nil
	}

	st.status.Stage = job.StageAudio
	st.status.Progress = phaseProgress(config.Phase1ProgressStart, config.Phase1ProgressEnd, 10)
	st.status.UpdatedAt = config.Clock.Now()

	mp3Path := filepath.Join(st.tempDir, "audio.mp3")
	if err := audio.Extract(ctx, st.sourceVid, mp3Path); err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrAudioExtractFailed, err)
	}

	preprocessed := mp3Path
	suppressedPath := filepath.Join(st.tempDir, "audio_suppressed.mp3")
	if err := audio.SuppressBGM(ctx, mp3Path, suppressedPath); err != nil {
		log.LogError(st.job.UploadID, "BGM suppression failed, falling back to unprocessed audio", err)
	} else {
		preprocessed = suppressedPath
	}

	st.status.Stage = job.StageVADWhisper
	st.status.Progress = phaseProgress(config.Phase1ProgressStart, config.Phase1ProgressEnd, 40)
	st.status.UpdatedAt = config.Clock.Now()

	pcmPath := filepath.Join(st.tempDir, "audio.pcm")
	if err := audio.ToPCM(ctx, preprocessed, pcmPath); err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrAudioExtractFailed, err)
	}
	pcm, err := os.ReadFile(pcmPath)
	if err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrAudioExtractFailed, err)
	}

	voiceSegments, err := o.VAD.Detect(pcm)
	if err != nil {
		return xerrors.NewJobFatalError(xerrors.ErrAudioExtractFailed, err)
	}
	chunks := audio.PackChunks(voiceSegments)

	voiceRatio := audio.VoiceRatio(voiceSegments, st.video.Duration)
	log.Log(st.job.UploadID, "voice activity detected", "voice_ratio", voiceRatio, "chunk_count", len(chunks))

	transcribeChunks := make([]audio.ChunkAudio, 0, len(chunks))
	for i, c := range chunks {
		chunkPath := filepath.Join(st.tempDir, "chunk_"+strconv.Itoa(i)+".mp3")
		if err := audio.ExtractChunk(ctx, preprocessed, chunkPath, c.StartTime, c.EndTime-c.StartTime); err != nil {
			log.LogError(st.job.UploadID, "failed to extract transcription chunk, skipping", err, "chunk_index", i)
			continue
		}
		data, err := os.ReadFile(chunkPath)
		if err != nil {
			log.LogError(st.job.UploadID, "failed to read transcription chunk, skipping", err, "chunk_index", i)
			continue
		}
		transcribeChunks = append(transcribeChunks, audio.NewChunkAudio(c.StartTime, data))
	}

	st.status.Stage = job.StageVADWhisper
	st.status.Progress = phaseProgress(config.Phase1ProgressStart, config.Phase1ProgressEnd, 70)
	st.status.UpdatedAt = config.Clock.Now()

	st.transcript = audio.TranscribeChunks(ctx, o.SpeechLimiter, o.Speech, transcribeChunks)

	st.status.Progress = config.Phase1ProgressEnd
	st.status.PhaseStatus = job.PhaseStatusCompleted
	st.status.UpdatedAt = config.Clock.Now()
	return nil
}
