// Package job holds the data model shared by every stage of the pipeline:
// the immutable Job identity, the mutable JobStatus row, the Checkpoint and
// BatchTask records that drive batch-chained OCR, and the per-scene/
// per-segment value types produced along the way (§3).
package job

import (
	"fmt"
	"time"
)

type DetectionMode string

const (
	DetectionModeStandard DetectionMode = "standard"
	DetectionModeEnhanced DetectionMode = "enhanced"
)

// Job is the immutable identity of one processing request. It is never
// mutated after intake validates the request; retention/destruction is the
// status store's concern, not this package's.
type Job struct {
	UploadID      string
	UserID        string
	SourceKey     string
	FileName      string
	DetectionMode DetectionMode
	DataConsent   bool
	CreatedAt     time.Time
}

type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

type Phase int

const (
	PhaseAudio  Phase = 1
	PhaseVisual Phase = 2
	PhaseReport Phase = 3
)

type PhaseStatus string

const (
	PhaseStatusWaiting    PhaseStatus = "waiting"
	PhaseStatusInProgress PhaseStatus = "in_progress"
	PhaseStatusCompleted  PhaseStatus = "completed"
	PhaseStatusSkipped    PhaseStatus = "skipped"
)

// Stage is the fine-grained, closed-enum label shown to the user (§6).
type Stage string

const (
	StageDownloading       Stage = "downloading"
	StageCompressing       Stage = "compressing"
	StageMetadata          Stage = "metadata"
	StageAudio             Stage = "audio"
	StageAudioSkipped      Stage = "audio_skipped"
	StageVADWhisper        Stage = "vad_whisper"
	StageLuminanceDetect   Stage = "luminance_detection"
	StageTextStabilization Stage = "text_stabilization"
	StageSceneDetection    Stage = "scene_detection"
	StageFrameExtraction   Stage = "frame_extraction"
	StageMultiFrameOCR     Stage = "multi_frame_ocr"
	StageOCRProcessing     Stage = "ocr_processing"
	StageOCRCompleted      Stage = "ocr_completed"
	StageBatchProcessing   Stage = "batch_processing"
	StageNarrationMapping  Stage = "narration_mapping"
	StageExcelGeneration   Stage = "excel_generation"
	StageUploadResult      Stage = "upload_result"
	StageCompleted         Stage = "completed"
)

// ProcessingMetadata is the `metadata` JSON column, written once at
// completion (§3).
type ProcessingMetadata struct {
	DurationSec               float64       `json:"duration_sec"`
	SegmentCount              int           `json:"segment_count"`
	OCRResultCount            int           `json:"ocr_result_count"`
	TranscriptionLengthChars  int           `json:"transcription_length_chars"`
	TotalScenes               int           `json:"total_scenes"`
	ScenesWithOCR             int           `json:"scenes_with_ocr"`
	ScenesWithNarration       int           `json:"scenes_with_narration"`
	DetectionMode             DetectionMode `json:"detection_mode"`
	ResultR2Key               string        `json:"result_r2_key,omitempty"`
}

// JobStatus is the mutable row, one-to-one with Job (§3). Field names use
// snake_case to match the database columns (§6); the wire layer converts to
// camelCase at the handler boundary, never inside this struct.
type JobStatus struct {
	UploadID               string              `json:"upload_id"`
	Status                 Status              `json:"status"`
	Progress               int                 `json:"progress"`
	Phase                  Phase               `json:"phase"`
	PhaseProgress          int                 `json:"phase_progress"`
	PhaseStatus            PhaseStatus         `json:"phase_status"`
	Stage                  Stage               `json:"stage"`
	SubTask                string              `json:"sub_task"`
	EstimatedTimeRemaining string              `json:"estimated_time_remaining"`
	StartedAt              time.Time           `json:"started_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
	ResultKey              string              `json:"result_key,omitempty"`
	Metadata               *ProcessingMetadata `json:"metadata,omitempty"`
	Error                  string              `json:"error,omitempty"`
}

// IsStale reports whether a processing job's updated_at has not advanced
// within the staleness threshold (§4.9).
func (s JobStatus) IsStale(now time.Time, threshold time.Duration) bool {
	return s.Status == StatusProcessing && now.Sub(s.UpdatedAt) > threshold
}

type CheckpointStep string

const (
	CheckpointStepDownload     CheckpointStep = "download"
	CheckpointStepAudio        CheckpointStep = "audio"
	CheckpointStepSceneDetect  CheckpointStep = "scene_detect"
	CheckpointStepOCR          CheckpointStep = "ocr"
	CheckpointStepExcel        CheckpointStep = "excel"
)

// Checkpoint is per-job durable state recording which OCR scene indices are
// complete, enabling mid-job resumption on retry (§3).
type Checkpoint struct {
	UploadID           string
	CurrentStep        CheckpointStep
	TotalScenes        int
	CompletedOCRScenes map[int]bool
	RetryCount         int
	UpdatedAt          time.Time
	ExpiresAt          time.Time
}

// BatchTask is the payload of a task-queue message for OCR continuation
// (§3, §4.5.3).
type BatchTask struct {
	UploadID        string  `json:"upload_id"`
	UserID          string  `json:"user_id"`
	BatchIndex      int     `json:"batch_index"`
	TotalBatches    int     `json:"total_batches"`
	BatchSize       int     `json:"batch_size"`
	StartSceneIndex int     `json:"start_scene_index"`
	EndSceneIndex   int     `json:"end_scene_index"`
	VideoKey        string  `json:"video_key"`
	VideoDuration   float64 `json:"video_duration"`
	IsLastBatch     bool    `json:"is_last_batch"`
}

// Scene is a contiguous time interval between two detected cuts (§3,
// GLOSSARY). ScreenshotPath and the derived text fields are transient:
// discarded after report assembly.
type Scene struct {
	SceneNumber    int
	StartTime      float64
	EndTime        float64
	ScreenshotPath string
	OCRText        string
	NarrationText  string
}

func (s Scene) MidTime() float64 {
	return (s.StartTime + s.EndTime) / 2
}

// Timecode renders StartTime as HH:MM:SS.
func (s Scene) Timecode() string {
	total := int(s.StartTime)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// TranscriptSegment is one fragment of recovered narration, with an
// absolute timestamp already shifted from chunk-local time (§3, §4.3.3).
type TranscriptSegment struct {
	Timestamp  float64
	Duration   float64
	Text       string
	Confidence float64
	ChunkIndex int
}

// VoiceSegment is a speech-probable region found by VAD (§3, §4.3.2).
// Invariant: EndTime > StartTime, and segments passed to the packer are
// non-overlapping and timestamp-ordered.
type VoiceSegment struct {
	StartTime  float64
	EndTime    float64
	Confidence float64
}

func (v VoiceSegment) Duration() float64 {
	return v.EndTime - v.StartTime
}
