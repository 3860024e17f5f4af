package config

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Version, BuildTime and Commit are set via -ldflags at build time (the
// teacher's own release pipeline convention); empty at test time.
var (
	Version   string
	BuildTime string
	Commit    string
)

// Clock lets staleness checks, checkpoint expiry, and rate-limiter windows
// be driven by a fake clock in tests instead of real sleeps.
var Clock clock.Clock = clock.New()

// NowMillis returns the current time as epoch milliseconds, driven by Clock.
func NowMillis() int64 {
	return Clock.Now().UnixMilli()
}

// Path to the ffmpeg/ffprobe binaries the codec subprocess shells out to.
var PathCodecDir = "/usr/local/bin"

// Download / probe / subprocess timeouts (§5, "Cancellation").
const (
	DownloadTimeout           = 300 * time.Second
	PCMConversionTimeout      = 120 * time.Second
	AudioExtractionTimeout    = 300 * time.Second
	AudioPreprocessingTimeout = 300 * time.Second
	ChunkExtractionTimeout    = 30 * time.Second
)

// Staleness threshold a reader uses to treat a "processing" job as dead
// (§4.2, §4.9).
const StalenessThreshold = 5 * time.Minute

// Longest time the progress reporter lets pass without a status write while
// a job runs: once this elapses with no write, it touches updated_at (§4.2).
const HeartbeatInterval = 60 * time.Second

// Progress only advances a status write when it crosses this threshold
// within a phase, or when stage/sub_task changes (§4.2).
const MinProgressDelta = 2

// Phase progress bounds (§4.2).
const (
	Phase1ProgressStart = 0
	Phase1ProgressEnd   = 45
	Phase2ProgressStart = 45
	Phase2ProgressEnd   = 85
	Phase3ProgressStart = 85
	Phase3ProgressEnd   = 100
)

// Download progress is interpolated into this sub-range of phase 1 (§4.2).
const (
	DownloadProgressStart = 10
	DownloadProgressEnd   = 20
)

// VAD tuning (§4.3.2).
const (
	MinSpeechDuration = 250 * time.Millisecond
	MaxChunkDuration  = 10 * time.Second
)

// Scene detection tuning (§4.4).
const (
	MinSceneInterval = 3 * time.Second
	MinSceneDuration = 2 * time.Second
)
const (
	SceneCutThresholdLow    = 0.03
	SceneCutThresholdMedium = 0.05
	SceneCutThresholdHigh   = 0.10
)

// Scene detection / frame extraction subprocess timeouts (§4.4, §5
// "Cancellation").
const (
	SceneDetectionTimeout  = 180 * time.Second
	FrameExtractionTimeout = 30 * time.Second
	LuminanceTimeout       = 120 * time.Second
	StabilityTimeout       = 120 * time.Second
)

// Extracted frame resolution (§4.4).
const (
	FrameWidthPx  = 1280
	FrameHeightPx = 720
)

// Persistent-overlay filter tuning (§4.5.1).
const (
	PersistentOverlayMinScenes = 3
	PersistentOverlayMinRatio  = 0.5
)

// OCR batching (§4.5.3, §9 open question — kept as the spec's load-bearing
// constants, not re-derived).
const (
	DefaultBatchSize  = 100
	BatchProgressCap  = 89
	BatchProgressBase = 25
	MaxBatchRetries   = 3
)

// The maximum allowed input file size.
const MaxInputFileSizeBytes = 30 * 1024 * 1024 * 1024 // 30 GiB

// Report rendering constants (§4.6).
const (
	ScreenshotWidthPx = 320
	EMUPerPixel       = 9525
)
