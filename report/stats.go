package report

import (
	"time"

	"github.com/videoreport/api/job"
)

// VideoMetadata is the subset of probed source-file data the Statistics
// sheet reports alongside the run's own counters (§4.6).
type VideoMetadata struct {
	Width, Height int64
	AspectRatio   float64
	DurationSec   float64
}

// DetectionParams records the tuning constants actually in force for the
// run, since they're worker config and could change between deployments
// (§4.6's "detection parameters actually used" block).
type DetectionParams struct {
	DetectionMode        job.DetectionMode
	MinSceneDurationSec  float64
	MinSceneIntervalSec  float64
	SceneCutThresholds   []float64
	MaxChunkDurationSec  float64
	MinSpeechDurationSec float64
}

// Stats is everything the Statistics sheet renders.
type Stats struct {
	Video       VideoMetadata
	Params      DetectionParams
	Metadata    job.ProcessingMetadata
	GeneratedAt time.Time
	Warnings    []string
}
