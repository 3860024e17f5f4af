package video

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/job"
	"github.com/videoreport/api/subprocess"
)

// cutThresholds are the multi-pass scene-cut thresholds (§4.4): a lower
// threshold finds more candidate cuts (including false positives from
// camera motion), a higher one finds only the most confident cuts.
// Each detection carries confidence 1; merging nearby cuts keeps the
// maximum confidence of the merged group.
var cutThresholds = []float64{
	config.SceneCutThresholdLow,
	config.SceneCutThresholdMedium,
	config.SceneCutThresholdHigh,
}

var showinfoTime = regexp.MustCompile(`pts_time:([0-9]+\.?[0-9]*)`)

// cut is a scene-cut candidate before the merge/collapse/filter passes.
type cut struct {
	time       float64
	confidence int
}

// DetectScenes runs multi-pass scene-cut detection against sourcePath and
// returns the accepted scene list (§4.4, standard mode): cuts found at any
// threshold are merged keeping the max confidence per timestamp, cuts
// closer than MinSceneInterval are collapsed to the higher-confidence one,
// and scenes shorter than MinSceneDuration are dropped by merging into the
// preceding scene — numbering stays sequential over what remains.
func DetectScenes(ctx context.Context, sourcePath string, duration float64) ([]job.Scene, error) {
	allCuts, err := standardCuts(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	merged := mergeCuts(allCuts)
	collapsed := collapseCloseCuts(merged, config.MinSceneInterval.Seconds())
	return buildScenes(collapsed, duration, config.MinSceneDuration.Seconds()), nil
}

// DetectScenesEnhanced runs the standard multi-pass scene-cut detection
// plus luminance-transition and text-stability detection (§4.4 enhanced
// mode): their hits are seeded in as additional cut candidates alongside
// the standard passes, then merged/collapsed/filtered exactly the same way.
func DetectScenesEnhanced(ctx context.Context, sourcePath string, duration float64) ([]job.Scene, error) {
	allCuts, err := standardCuts(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	luminance, err := LuminanceTransitions(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("enhanced scene detection: %w", err)
	}
	for _, t := range luminance {
		allCuts = append(allCuts, cut{time: t, confidence: 1})
	}

	stability, err := TextStabilityPoints(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("enhanced scene detection: %w", err)
	}
	for _, t := range stability {
		allCuts = append(allCuts, cut{time: t, confidence: 1})
	}

	merged := mergeCuts(allCuts)
	collapsed := collapseCloseCuts(merged, config.MinSceneInterval.Seconds())
	return buildScenes(collapsed, duration, config.MinSceneDuration.Seconds()), nil
}

func standardCuts(ctx context.Context, sourcePath string) ([]cut, error) {
	var allCuts []cut
	for _, threshold := range cutThresholds {
		times, err := detectCutsAtThreshold(ctx, sourcePath, threshold)
		if err != nil {
			return nil, fmt.Errorf("scene-cut detection at threshold %.2f: %w", threshold, err)
		}
		for _, t := range times {
			allCuts = append(allCuts, cut{time: t, confidence: 1})
		}
	}
	return allCuts, nil
}

// detectCutsAtThreshold shells out to ffmpeg's scene-change filter at one
// threshold and parses the cut timestamps back out of showinfo's stderr
// logging — there is no machine-readable output mode for this filter pair.
func detectCutsAtThreshold(ctx context.Context, sourcePath string, threshold float64) ([]float64, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, config.SceneDetectionTimeout)
	defer cancel()

	stderr, err := subprocess.RunCapture(timeoutCtx, func() *ffmpeg.Stream {
		return ffmpeg.Input(sourcePath).Output("-", ffmpeg.KwArgs{
			"vf": fmt.Sprintf("select='gt(scene,%f)',showinfo", threshold),
			"f":  "null",
			"an": "",
		})
	})
	if err != nil {
		return nil, err
	}
	return parseShowinfoTimestamps(stderr), nil
}

func parseShowinfoTimestamps(stderr string) []float64 {
	matches := showinfoTime.FindAllStringSubmatch(stderr, -1)
	times := make([]float64, 0, len(matches))
	for _, m := range matches {
		t, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		times = append(times, t)
	}
	return times
}

// mergeCuts collapses near-identical timestamps detected across passes
// (within a small epsilon of floating point / frame-boundary jitter),
// keeping the highest confidence seen for each cluster.
func mergeCuts(cuts []cut) []cut {
	if len(cuts) == 0 {
		return nil
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].time < cuts[j].time })

	const epsilon = 0.1
	var merged []cut
	for _, c := range cuts {
		if len(merged) > 0 && c.time-merged[len(merged)-1].time <= epsilon {
			if c.confidence > merged[len(merged)-1].confidence {
				merged[len(merged)-1].confidence = c.confidence
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// collapseCloseCuts implements §4.4's "consecutive cuts closer than
// min_scene_interval are collapsed to the higher-confidence one."
func collapseCloseCuts(cuts []cut, minInterval float64) []cut {
	if len(cuts) == 0 {
		return nil
	}
	var collapsed []cut
	for _, c := range cuts {
		if len(collapsed) > 0 && c.time-collapsed[len(collapsed)-1].time < minInterval {
			if c.confidence > collapsed[len(collapsed)-1].confidence {
				collapsed[len(collapsed)-1] = c
			}
			continue
		}
		collapsed = append(collapsed, c)
	}
	return collapsed
}

// buildScenes turns cut timestamps into scene intervals spanning [0,
// duration], dropping scenes shorter than minDuration by merging them into
// the preceding scene (§4.4) so scene_number stays sequential with no gaps.
func buildScenes(cuts []cut, duration float64, minDuration float64) []job.Scene {
	boundaries := make([]float64, 0, len(cuts)+2)
	boundaries = append(boundaries, 0)
	for _, c := range cuts {
		if c.time > 0 && c.time < duration {
			boundaries = append(boundaries, c.time)
		}
	}
	boundaries = append(boundaries, duration)

	var scenes []job.Scene
	for i := 0; i < len(boundaries)-1; i++ {
		start, end := boundaries[i], boundaries[i+1]
		if len(scenes) > 0 && end-start < minDuration {
			scenes[len(scenes)-1].EndTime = end
			continue
		}
		scenes = append(scenes, job.Scene{StartTime: start, EndTime: end})
	}

	for i := range scenes {
		scenes[i].SceneNumber = i + 1
	}
	return scenes
}
