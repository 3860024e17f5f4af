package video

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/subprocess"
)

// luminanceJumpThreshold is the minimum average-luma delta (on ffmpeg
// signalstats' 0-255 YAVG scale) between consecutive sampled frames that
// counts as a fade/dissolve transition (§4.4 enhanced mode).
const luminanceJumpThreshold = 15.0

// luminanceSampleFPS is how densely frames are sampled for the luma curve;
// higher catches faster transitions at proportionally higher subprocess cost.
const luminanceSampleFPS = 2.0

var yavgPattern = regexp.MustCompile(`lavfi\.signalstats\.YAVG=([0-9]+\.?[0-9]*)`)
var ptsTimePattern = regexp.MustCompile(`pts_time:([0-9]+\.?[0-9]*)`)

// LuminanceTransitions samples average frame luminance at a fixed rate and
// returns the midpoint timestamp of every jump exceeding
// luminanceJumpThreshold — additional scene-boundary candidates seeded for
// enhanced detection mode (§4.4) to catch fades and dissolves that a pure
// pixel-difference scene-cut filter misses.
func LuminanceTransitions(ctx context.Context, sourcePath string) ([]float64, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, config.LuminanceTimeout)
	defer cancel()

	stderr, err := subprocess.RunCapture(timeoutCtx, func() *ffmpeg.Stream {
		return ffmpeg.Input(sourcePath).Output("-", ffmpeg.KwArgs{
			"vf": fmt.Sprintf("fps=%f,signalstats,metadata=print", luminanceSampleFPS),
			"f":  "null",
			"an": "",
		})
	})
	if err != nil {
		return nil, fmt.Errorf("luminance sampling: %w", err)
	}

	times := extractFloats(ptsTimePattern, stderr)
	luma := extractFloats(yavgPattern, stderr)
	n := len(times)
	if len(luma) < n {
		n = len(luma)
	}

	var transitions []float64
	for i := 1; i < n; i++ {
		if delta := luma[i] - luma[i-1]; abs(delta) >= luminanceJumpThreshold {
			transitions = append(transitions, (times[i]+times[i-1])/2)
		}
	}
	return transitions, nil
}

// textStabilityThreshold is deliberately more sensitive than the standard
// scene-cut thresholds (§4.4): it only needs to catch change within the
// caption region, not the whole frame, so a small pixel delta there is
// already significant.
const textStabilityThreshold = 0.015

// textRegionCrop restricts detection to the bottom 20% / center 30% of the
// frame, matching the region the OCR prompt itself is scoped to (ocr.Prompt).
const textRegionCrop = "crop=iw*0.3:ih*0.2:iw*0.35:ih*0.8"

// TextStabilityPoints detects change localized to the subtitle/caption
// region independent of whole-frame scene cuts (§4.4 enhanced mode): a
// caption can appear or change while the background video stays visually
// static, which whole-frame scene-cut detection would miss entirely.
func TextStabilityPoints(ctx context.Context, sourcePath string) ([]float64, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, config.StabilityTimeout)
	defer cancel()

	stderr, err := subprocess.RunCapture(timeoutCtx, func() *ffmpeg.Stream {
		return ffmpeg.Input(sourcePath).Output("-", ffmpeg.KwArgs{
			"vf": fmt.Sprintf("%s,select='gt(scene,%f)',showinfo", textRegionCrop, textStabilityThreshold),
			"f":  "null",
			"an": "",
		})
	})
	if err != nil {
		return nil, fmt.Errorf("text-stability sampling: %w", err)
	}
	return extractFloats(ptsTimePattern, stderr), nil
}

func extractFloats(pattern *regexp.Regexp, text string) []float64 {
	matches := pattern.FindAllStringSubmatch(text, -1)
	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	return values
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
