package video

import (
	"context"
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"github.com/videoreport/api/config"
	"github.com/videoreport/api/subprocess"
)

// ExtractFrame grabs a single PNG frame at timestampSec, scaled to
// config.FrameWidthPx x config.FrameHeightPx (§4.4's "extract mid-point
// frame resized to 1280x720"), writing to outputPath.
func ExtractFrame(ctx context.Context, sourcePath string, timestampSec float64, outputPath string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, config.FrameExtractionTimeout)
	defer cancel()

	return subprocess.RunWithTimeout(timeoutCtx, func() *ffmpeg.Stream {
		return ffmpeg.Input(sourcePath, ffmpeg.KwArgs{"ss": timestampSec}).
			Output(outputPath, ffmpeg.KwArgs{
				"vframes": 1,
				"vf":      fmt.Sprintf("scale=%d:%d", config.FrameWidthPx, config.FrameHeightPx),
			})
	})
}
