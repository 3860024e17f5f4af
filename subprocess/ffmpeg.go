// Package subprocess wraps the codec CLI (ffmpeg) the same way the teacher
// wraps it in video/segment.go and thumbnails/thumbnails.go: build the
// command with u2takey/ffmpeg-go's fluent KwArgs builder, capture stderr
// into a buffer for error messages. LogOutputs (logging.go) is a separate
// helper for streaming a command's output to logs; these runners do not
// call it. RunWithTimeout adds the bounded
// subprocess lifetime §5 requires (SIGKILL on expiry) that the teacher's
// call sites didn't need, since none of its ffmpeg invocations had a
// worker-enforced timeout.
package subprocess

import (
	"bytes"
	"context"
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// RunWithTimeout compiles an ffmpeg command built via build() and runs it
// under ctx, which callers should derive with a timeout matching the
// operation (download/extraction/preprocessing/chunk-extraction timeouts
// in config.go). Cancelling ctx sends SIGKILL to the subprocess: the wait
// loop below calls cmd.Process.Kill when ctx is done.
func RunWithTimeout(ctx context.Context, build func() *ffmpeg.Stream) error {
	var stderr bytes.Buffer
	cmd := build().OverWriteOutput().WithErrorOutput(&stderr).Compile()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Run()
	}()

	select {
	case <-runCtx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return fmt.Errorf("ffmpeg command timed out: %w", runCtx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("ffmpeg command failed [%s]: %w", stderr.String(), err)
		}
		return nil
	}
}

// RunCapture is RunWithTimeout's sibling for call sites that need the
// subprocess's stderr even on success — scene-cut and luminance detection
// read their results back out of ffmpeg's `showinfo`/`signalstats` filter
// logging rather than stdout, the same way the teacher's video/clip.go
// captures stderr into its own buffer for error reporting.
func RunCapture(ctx context.Context, build func() *ffmpeg.Stream) (stderr string, err error) {
	var buf bytes.Buffer
	cmd := build().OverWriteOutput().WithErrorOutput(&buf).Compile()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Run()
	}()

	select {
	case <-runCtx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return buf.String(), fmt.Errorf("ffmpeg command timed out: %w", runCtx.Err())
	case runErr := <-done:
		if runErr != nil {
			return buf.String(), fmt.Errorf("ffmpeg command failed [%s]: %w", buf.String(), runErr)
		}
		return buf.String(), nil
	}
}
