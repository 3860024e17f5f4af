package steps

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	workerAddr  = "127.0.0.1:18989"
	workerToken = "e2e-test-secret"
)

// StartApp launches the worker binary built by cucumber_test.go's init(),
// wired to whichever fakes the scenario already brought up. Mirrors the
// reference's StartApp: a real binary, a real HTTP server, logs to a file
// instead of the test process's stdout.
func (s *StepContext) StartApp() error {
	s.WorkerToken = workerToken
	s.BaseURL = "http://" + workerAddr
	s.TaskQueue = NewFakeTaskQueue(s.BaseURL)

	args := []string{
		"-http-addr=" + workerAddr,
		"-worker-secret=" + workerToken,
		"-task-queue-base-url=" + s.TaskQueue.URL(),
		"-object-store-bucket=test-bucket",
		"-object-store-access-key=test",
		"-object-store-secret=test",
		"-object-store-endpoint=" + s.ObjectStore.URL(),
		"-vision-api-endpoint=" + s.Vision.URL(),
		"-vision-api-key=test",
		"-speech-api-endpoint=" + s.Speech.URL(),
		"-speech-api-key=test",
		"-dev", // falls back to an in-memory status store; no status-store-url needed for the harness
	}
	if s.VisionFallback != nil {
		args = append(args,
			"-vision-api-endpoint-fallback="+s.VisionFallback.URL(),
			"-vision-api-key-fallback=test",
		)
	}

	s.App = exec.Command("./app", args...)
	outfile, err := os.Create(path.Join("logs", "app.log"))
	if err != nil {
		return err
	}
	defer outfile.Close()
	s.App.Stdout = outfile
	s.App.Stderr = outfile
	if err := s.App.Start(); err != nil {
		return err
	}

	return waitForStartup(s.BaseURL + "/health")
}

// StopApp kills the worker process between scenarios, used by both a
// regular ctx.After cleanup and S6's SIGTERM-then-resubmit scenario.
func (s *StepContext) StopApp() error {
	if s.App == nil || s.App.Process == nil {
		return nil
	}
	if err := s.App.Process.Kill(); err != nil {
		return err
	}
	_ = s.App.Wait()
	s.App = nil
	return nil
}

// RestartApp brings the worker back up against the same fakes and the same
// -task-queue-base-url after S6 sends it SIGTERM, exercising recovery from
// the checkpoint a fresh process reads on startup (§4.10). Unlike StartApp
// it reuses the existing FakeTaskQueue instead of building a second one.
func (s *StepContext) RestartApp() error {
	if s.App != nil && s.App.Process != nil {
		_ = s.App.Process.Kill()
		_ = s.App.Wait()
		s.App = nil
	}

	args := []string{
		"-http-addr=" + workerAddr,
		"-worker-secret=" + workerToken,
		"-task-queue-base-url=" + s.TaskQueue.URL(),
		"-object-store-bucket=test-bucket",
		"-object-store-access-key=test",
		"-object-store-secret=test",
		"-object-store-endpoint=" + s.ObjectStore.URL(),
		"-vision-api-endpoint=" + s.Vision.URL(),
		"-vision-api-key=test",
		"-speech-api-endpoint=" + s.Speech.URL(),
		"-speech-api-key=test",
		"-dev",
	}
	if s.VisionFallback != nil {
		args = append(args,
			"-vision-api-endpoint-fallback="+s.VisionFallback.URL(),
			"-vision-api-key-fallback=test",
		)
	}

	s.App = exec.Command("./app", args...)
	outfile, err := os.OpenFile(path.Join("logs", "app.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer outfile.Close()
	s.App.Stdout = outfile
	s.App.Stderr = outfile
	if err := s.App.Start(); err != nil {
		return err
	}

	return waitForStartup(s.BaseURL + "/health")
}

// SendSIGTERM delivers a graceful-shutdown signal instead of killing the
// process outright, exercising pipeline.WatchSignals (§4.10).
func (s *StepContext) SendSIGTERM() error {
	if s.App == nil || s.App.Process == nil {
		return fmt.Errorf("worker is not running")
	}
	return s.App.Process.Signal(syscall.SIGTERM)
}

func waitForStartup(url string) error {
	retry := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 25)
	return backoff.Retry(func() error {
		resp, err := http.Get(url)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}, retry)
}
