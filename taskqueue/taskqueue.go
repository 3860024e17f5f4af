// Package taskqueue dispatches batch-continuation tasks to the worker's
// own /process-ocr-batch endpoint (§4.5.3, §6). Grounded on the teacher's
// clients/callback_client.go shape: a retryablehttp client configured with
// bounded retries and a metrics.MonitorRequest-wrapped Do, generalized
// from "send a transcode status callback" to "enqueue a task with a
// schedule delay and a retry-count header the receiver can read back".
package taskqueue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/videoreport/api/metrics"
)

// RetryCountHeader is read by the receiving handler to implement the
// 3-retries-then-fail rule in §4.5.3 step 4.
const RetryCountHeader = "X-CloudTasks-TaskRetryCount"

// TaskQueue enqueues a JSON-serializable payload for later delivery to a
// worker endpoint. The real implementation is a fire-and-forget HTTP POST
// (the queue's response body is ignored per §6; only the status code
// determines whether the dispatch itself should be retried at enqueue
// time). The payload type varies by target path: /process-task takes the
// same shape as /process (a job.Job-equivalent intake request);
// /process-ocr-batch takes a job.BatchTask.
type TaskQueue interface {
	Enqueue(ctx context.Context, path string, payload interface{}, scheduleDelay time.Duration) error
}

// HTTPTaskQueue posts directly to the worker's own base URL. It is not a
// real distributed task queue (there is no separate broker in this
// deployment shape): it emulates one by sleeping `scheduleDelay` before
// dispatch and relying on the target handler's own idempotent checkpoint
// resumption (§4.5.3) to make redelivery safe.
type HTTPTaskQueue struct {
	client    *http.Client
	baseURL   string
	authToken string
}

func NewHTTPTaskQueue(baseURL, authToken string) *HTTPTaskQueue {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = metrics.HttpRetryHook
	rc.HTTPClient = &http.Client{Timeout: 10 * time.Second}

	return &HTTPTaskQueue{
		client:    rc.StandardClient(),
		baseURL:   baseURL,
		authToken: authToken,
	}
}

func (q *HTTPTaskQueue) Enqueue(ctx context.Context, path string, task interface{}, scheduleDelay time.Duration) error {
	go func() {
		if scheduleDelay > 0 {
			<-time.After(scheduleDelay)
		}

		payload, err := json.Marshal(task)
		if err != nil {
			return
		}
		body := base64.StdEncoding.EncodeToString(payload)

		req, err := http.NewRequest(http.MethodPost, q.baseURL+path, bytes.NewReader([]byte(body)))
		if err != nil {
			return
		}
		req.Header.Set("Authorization", "Bearer "+q.authToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RetryCountHeader, "0")

		resp, err := metrics.MonitorRequest(metrics.Metrics.TaskQueueClient, q.client, req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
	}()
	return nil
}

// DecodeTaskBody reverses HTTPTaskQueue.Enqueue's base64 wrapping. Handlers
// call this on the raw request body before unmarshalling into BatchTask.
func DecodeTaskBody(raw []byte) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to base64-decode task body: %w", err)
	}
	return decoded, nil
}

// FakeTaskQueue runs tasks synchronously in-process; used by tests and by
// the godog harness to avoid a real network hop.
type FakeTaskQueue struct {
	Dispatch func(ctx context.Context, path string, task interface{}) error
}

func (f *FakeTaskQueue) Enqueue(ctx context.Context, path string, task interface{}, _ time.Duration) error {
	if f.Dispatch == nil {
		return nil
	}
	return f.Dispatch(ctx, path, task)
}
