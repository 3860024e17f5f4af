package steps

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeTaskQueue sits in front of the worker's own /process-task and
// /process-ocr-batch endpoints, forwarding every call through while
// counting them per path. The worker's -task-queue-base-url points here
// instead of at itself, the way production points it at Cloud Tasks —
// this fixture stands in for the task queue, letting S4's batch-
// continuation scenario assert "exactly 3 /process-ocr-batch calls"
// without instrumenting the worker binary itself.
type FakeTaskQueue struct {
	server *httptest.Server
	target string

	mu     sync.Mutex
	counts map[string]int
}

func NewFakeTaskQueue(workerBaseURL string) *FakeTaskQueue {
	q := &FakeTaskQueue{target: workerBaseURL, counts: map[string]int{}}
	q.server = httptest.NewServer(http.HandlerFunc(q.handle))
	return q
}

func (q *FakeTaskQueue) URL() string { return q.server.URL }
func (q *FakeTaskQueue) Close()      { q.server.Close() }

func (q *FakeTaskQueue) CallCount(path string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[path]
}

func (q *FakeTaskQueue) handle(w http.ResponseWriter, r *http.Request) {
	q.mu.Lock()
	q.counts[r.URL.Path]++
	q.mu.Unlock()

	req, err := http.NewRequest(r.Method, q.target+r.URL.Path, r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	req.Header = r.Header.Clone()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
