package steps

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FakeObjectStore is a minimal S3-compatible stand-in: PUT stores the
// request body under its path, GET serves it back, DELETE removes it. It
// exists so the worker binary under test can point -object-store-endpoint
// at a real (if tiny) HTTP server instead of a live S3 account, the same
// role the reference's StartObjectStore gives a built minio binary. This
// module's own ObjectStore dropped the minio-go/madmin-go driver in favor
// of aws-sdk-go-v2 directly (see DESIGN.md); reintroducing them here as a
// test-only dependency would contradict that, so the fixture is a plain
// net/http handler instead of a second real S3 implementation.
type FakeObjectStore struct {
	server *httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
}

func NewFakeObjectStore() *FakeObjectStore {
	s := &FakeObjectStore{objects: map[string][]byte{}}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *FakeObjectStore) URL() string { return s.server.URL }

func (s *FakeObjectStore) Close() { s.server.Close() }

// Seed writes an object directly, bypassing HTTP, so a scenario can stage a
// fixture under a known key before submitting /process.
func (s *FakeObjectStore) Seed(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

// Get reads an object directly, bypassing HTTP, so a scenario can fetch the
// worker's result artifact for inspection once a job completes.
func (s *FakeObjectStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

func (s *FakeObjectStore) handle(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	if idx := strings.Index(key, "/"); idx >= 0 {
		key = key[idx+1:] // drop the leading {bucket}/ path-style segment
	}

	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.mu.Lock()
		s.objects[key] = body
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.mu.Lock()
		data, ok := s.objects[key]
		s.mu.Unlock()
		if !ok {
			http.Error(w, "NoSuchKey", http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	case http.MethodDelete:
		s.mu.Lock()
		delete(s.objects, key)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case http.MethodHead:
		s.mu.Lock()
		_, ok := s.objects[key]
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "unsupported method on fake object store", http.StatusMethodNotAllowed)
	}
}

// StartObjectStore is the step that brings the fixture up before the
// worker starts, matching the reference's "an object store is available"
// given-step.
func (s *StepContext) StartObjectStore() error {
	s.ObjectStore = NewFakeObjectStore()
	return nil
}
