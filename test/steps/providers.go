package steps

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeVisionServer stands in for the OCR vision API (§4.5.1/§4.5.2). Each
// scenario scripts a sequence of responses via AlwaysReturnText,
// AlwaysReturnOverlayPlusUniqueLine or RateLimitThenSucceed; calls beyond
// the scripted sequence repeat the last one, so a scenario only needs to
// script the calls whose behavior it cares about.
type FakeVisionServer struct {
	server *httptest.Server

	mu          sync.Mutex
	calls       int
	steps       []visionStep
	overlayLine string // non-empty switches to per-call "<overlayLine>\nunique-N" text
}

type visionStep struct {
	status     int
	retryAfter string
	text       string
	confidence float64
}

func NewFakeVisionServer() *FakeVisionServer {
	v := &FakeVisionServer{}
	v.server = httptest.NewServer(http.HandlerFunc(v.handle))
	return v
}

func (v *FakeVisionServer) URL() string { return v.server.URL }
func (v *FakeVisionServer) Close()      { v.server.Close() }

// AlwaysReturnText scripts every call to this provider to succeed with the
// given OCR text, the default behavior scenarios that don't care about
// failover use.
func (v *FakeVisionServer) AlwaysReturnText(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.overlayLine = ""
	v.steps = []visionStep{{status: http.StatusOK, text: text, confidence: 0.9}}
}

// AlwaysReturnOverlayPlusUniqueLine scripts every call to return
// "<overlayLine>\nunique-N" with N the call's 1-based index — S3's
// persistent-overlay fixture, where every scene shares one line (the
// candidate for ocr.FilterPersistentOverlays to strip) but also
// contributes a line unique to itself.
func (v *FakeVisionServer) AlwaysReturnOverlayPlusUniqueLine(overlayLine string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.overlayLine = overlayLine
	v.steps = nil
}

// RateLimitThenSucceed scripts the first n calls to return 429 with the
// given Retry-After, then succeed with text — S5's failover fixture.
func (v *FakeVisionServer) RateLimitThenSucceed(n int, retryAfterSeconds string, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.steps = nil
	for i := 0; i < n; i++ {
		v.steps = append(v.steps, visionStep{status: http.StatusTooManyRequests, retryAfter: retryAfterSeconds})
	}
	v.steps = append(v.steps, visionStep{status: http.StatusOK, text: text, confidence: 0.9})
}

func (v *FakeVisionServer) CallCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func (v *FakeVisionServer) handle(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	idx := v.calls
	v.calls++
	overlayLine := v.overlayLine
	step := visionStep{status: http.StatusOK, confidence: 0.9}
	if overlayLine == "" && len(v.steps) > 0 {
		if idx < len(v.steps) {
			step = v.steps[idx]
		} else {
			step = v.steps[len(v.steps)-1]
		}
	}
	v.mu.Unlock()

	if overlayLine != "" {
		step.text = fmt.Sprintf("%s\nunique-%d", overlayLine, idx+1)
	}

	if step.retryAfter != "" {
		w.Header().Set("Retry-After", step.retryAfter)
	}
	if step.status != http.StatusOK {
		w.WriteHeader(step.status)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"text":       step.text,
		"confidence": step.confidence,
	})
}

// FakeSpeechServer stands in for the speech-to-text API (§4.3.3): a single
// multipart POST per chunk, verbose-JSON segments back.
type FakeSpeechServer struct {
	server *httptest.Server

	mu       sync.Mutex
	segments []verboseSegmentFixture
}

type verboseSegmentFixture struct {
	Start float64
	End   float64
	Text  string
}

func NewFakeSpeechServer() *FakeSpeechServer {
	s := &FakeSpeechServer{}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *FakeSpeechServer) URL() string { return s.server.URL }
func (s *FakeSpeechServer) Close()      { s.server.Close() }

// SetTranscript scripts every chunk transcription call to return the same
// fixed segments, regardless of the audio bytes actually posted — the
// fixture only needs to exercise the wire contract, not real ASR.
func (s *FakeSpeechServer) SetTranscript(start, end float64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = []verboseSegmentFixture{{Start: start, End: end, Text: text}}
}

// SetSilent scripts every call to return no segments, for S2's silent-video
// scenario (which never actually reaches this provider, since phase 1 is
// skipped when the input has no audio stream, but the fixture is kept
// symmetric with the vision fake for clarity).
func (s *FakeSpeechServer) SetSilent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = nil
}

func (s *FakeSpeechServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var file multipart.File
	if fh := r.MultipartForm.File["file"]; len(fh) > 0 {
		f, err := fh[0].Open()
		if err == nil {
			file = f
			defer file.Close()
		}
	}

	s.mu.Lock()
	segs := s.segments
	s.mu.Unlock()

	type segment struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	}
	out := make([]segment, 0, len(segs))
	for _, seg := range segs {
		out = append(out, segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"segments": out})
}
