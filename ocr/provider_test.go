package ocr

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/videoreport/api/ratelimit"
)

func TestParseResponseStrictJSON(t *testing.T) {
	text, conf, ok := ParseResponse(`{"text": "hello world", "confidence": 0.9}`)
	require.True(t, ok)
	require.Equal(t, "hello world", text)
	require.Equal(t, 0.9, conf)
}

func TestParseResponseStripsCodeFence(t *testing.T) {
	text, _, ok := ParseResponse("```json\n{\"text\": \"fenced\", \"confidence\": 0.5}\n```")
	require.True(t, ok)
	require.Equal(t, "fenced", text)
}

func TestParseResponseFallsBackToQuotedExtraction(t *testing.T) {
	text, _, ok := ParseResponse(`The text reads "fallback text" in the caption area.`)
	require.True(t, ok)
	require.Equal(t, "fallback text", text)
}

func TestParseResponseUnparseable(t *testing.T) {
	_, _, ok := ParseResponse("no quotes or json here at all")
	require.False(t, ok)
}

type fakeProvider struct {
	name      string
	behaviors []func() (Result, error)
	calls     int
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) PerformOCR(ctx context.Context, _ []byte) (Result, error) {
	b := f.behaviors[f.calls]
	f.calls++
	return b()
}

func TestChainFallsBackOnRetryableError(t *testing.T) {
	mock := clock.NewMock()
	chain := NewChain(mock)

	p1 := &fakeProvider{name: "p1", behaviors: []func() (Result, error){
		func() (Result, error) {
			return Result{}, &ratelimit.RetryableError{Err: fmt.Errorf("429 too many requests"), RetryAfter: 120 * time.Second}
		},
	}}
	p2 := &fakeProvider{name: "p2", behaviors: []func() (Result, error){
		func() (Result, error) { return Result{Text: "ok"}, nil },
	}}

	chain.Register(p1, 1, ratelimit.New(10, 100, time.Minute, ratelimit.WithClock(mock)))
	chain.Register(p2, 2, ratelimit.New(10, 100, time.Minute, ratelimit.WithClock(mock)))

	result, err := chain.PerformOCR(context.Background(), []byte("frame"))
	require.NoError(t, err)
	require.Equal(t, "p2", result.Provider)
	require.Equal(t, 1, p1.calls)

	// provider #1 should now be marked unavailable for >= 120s
	require.False(t, chain.registrations[0].available(mock.Now()))
	mock.Add(119 * time.Second)
	require.False(t, chain.registrations[0].available(mock.Now()))
	mock.Add(2 * time.Second)
	require.True(t, chain.registrations[0].available(mock.Now()))
}

func TestChainAllProvidersUnavailable(t *testing.T) {
	mock := clock.NewMock()
	chain := NewChain(mock)
	p1 := &fakeProvider{name: "p1", behaviors: []func() (Result, error){
		func() (Result, error) { return Result{}, fmt.Errorf("overloaded") },
	}}
	chain.Register(p1, 1, ratelimit.New(10, 100, time.Minute, ratelimit.WithClock(mock)))

	_, err := chain.PerformOCR(context.Background(), []byte("frame"))
	require.Error(t, err)
}
