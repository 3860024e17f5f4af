package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheStoreGetRemove(t *testing.T) {
	c := New[int]()

	require.Equal(t, 0, c.Get("missing"))

	c.Store("a", 1)
	c.Store("b", 2)
	require.Equal(t, 1, c.Get("a"))
	require.Equal(t, 2, c.Len())

	c.Remove("a")
	require.Equal(t, 0, c.Get("a"))
	require.Equal(t, 1, c.Len())
}

type logEntry struct {
	RequestID string
	Msg       string
}

func TestCacheGenericStruct(t *testing.T) {
	c := New[*logEntry]()
	c.Store("req-1", &logEntry{RequestID: "req-1", Msg: "hello"})

	got := c.Get("req-1")
	require.NotNil(t, got)
	require.Equal(t, "hello", got.Msg)

	require.Nil(t, c.Get("req-2"))
}
