package clients

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsNotFoundMatchesCommonS3Messages(t *testing.T) {
	require.True(t, isNotFound(errors.New("NoSuchKey: the specified key does not exist")))
	require.True(t, isNotFound(errors.New("key NotFound")))
	require.False(t, isNotFound(errors.New("access denied")))
}
