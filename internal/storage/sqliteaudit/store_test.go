package sqliteaudit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadAllPreservesOrder(t *testing.T) {
	s, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append("line one"))
	require.NoError(t, s.Append("line two"))
	require.NoError(t, s.Append("line three"))

	lines, err := s.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two", "line three"}, lines)
}

func TestClearRemovesAllLines(t *testing.T) {
	s, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append("line one"))
	require.NoError(t, s.Clear())

	lines, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestReadAllOnEmptyStoreReturnsNoError(t *testing.T) {
	s, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	lines, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, lines)
}
