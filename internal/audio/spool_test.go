package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpoolWritesUniqueWavFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewSpooler(dir)

	p1, err := s.Spool(strings.NewReader("first"))
	require.NoError(t, err)
	p2, err := s.Spool(strings.NewReader("second"))
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
	assert.Equal(t, ".wav", filepath.Ext(p1))
	assert.Equal(t, dir, filepath.Dir(p1))

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestRemoveDeletesFile(t *testing.T) {
	s := NewSpooler(t.TempDir())

	p, err := s.Spool(strings.NewReader("bytes"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(p))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveMissingFileIsNoError(t *testing.T) {
	s := NewSpooler(t.TempDir())

	assert.NoError(t, s.Remove(filepath.Join(t.TempDir(), "gone.wav")))
	assert.NoError(t, s.Remove(""))
}
