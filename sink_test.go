package netexp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSinkHeaderTruncatesRowsAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp_stats.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale content\nfrom an earlier sweep\n"), 0o644))

	sink := CreateCSVSink(path)
	require.NoError(t, sink.WriteHeader(ResultHeader))
	require.NoError(t, sink.WriteRow("10,1.5,0.002,40,0,100"))
	require.NoError(t, sink.WriteRow("20,NA,NA,0,80,0"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ResultHeader+"\n10,1.5,0.002,40,0,100\n20,NA,NA,0,80,0\n", string(data))

	// a second header starts a fresh file
	require.NoError(t, sink.WriteHeader(ResultHeader))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ResultHeader+"\n", string(data))
}

func TestCSVSinkRowWithoutHeaderCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	sink := CreateCSVSink(path)
	require.NoError(t, sink.WriteRow("1,NA,NA,0,0,NA"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1,NA,NA,0,0,NA\n", string(data))
}

func TestCSVSinkFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "out.csv")
	sink := CreateCSVSink(path)

	err := sink.WriteHeader(ResultHeader)
	require.Error(t, err)

	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, path, se.Path)
	assert.Equal(t, "write header", se.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	err = sink.WriteRow("1,NA,NA,0,0,NA")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "write row", se.Op)
}
