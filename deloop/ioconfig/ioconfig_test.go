package ioconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsEmptySelection(t *testing.T) {
	sel, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Empty(t, sel.AudioSources)
	assert.Nil(t, sel.AudioSink)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selected_io.json")
	sink := "speakers"
	control := "pedal"
	sel := &Selection{
		AudioSources:  []string{"guitar", "mic"},
		AudioSink:     &sink,
		ControlSource: &control,
	}

	require.NoError(t, sel.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sel.AudioSources, loaded.AudioSources)
	require.NotNil(t, loaded.AudioSink)
	assert.Equal(t, sink, *loaded.AudioSink)
	require.NotNil(t, loaded.ControlSource)
	assert.Equal(t, control, *loaded.ControlSource)
}
