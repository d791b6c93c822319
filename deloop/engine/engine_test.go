package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-deloop/deloop/counter"
	"github.com/valerio/go-deloop/deloop/track"
)

func newTestManager() (*Manager, chan Command, chan Response, chan Info) {
	commands := make(chan Command, 4)
	responses := make(chan Response, 4)
	info := make(chan Info, 64)
	m := NewManager(48000, commands, responses, info)
	return m, commands, responses, info
}

func constBuf(n int, v float32) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestManager_FocusDefaultsToTrackA(t *testing.T) {
	m, _, _, _ := newTestManager()
	assert.Equal(t, counter.TrackA, m.Focused())
}

func TestManager_AdvanceTrackStateCommandIsAcked(t *testing.T) {
	m, commands, responses, _ := newTestManager()
	commands <- Command{Kind: CmdAdvanceTrackState}

	flIn, frIn := constBuf(512, 1.0), constBuf(512, 1.0)
	flOut, frOut := make([]float32, 512), make([]float32, 512)
	m.Tick(512, flIn, frIn, flOut, frOut, nil)

	select {
	case resp := <-responses:
		assert.Equal(t, RespSucceeded, resp.Kind)
	default:
		t.Fatal("expected a response after one tick")
	}
}

func TestManager_AtMostOneCommandPerTick(t *testing.T) {
	m, commands, responses, _ := newTestManager()
	commands <- Command{Kind: CmdAdvanceTrackState}
	commands <- Command{Kind: CmdAdvanceTrackState}

	flIn, frIn := constBuf(10, 1.0), constBuf(10, 1.0)
	flOut, frOut := make([]float32, 10), make([]float32, 10)
	m.Tick(10, flIn, frIn, flOut, frOut, nil)

	require.Len(t, responses, 1)
	assert.Len(t, commands, 1) // the second command is still queued
}

func TestManager_FocusOnTrackUnknownIDFails(t *testing.T) {
	m, commands, responses, _ := newTestManager()
	commands <- Command{Kind: CmdFocusOnTrack, TrackID: counter.TrackID(99)}

	flIn, frIn := constBuf(10, 0), constBuf(10, 0)
	flOut, frOut := make([]float32, 10), make([]float32, 10)
	m.Tick(10, flIn, frIn, flOut, frOut, nil)

	resp := <-responses
	require.Equal(t, RespFailed, resp.Kind)
	var notFound *TrackNotFoundError
	assert.ErrorAs(t, resp.Err, &notFound)
}

func TestManager_FocusOnTrackPublishesFocusChanged(t *testing.T) {
	m, commands, responses, info := newTestManager()
	commands <- Command{Kind: CmdFocusOnTrack, TrackID: counter.TrackB}

	flIn, frIn := constBuf(10, 0), constBuf(10, 0)
	flOut, frOut := make([]float32, 10), make([]float32, 10)
	m.Tick(10, flIn, frIn, flOut, frOut, nil)

	<-responses
	assert.Equal(t, counter.TrackB, m.Focused())

	found := false
	for len(info) > 0 {
		i := <-info
		if i.Kind == InfoFocusChanged {
			found = true
			assert.Equal(t, counter.TrackB, i.TrackID)
		}
	}
	assert.True(t, found, "expected an InfoFocusChanged message")
}

func TestManager_RecordingPublishesWaveformUpdate(t *testing.T) {
	m, commands, responses, info := newTestManager()
	commands <- Command{Kind: CmdAdvanceTrackState} // Idle -> RecordingQueued(0) -> Recording this tick

	flIn, frIn := constBuf(256, 1.0), constBuf(256, 1.0)
	flOut, frOut := make([]float32, 256), make([]float32, 256)
	m.Tick(256, flIn, frIn, flOut, frOut, nil)
	<-responses

	sawWaveform := false
	for len(info) > 0 {
		i := <-info
		if i.Kind == InfoWaveformUpdate && i.TrackID == counter.TrackA {
			sawWaveform = true
			assert.Len(t, i.Waveform.FL, 256)
		}
	}
	assert.True(t, sawWaveform)
}

func TestManager_EveryTickPublishesCounterAndLatency(t *testing.T) {
	m, _, _, info := newTestManager()

	flIn, frIn := constBuf(128, 0), constBuf(128, 0)
	flOut, frOut := make([]float32, 128), make([]float32, 128)
	m.Tick(128, flIn, frIn, flOut, frOut, nil)

	sawCounter, sawLatency := false, false
	for len(info) > 0 {
		i := <-info
		switch i.Kind {
		case InfoCounterUpdate:
			sawCounter = true
			assert.Equal(t, uint64(48000), i.Counter.SampleRate)
		case InfoProcessingLatency:
			sawLatency = true
		}
	}
	assert.True(t, sawCounter)
	assert.True(t, sawLatency)
}

func TestManager_OnlyFocusedTrackReceivesMIDI(t *testing.T) {
	m, commands, responses, _ := newTestManager()
	commands <- Command{Kind: CmdFocusOnTrack, TrackID: counter.TrackB}

	flIn, frIn := constBuf(10, 0), constBuf(10, 0)
	flOut, frOut := make([]float32, 10), make([]float32, 10)
	m.Tick(10, flIn, frIn, flOut, frOut, nil)
	<-responses

	// A sustain-pedal press should advance B (focused), not A.
	midi := [][]byte{{0xB0, 0x40, 0x7F}}
	m.Tick(10, flIn, frIn, flOut, frOut, midi)

	assert.Equal(t, track.Recording, m.tracks[counter.TrackB].Status().State.Kind)
	assert.Equal(t, track.Idle, m.tracks[counter.TrackA].Status().State.Kind)
}
