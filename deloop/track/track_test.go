package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-deloop/deloop/counter"
)

func constBuffer(n int, v float32) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

// singleClick backdates the track's last-state-change timestamp so
// AdvanceState is never mistaken for a double-click cancel. Tests that
// specifically exercise the double-click window call AdvanceState
// directly instead.
func singleClick(tr *Track, gc *counter.GlobalCounter) {
	tr.lastStateChangeAt = time.Now().Add(-time.Second)
	tr.AdvanceState(gc)
}

func newGC() *counter.GlobalCounter {
	return counter.New(48000)
}

// E1. Record-play basic.
func TestTrack_RecordPlayBasic(t *testing.T) {
	gc := newGC()
	tr := New(counter.TrackA)

	singleClick(tr, gc) // Idle -> RecordingQueued(0)
	require.Equal(t, RecordingQueued, tr.state.Kind)
	require.Equal(t, uint64(0), tr.state.QueuedIndex)

	in := constBuffer(48000, 1.0)
	tr.ReadFrom(gc, in, in)

	require.Equal(t, Recording, tr.state.Kind)
	fl, fr := tr.Buffers()
	assert.Len(t, fl, 48000)
	assert.Len(t, fr, 48000)
	assert.Equal(t, uint64(48000), gc.GetLen(counter.TrackA))

	gc.AdvanceAll(48000)

	singleClick(tr, gc) // Recording -> OverdubbingQueued(48000)
	require.Equal(t, OverdubbingQueued, tr.state.Kind)
	require.Equal(t, uint64(48000), tr.state.QueuedIndex)
}

// E2. Sync to master.
func TestTrack_SyncToMaster(t *testing.T) {
	gc := newGC()
	a := New(counter.TrackA)
	b := New(counter.TrackB)
	b.Configure(Settings{Sync: SyncTrack(counter.TrackA)})

	singleClick(a, gc)
	in := constBuffer(24000, 1.0)
	a.ReadFrom(gc, in, in)
	require.Equal(t, uint64(24000), gc.GetLen(counter.TrackA))

	// advance A's clock so relative(A) == 10000
	gc.AdvanceAll(10000)
	require.Equal(t, uint64(10000), gc.Relative(counter.TrackA))

	singleClick(b, gc) // Idle -> RecordingQueued(next_loop(A))
	require.Equal(t, RecordingQueued, b.state.Kind)
	assert.Equal(t, gc.Absolute(counter.TrackA)+14001, b.state.QueuedIndex)
}

// E3. Double-click clears.
func TestTrack_DoubleClickClears(t *testing.T) {
	gc := newGC()
	tr := New(counter.TrackA)

	singleClick(tr, gc) // -> RecordingQueued
	in := constBuffer(512, 1.0)
	tr.ReadFrom(gc, in, in) // -> Recording
	gc.AdvanceAll(512)

	singleClick(tr, gc) // Recording -> OverdubbingQueued
	in2 := constBuffer(512, 1.0)
	tr.ReadFrom(gc, in2, in2) // still queued or past it, commits to Overdubbing
	gc.AdvanceAll(512)

	singleClick(tr, gc) // Overdubbing -> Playing (immediate)
	require.Equal(t, Playing, tr.state.Kind)

	singleClick(tr, gc) // Playing -> Paused (immediate)
	require.Equal(t, Paused, tr.state.Kind)

	// Fire a second advance within the double-click window: from
	// Paused (not Recording), so this clears.
	tr.AdvanceState(gc)

	assert.Equal(t, Idle, tr.state.Kind)
	fl, fr := tr.Buffers()
	assert.Empty(t, fl)
	assert.Empty(t, fr)
}

// E4. Short record survives: double-click logic must not fire while
// the guarded state is Recording.
func TestTrack_ShortRecordSurvives(t *testing.T) {
	gc := newGC()
	tr := New(counter.TrackA)
	singleClick(tr, gc) // -> RecordingQueued(0)
	in := constBuffer(4800, 1.0)
	tr.ReadFrom(gc, in, in) // -> Recording, 4800 samples

	// Fire immediately (well within 500ms) while Recording: the
	// double-click guard is bypassed because the current state is
	// Recording.
	tr.AdvanceState(gc)

	require.Equal(t, OverdubbingQueued, tr.state.Kind)
	fl, _ := tr.Buffers()
	assert.Len(t, fl, 4800)
}

// E5. Pedal release in recording triggers advance_state via MIDI.
func TestTrack_PedalReleaseDuringRecording(t *testing.T) {
	gc := newGC()
	tr := New(counter.TrackA)
	singleClick(tr, gc)
	in := constBuffer(100, 1.0)
	tr.ReadFrom(gc, in, in) // -> Recording

	tr.HandleMIDIEvent(gc, []byte{0xB0, 0x40, 0x00}) // release

	assert.Equal(t, OverdubbingQueued, tr.state.Kind)
}

// E6. Overdub accumulation.
func TestTrack_OverdubAccumulation(t *testing.T) {
	gc := newGC()
	tr := New(counter.TrackA)
	singleClick(tr, gc)
	in := constBuffer(1000, 0.25)
	tr.ReadFrom(gc, in, in) // -> Recording, 1000 samples @ 0.25

	tr.state = State{Kind: Overdubbing}
	tr.writeHead = 0

	add := constBuffer(1000, 0.1)
	tr.ReadFrom(gc, add, add)

	fl, fr := tr.Buffers()
	require.Len(t, fl, 1000)
	for i := range fl {
		assert.InDelta(t, 0.35, fl[i], 1e-6)
		assert.InDelta(t, 0.35, fr[i], 1e-6)
	}
}

// Invariant 1: buffer parity always holds.
func TestTrack_BufferParity(t *testing.T) {
	gc := newGC()
	tr := New(counter.TrackA)
	singleClick(tr, gc)
	in := constBuffer(777, 1.0)
	tr.ReadFrom(gc, in, in)

	fl, fr := tr.Buffers()
	assert.Equal(t, len(fl), len(fr))
}

// Invariant 6: mix commutativity — swapping write order yields
// identical output since mixing is pure addition.
func TestTrack_MixCommutativity(t *testing.T) {
	gc := newGC()
	a := New(counter.TrackA)
	b := New(counter.TrackB)

	for _, tr := range []*Track{a, b} {
		singleClick(tr, gc)
		in := constBuffer(100, 1.0)
		tr.ReadFrom(gc, in, in)
		tr.state = State{Kind: Playing}
		tr.readHead = 0
	}

	out1L, out1R := make([]float32, 100), make([]float32, 100)
	a.WriteTo(gc, out1L, out1R)
	b.WriteTo(gc, out1L, out1R)

	a.readHead = 0
	b.readHead = 0
	out2L, out2R := make([]float32, 100), make([]float32, 100)
	b.WriteTo(gc, out2L, out2R)
	a.WriteTo(gc, out2L, out2R)

	assert.Equal(t, out1L, out2L)
	assert.Equal(t, out1R, out2R)
}

// Invariant 7: a freshly cleared track contributes zeros to the mix.
func TestTrack_ClearedTrackIsSilent(t *testing.T) {
	gc := newGC()
	tr := New(counter.TrackA)
	singleClick(tr, gc)
	in := constBuffer(100, 1.0)
	tr.ReadFrom(gc, in, in)
	tr.Clear()

	out := make([]float32, 100)
	tr.WriteTo(gc, out, out)

	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestTrack_ConfigureRejectsSyncToSelf(t *testing.T) {
	tr := New(counter.TrackA)
	tr.Configure(Settings{Sync: SyncTrack(counter.TrackA)})

	assert.Equal(t, NoSync, tr.Settings().Sync)
	assert.Equal(t, counter.TrackA, tr.syncCtrID)
}

func TestTrack_StatusUsesSyncCtrID(t *testing.T) {
	tr := New(counter.TrackB)
	tr.Configure(Settings{Sync: SyncTrack(counter.TrackA)})

	status := tr.Status()
	assert.Equal(t, counter.TrackA, status.Ctr)
}

// Known imprecision per spec DESIGN NOTES: counter reset to 0 rather
// than nFrames-recordFrom when RecordingQueued's trigger index falls
// mid-tick.
func TestTrack_RecordingQueued_ResetImprecision(t *testing.T) {
	gc := newGC()
	tr := New(counter.TrackA)

	gc.AdvanceAll(100)
	tr.state = State{Kind: RecordingQueued, QueuedIndex: 150}

	in := constBuffer(100, 1.0) // start=100, end=200, idx=150 -> recordFrom=50
	tr.ReadFrom(gc, in, in)

	fl, _ := tr.Buffers()
	assert.Len(t, fl, 50)
	assert.Equal(t, uint64(0), gc.Absolute(counter.TrackA))
}
