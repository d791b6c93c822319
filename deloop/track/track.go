// Package track implements the per-track state machine and loop
// buffer: the hot path of the looping engine's audio callback.
package track

import (
	"time"

	"github.com/valerio/go-deloop/deloop/counter"
)

// Kind is the tag of a TrackState. Go has no sum types, so the queued
// variants carry their payload in State.QueuedIndex instead of the tag
// itself.
type Kind int

const (
	Idle Kind = iota
	RecordingQueued
	Recording
	OverdubbingQueued
	Overdubbing
	PlayingQueued
	Playing
	Paused
)

// State is a tagged variant: four transient Queued kinds carrying the
// absolute sample index the transition takes effect at, and four
// steady kinds.
type State struct {
	Kind        Kind
	QueuedIndex uint64 // valid only when Kind is one of the *Queued kinds
}

func idleState() State { return State{Kind: Idle} }

// isRecording reports whether the state is one where the loop buffer
// is actively being extended by the write head (as opposed to merely
// about to be).
func (s State) isRecording() bool {
	return s.Kind == Recording || s.Kind == OverdubbingQueued
}

// isStopped reports whether write_to emits nothing and rewinds the
// read head this tick. PlayingQueued is not stopped: write_to waits
// for its index and then switches it to Playing.
func (s State) isStopped() bool {
	switch s.Kind {
	case Idle, RecordingQueued, Paused:
		return true
	default:
		return false
	}
}

// IsBeingModified reports whether the track is currently recording or
// overdubbing — the manager uses this to decide whether to publish a
// WaveformUpdate (full buffer copy) or a StatusUpdate (metadata only)
// for this track on a given tick.
func (s State) IsBeingModified() bool {
	return s.Kind == Recording || s.Kind == Overdubbing
}

// SyncTarget selects what another track's loop boundary a track
// should lock its record/play transitions to.
type SyncTarget struct {
	Set bool
	ID  counter.TrackID
}

// NoSync is the zero-value SyncTarget: the track syncs to itself.
var NoSync = SyncTarget{}

// SyncTrack returns a SyncTarget pointed at id.
func SyncTrack(id counter.TrackID) SyncTarget {
	return SyncTarget{Set: true, ID: id}
}

// Settings are a track's user-configurable behavior.
type Settings struct {
	Sync SyncTarget
	// Speed is reserved for a future fractional-rate playback feature
	// and is currently unused; see spec DESIGN NOTES on "Speed
	// control". nil means unset.
	Speed *float32
}

// Status is the read-only snapshot published to the controller.
type Status struct {
	State    State
	BufIndex int // read head, in samples
	BufSize  int // loop buffer length, in samples
	Ctr      counter.TrackID
}

// Track owns one loop buffer and its state machine. Tracks are
// created once at engine startup, one per counter.TrackID, and live
// for the engine's lifetime; Clear resets state but preserves
// identity.
type Track struct {
	id       counter.TrackID
	settings Settings

	// syncCtrID is settings.Sync's target, or id itself when
	// unsynced. Recomputed only in Configure: track settings must
	// only ever be modified there.
	syncCtrID counter.TrackID

	state             State
	lastState         State
	lastStateChangeAt time.Time

	readHead      int
	writeHead     int
	lastWriteHead int

	flBuffer []float32
	frBuffer []float32
}

// doubleClickWindow is the interval within which two AdvanceState
// calls are interpreted as a double-click cancel, rather than two
// separate gestures.
const doubleClickWindow = 500 * time.Millisecond

// New creates a track in the Idle state with empty buffers. Its
// state-change timestamp starts at the zero time, so the first
// AdvanceState is never taken for a double-click.
func New(id counter.TrackID) *Track {
	return &Track{
		id:        id,
		settings:  Settings{Sync: NoSync},
		syncCtrID: id,
		state:     idleState(),
		lastState: idleState(),
	}
}

// ID returns the track's identifier.
func (t *Track) ID() counter.TrackID {
	return t.id
}

// Configure updates the track's settings. A sync target equal to the
// track's own id is collapsed to NoSync (spec OPEN QUESTION: "focus vs
// sync-to-self" — rejected here rather than silently accepted, per the
// spec's own recommendation that this be enforced at the command
// boundary).
func (t *Track) Configure(settings Settings) {
	if settings.Sync.Set && settings.Sync.ID == t.id {
		settings.Sync = NoSync
	}

	t.settings = settings
	t.syncCtrID = t.id
	if settings.Sync.Set {
		t.syncCtrID = settings.Sync.ID
	}
}

// Settings returns the track's current settings.
func (t *Track) Settings() Settings {
	return t.settings
}

// Status returns a snapshot for the controller.
func (t *Track) Status() Status {
	return Status{
		State:    t.state,
		BufIndex: t.readHead,
		BufSize:  len(t.flBuffer),
		Ctr:      t.syncCtrID,
	}
}

// Buffers returns the track's raw stereo buffers, for waveform
// publishing. Callers must treat the returned slices as read-only.
func (t *Track) Buffers() (fl, fr []float32) {
	return t.flBuffer, t.frBuffer
}

// LastWriteHead returns the write head as of the start of the current
// callback, for incremental waveform display (spec DESIGN NOTES,
// "Waveform snapshot allocation").
func (t *Track) LastWriteHead() int {
	return t.lastWriteHead
}

// HandleMIDIEvent interprets a 3-byte MIDI message. The only
// recognized message is a Control Change on channel 0, controller 64
// (sustain pedal); everything else is silently ignored. Malformed
// messages (wrong length) are also silently ignored (spec §7).
func (t *Track) HandleMIDIEvent(gc *counter.GlobalCounter, event []byte) {
	if len(event) != 3 {
		return
	}

	// 0xB0 = Control Change, channel 0. 0x40 = controller 64 (sustain).
	if event[0] != 0xB0 || event[1] != 0x40 {
		return
	}

	pressed := event[2] > 0
	if pressed || t.state.Kind == Recording {
		t.AdvanceState(gc)
	}
}

// AdvanceState drives the track's state machine forward one
// transition, or clears the track if this call is a double-click
// (two triggers within 500ms while not Recording).
func (t *Track) AdvanceState(gc *counter.GlobalCounter) {
	doubleClick := time.Since(t.lastStateChangeAt) < doubleClickWindow
	if doubleClick && t.state.Kind != Recording {
		t.Clear()
		return
	}

	t.lastState = t.state
	t.lastStateChangeAt = time.Now()

	switch t.state.Kind {
	case Idle:
		t.state = State{Kind: RecordingQueued, QueuedIndex: t.triggerIndex(gc)}
	case RecordingQueued:
		// no-op: stays queued at the same index
	case Recording:
		t.state = State{Kind: OverdubbingQueued, QueuedIndex: t.triggerIndex(gc)}
	case OverdubbingQueued:
		// no-op
	case Overdubbing:
		t.state = State{Kind: Playing}
	case PlayingQueued:
		// no-op
	case Playing:
		t.state = State{Kind: Paused}
	case Paused:
		t.state = State{Kind: PlayingQueued, QueuedIndex: gc.GetNextLoop(t.syncCtrID)}
	}
}

// triggerIndex computes the absolute sample index at which a
// Recording/Overdubbing transition should take effect: the very next
// frame if the track owns its own clock, otherwise the next boundary
// of the master track's loop.
func (t *Track) triggerIndex(gc *counter.GlobalCounter) uint64 {
	if t.syncCtrID == t.id {
		return gc.Absolute(t.syncCtrID)
	}
	return gc.GetNextLoop(t.syncCtrID)
}

// ReadFrom consumes this tick's input audio according to the current
// state. Allocation-free except while Recording or tailing a
// RecordingQueued/OverdubbingQueued transition, where the loop buffer
// is extended.
func (t *Track) ReadFrom(gc *counter.GlobalCounter, flIn, frIn []float32) {
	t.lastWriteHead = t.writeHead

	start := gc.Absolute(t.syncCtrID)
	end := start + uint64(len(flIn))

	switch t.state.Kind {
	case RecordingQueued:
		idx := t.state.QueuedIndex
		if end < idx {
			return
		}

		recordFrom := 0
		if start < idx {
			recordFrom = int(idx - start)
		}

		t.flBuffer = append(t.flBuffer, flIn[recordFrom:]...)
		t.frBuffer = append(t.frBuffer, frIn[recordFrom:]...)
		t.state = State{Kind: Recording}
		gc.SetLen(t.id, uint64(len(t.flBuffer)))

		// Known imprecision when recordFrom > 0: a precise reset
		// would be nFrames-recordFrom, not 0. See spec DESIGN NOTES.
		gc.ResetTo(t.id, 0)

	case Recording:
		t.record(gc, flIn, frIn)

	case OverdubbingQueued:
		idx := t.state.QueuedIndex
		if end < idx {
			t.record(gc, flIn, frIn)
			return
		}

		overdubFrom := 0
		if start < idx {
			overdubFrom = int(idx - start)
		}

		if overdubFrom > 0 {
			t.record(gc, flIn[:overdubFrom], frIn[:overdubFrom])
		}
		t.overdub(flIn[overdubFrom:], frIn[overdubFrom:])
		t.state = State{Kind: Overdubbing}

	case Overdubbing:
		if len(t.flBuffer) == 0 {
			return
		}
		t.overdub(flIn, frIn)

	default:
		// all other states ignore input
	}
}

// WriteTo mixes this track's contribution onto the output buffers.
// Mixing is pure addition: the manager pre-zeroes the output, and
// callers may mix tracks in any order (spec invariant: mix
// commutativity).
func (t *Track) WriteTo(gc *counter.GlobalCounter, flOut, frOut []float32) {
	if len(t.flBuffer) == 0 {
		return
	}
	if t.state.isStopped() || t.state.isRecording() {
		t.readHead = 0
		return
	}

	start := gc.Absolute(t.syncCtrID)
	end := start + uint64(len(flOut))

	playFrom := 0
	if t.state.Kind == PlayingQueued {
		idx := t.state.QueuedIndex
		if end < idx {
			return
		}
		if start < idx {
			playFrom = int(idx - start)
		}
		t.state = State{Kind: Playing}
	}

	for i := playFrom; i < len(flOut); i++ {
		if t.readHead >= len(t.flBuffer) {
			if t.state.Kind == Recording {
				break
			}
			t.readHead = 0
		}

		flOut[i] += t.flBuffer[t.readHead]
		frOut[i] += t.frBuffer[t.readHead]
		t.readHead++
	}

	t.writeHead = t.readHead
}

// Clear resets the track to Idle with empty buffers, preserving
// identity. A freshly cleared track contributes zeros to the mix.
func (t *Track) Clear() {
	t.state = idleState()
	t.lastState = idleState()
	t.lastStateChangeAt = time.Now()
	t.readHead = 0
	t.writeHead = 0
	t.flBuffer = t.flBuffer[:0]
	t.frBuffer = t.frBuffer[:0]
}

// record appends input to the loop buffer unconditionally (the
// low-level tail of Recording and of the non-overdub portion of an
// OverdubbingQueued split).
func (t *Track) record(gc *counter.GlobalCounter, flIn, frIn []float32) {
	t.flBuffer = append(t.flBuffer, flIn...)
	t.frBuffer = append(t.frBuffer, frIn...)
	t.writeHead = len(t.flBuffer)
	gc.SetLen(t.id, uint64(len(t.flBuffer)))
}

// overdub adds input into the buffer at the write head, wrapping when
// it reaches the end.
func (t *Track) overdub(flIn, frIn []float32) {
	for i := range flIn {
		if t.writeHead >= len(t.flBuffer) {
			t.writeHead = 0
		}
		t.flBuffer[t.writeHead] += flIn[i]
		t.frBuffer[t.writeHead] += frIn[i]
		t.writeHead++
	}
}
