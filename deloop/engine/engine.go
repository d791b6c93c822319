// Package engine owns the fixed track array and the audio-context side
// of the command/response/info channel plane: the per-tick algorithm
// that is the engine's real-time hot path.
package engine

import (
	"fmt"
	"time"

	"github.com/valerio/go-deloop/deloop/counter"
	"github.com/valerio/go-deloop/deloop/track"
)

// CommandKind tags a Command sent controller -> manager.
type CommandKind int

const (
	CmdAdvanceTrackState CommandKind = iota
	CmdConfigureTrack
	CmdFocusOnTrack
)

// Command is the only message shape crossing the command channel. At
// most one is drained per tick (invariant 8, spec.md §8).
type Command struct {
	Kind     CommandKind
	TrackID  counter.TrackID // valid for ConfigureTrack, FocusOnTrack
	Settings track.Settings  // valid for ConfigureTrack
}

// ResponseKind tags a Response sent manager -> controller, 1:1 with an
// accepted command.
type ResponseKind int

const (
	RespSucceeded ResponseKind = iota
	RespFailed
)

// Response acknowledges a Command.
type Response struct {
	Kind ResponseKind
	Err  error // set only when Kind is RespFailed
}

// InfoKind tags an Info message sent manager -> controller,
// fire-and-forget.
type InfoKind int

const (
	InfoWaveformUpdate InfoKind = iota
	InfoStatusUpdate
	InfoCounterUpdate
	InfoProcessingLatency
	InfoFocusChanged
)

// Info is the only message shape crossing the info channel.
type Info struct {
	Kind     InfoKind
	TrackID  counter.TrackID      // valid for WaveformUpdate, StatusUpdate, FocusChanged
	Status   track.Status         // valid for WaveformUpdate, StatusUpdate
	Waveform WaveformPayload      // valid for WaveformUpdate
	Counter  CounterSnapshot      // valid for CounterUpdate
	Latency  time.Duration        // valid for ProcessingLatency
}

// WaveformPayload carries a full copy of a track's stereo buffer, per
// spec §5's "Shared resources" note: the audio context allocates here
// intentionally.
type WaveformPayload struct {
	FL, FR []float32
}

// CounterSnapshot is a read-only copy of the global counter's state
// across all four tracks.
type CounterSnapshot struct {
	SampleRate uint64
	Tracks     [counter.NumTracks]TrackCounterSnapshot
}

// TrackCounterSnapshot is one track's counter fields at snapshot time.
type TrackCounterSnapshot struct {
	Absolute uint64
	Len      uint64
}

// TrackNotFoundError reports a TrackID outside the fixed {A,B,C,D} set.
// counter.TrackID is a plain int, so such a value can be constructed;
// the manager validates it rather than indexing out of bounds.
type TrackNotFoundError struct {
	ID counter.TrackID
}

func (e *TrackNotFoundError) Error() string {
	return fmt.Sprintf("engine: track not found: %v", e.ID)
}

// Manager owns the four tracks, the counter, and the three channel
// endpoints. It exposes no methods to the hot path other than Tick.
type Manager struct {
	counter *counter.GlobalCounter
	tracks  [counter.NumTracks]*track.Track
	focused counter.TrackID

	commands  <-chan Command
	responses chan<- Response
	info      chan<- Info

	lastTickLatency time.Duration
}

// NewManager creates a manager with all four tracks in the Idle state
// and Track A focused, per spec.md §4.3's "Focus semantics".
func NewManager(sampleRate uint64, commands <-chan Command, responses chan<- Response, info chan<- Info) *Manager {
	m := &Manager{
		counter:   counter.New(sampleRate),
		focused:   counter.TrackA,
		commands:  commands,
		responses: responses,
		info:      info,
	}
	for _, id := range counter.AllTracks {
		m.tracks[id] = track.New(id)
	}
	return m
}

// Focused returns the currently focused track.
func (m *Manager) Focused() counter.TrackID {
	return m.focused
}

// Tick runs exactly one audio-callback iteration: the fixed nine-step
// order from spec.md §4.3. Must not block, must not take a lock, and
// must allocate only while a track extends its loop buffer (the
// WaveformUpdate copy in step 6 is accepted as the one other
// allocation site).
func (m *Manager) Tick(nFrames int, flIn, frIn []float32, flOut, frOut []float32, midiEvents [][]byte) {
	tickStart := time.Now() // step 1

	m.tryRecvCommand() // step 2

	focused := m.tracks[m.focused]
	for _, ev := range midiEvents { // step 3
		focused.HandleMIDIEvent(m.counter, ev)
	}

	focused.ReadFrom(m.counter, flIn, frIn) // step 4

	for i := range flOut { // step 5
		flOut[i] = 0
	}
	for i := range frOut {
		frOut[i] = 0
	}

	for _, id := range counter.AllTracks { // step 6
		tr := m.tracks[id]
		tr.WriteTo(m.counter, flOut, frOut)
		m.publishTrackInfo(tr)
	}

	m.publishCounterSnapshot()                                       // step 7
	m.sendInfo(Info{Kind: InfoProcessingLatency, Latency: m.lastTickLatency})

	m.counter.AdvanceAll(uint64(nFrames)) // step 8

	m.lastTickLatency = time.Since(tickStart) // step 9
}

func (m *Manager) tryRecvCommand() {
	select {
	case cmd := <-m.commands:
		m.execute(cmd)
	default:
	}
}

func (m *Manager) execute(cmd Command) {
	switch cmd.Kind {
	case CmdAdvanceTrackState:
		m.tracks[m.focused].AdvanceState(m.counter)
		m.sendResponse(Response{Kind: RespSucceeded})

	case CmdConfigureTrack:
		tr, err := m.trackByID(cmd.TrackID)
		if err != nil {
			m.sendResponse(Response{Kind: RespFailed, Err: err})
			return
		}
		tr.Configure(cmd.Settings)
		m.sendResponse(Response{Kind: RespSucceeded})

	case CmdFocusOnTrack:
		if _, err := m.trackByID(cmd.TrackID); err != nil {
			m.sendResponse(Response{Kind: RespFailed, Err: err})
			return
		}
		m.focused = cmd.TrackID
		m.sendResponse(Response{Kind: RespSucceeded})
		m.sendInfo(Info{Kind: InfoFocusChanged, TrackID: cmd.TrackID})
	}
}

func (m *Manager) trackByID(id counter.TrackID) (*track.Track, error) {
	if id < 0 || id >= counter.NumTracks {
		return nil, &TrackNotFoundError{ID: id}
	}
	return m.tracks[id], nil
}

func (m *Manager) publishTrackInfo(tr *track.Track) {
	status := tr.Status()
	if status.State.IsBeingModified() {
		fl, fr := tr.Buffers()
		m.sendInfo(Info{
			Kind:    InfoWaveformUpdate,
			TrackID: tr.ID(),
			Status:  status,
			Waveform: WaveformPayload{
				FL: append([]float32(nil), fl...),
				FR: append([]float32(nil), fr...),
			},
		})
		return
	}
	m.sendInfo(Info{Kind: InfoStatusUpdate, TrackID: tr.ID(), Status: status})
}

func (m *Manager) publishCounterSnapshot() {
	snap := CounterSnapshot{SampleRate: m.counter.SampleRate()}
	for _, id := range counter.AllTracks {
		snap.Tracks[id] = TrackCounterSnapshot{
			Absolute: m.counter.Absolute(id),
			Len:      m.counter.GetLen(id),
		}
	}
	m.sendInfo(Info{Kind: InfoCounterUpdate, Counter: snap})
}

// sendResponse and sendInfo never block. A dropped info message
// degrades UI smoothness only (spec.md §7, "Dropped info messages");
// a dropped response leaves the waiting controller call to fail with
// host.ErrCommandTimeout.
func (m *Manager) sendResponse(r Response) {
	select {
	case m.responses <- r:
	default:
	}
}

func (m *Manager) sendInfo(i Info) {
	select {
	case m.info <- i:
	default:
	}
}
