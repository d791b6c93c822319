// Package counter implements the engine's shared sample-accurate clock.
package counter

// TrackID identifies one of the engine's four fixed tracks.
type TrackID int

const (
	TrackA TrackID = iota
	TrackB
	TrackC
	TrackD

	// NumTracks is the fixed track count. The engine never grows or
	// shrinks this set.
	NumTracks = 4
)

// String returns the single-letter label for the track.
func (id TrackID) String() string {
	switch id {
	case TrackA:
		return "A"
	case TrackB:
		return "B"
	case TrackC:
		return "C"
	case TrackD:
		return "D"
	default:
		return "?"
	}
}

// AllTracks is the fixed, ordered set of track identifiers.
var AllTracks = [NumTracks]TrackID{TrackA, TrackB, TrackC, TrackD}

type wrapped struct {
	cnt uint64 // monotonically increasing sample count
	len uint64 // loop length in samples, 0 until a loop is committed
}

// GlobalCounter is a vector of per-track sample counters and loop
// lengths shared across all tracks. It is a dumb store: no method
// here has any cross-track dependency, and every method is O(1) and
// allocation-free, safe to call from the audio callback.
type GlobalCounter struct {
	sampleRate uint64
	counters   [NumTracks]wrapped
}

// New creates a counter for the given sample rate. All four tracks
// start at cnt=0, len=0.
func New(sampleRate uint64) *GlobalCounter {
	return &GlobalCounter{sampleRate: sampleRate}
}

// SampleRate returns the engine's configured sample rate.
func (g *GlobalCounter) SampleRate() uint64 {
	return g.sampleRate
}

// AdvanceAll advances every track's cnt by nFrames. Called exactly
// once per callback tick, after all tracks have processed that tick.
func (g *GlobalCounter) AdvanceAll(nFrames uint64) {
	for i := range g.counters {
		g.counters[i].cnt += nFrames
	}
}

// ResetTo sets a track's cnt to an absolute value. Used only when a
// track commits its initial recording (cnt is reset to 0).
func (g *GlobalCounter) ResetTo(id TrackID, v uint64) {
	g.counters[id].cnt = v
}

// SetLen records a track's committed loop length. Once non-zero, a
// well-behaved caller never reduces it (see Track.record, which
// only ever grows fl_buffer/fr_buffer during Recording).
func (g *GlobalCounter) SetLen(id TrackID, v uint64) {
	g.counters[id].len = v
}

// Absolute returns the track's raw monotonic sample count.
func (g *GlobalCounter) Absolute(id TrackID) uint64 {
	return g.counters[id].cnt
}

// Relative returns cnt mod len, or 0 if len is 0.
func (g *GlobalCounter) Relative(id TrackID) uint64 {
	c := g.counters[id]
	if c.len == 0 {
		return 0
	}
	return c.cnt % c.len
}

// GetLen returns the track's committed loop length, or 0 if it has
// not yet recorded one.
func (g *GlobalCounter) GetLen(id TrackID) uint64 {
	return g.counters[id].len
}

// GetNextLoop returns the absolute sample index of the next loop
// boundary strictly after the track's current position. Returns 0 if
// the track has no loop yet.
func (g *GlobalCounter) GetNextLoop(id TrackID) uint64 {
	c := g.counters[id]
	if c.len == 0 {
		return 0
	}
	return (c.len - (c.cnt % c.len)) + c.cnt + 1
}
