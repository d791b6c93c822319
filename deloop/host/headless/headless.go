// Package headless implements an in-process Host for tests and for
// running the engine without real audio hardware: the caller drives
// ticks directly instead of a platform event loop.
package headless

import (
	"errors"

	"github.com/valerio/go-deloop/deloop/host"
)

// Host is grounded on jeebie/backend/headless.go's "no real platform,
// caller drives frames" shape, adapted from video frames to audio
// buffers.
type Host struct {
	sampleRate uint64
	midiIn     chan []byte
	tick       host.TickFunc
	closed     bool
}

// New creates a headless host at the given sample rate.
func New(sampleRate uint64) *Host {
	return &Host{
		sampleRate: sampleRate,
		midiIn:     make(chan []byte, 64),
	}
}

func (h *Host) SampleRate() uint64 { return h.sampleRate }

func (h *Host) Ports() ([]host.PortInfo, error) {
	return []host.PortInfo{
		{Name: host.PortInputFL, Direction: host.DirectionInput, Type: host.PortTypeAudio},
		{Name: host.PortInputFR, Direction: host.DirectionInput, Type: host.PortTypeAudio},
		{Name: host.PortOutputFL, Direction: host.DirectionOutput, Type: host.PortTypeAudio},
		{Name: host.PortOutputFR, Direction: host.DirectionOutput, Type: host.PortTypeAudio},
		{Name: host.PortControl, Direction: host.DirectionInput, Type: host.PortTypeMIDI},
	}, nil
}

// Connect and Disconnect are no-ops: a headless host has no peer
// ports to wire.
func (h *Host) Connect(src, dst string) error    { return nil }
func (h *Host) Disconnect(src, dst string) error { return nil }

// Run arms tick as the per-buffer callback. Unlike host/sdl2, Run does
// not block: ProcessTick drives the callback explicitly, once per
// call, so tests can feed exact input and assert on exact output.
func (h *Host) Run(tick host.TickFunc) error {
	if h.closed {
		return errors.New("headless: host is closed")
	}
	h.tick = tick
	return nil
}

func (h *Host) Close() error {
	h.closed = true
	return nil
}

// InjectMIDI queues a raw MIDI event to be delivered on the next
// ProcessTick call.
func (h *Host) InjectMIDI(event []byte) {
	select {
	case h.midiIn <- event:
	default:
	}
}

// ProcessTick drives exactly one buffer through the registered
// callback, the way the real-time thread would for host/sdl2, and
// returns the resulting stereo output.
func (h *Host) ProcessTick(flIn, frIn []float32) (flOut, frOut []float32) {
	nFrames := len(flIn)
	flOut = make([]float32, nFrames)
	frOut = make([]float32, nFrames)

	var midi [][]byte
	for drained := false; !drained; {
		select {
		case ev := <-h.midiIn:
			midi = append(midi, ev)
		default:
			drained = true
		}
	}

	if h.tick != nil {
		h.tick(host.ProcessScope{
			InputFL: flIn, InputFR: frIn,
			OutputFL: flOut, OutputFR: frOut,
			MIDI: midi, NFrames: nFrames,
		})
	}

	return flOut, frOut
}
