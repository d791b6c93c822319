//go:build sdl2

package sdl2

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/valerio/go-deloop/deloop/host"
)

// bufFrames is the fixed callback buffer size for the real device.
// Grounded on the same frame-time-ticker shape as the teacher's
// jeebie/backend/sdl2.go render loop, applied to audio instead of
// video.
const bufFrames = 512

// Host drives real audio I/O through go-sdl2's queue-based device API
// (no cgo callback export needed) and real MIDI input through
// gomidi/v2's rtmididrv driver.
type Host struct {
	sampleRate uint64

	outDevice sdl.AudioDeviceID
	inDevice  sdl.AudioDeviceID

	midiIn     drivers.In
	midiStop   func()
	midiMu     sync.Mutex
	midiBuf    [][]byte

	running bool
}

// New opens the named output and input audio devices and the named
// MIDI input port. Pass "" for an audio device name to use the
// platform default; an empty MIDI port name opens no MIDI input.
func New(outputDevice, inputDevice, midiPortName string) (*Host, error) {
	if err := sdl.Init(sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("%w: sdl audio init: %v", host.ErrHostFailure, err)
	}

	desired := sdl.AudioSpec{
		Freq:     48000,
		Format:   sdl.AUDIO_F32,
		Channels: 2,
		Samples:  bufFrames,
	}

	var obtainedOut sdl.AudioSpec
	outDevice, err := sdl.OpenAudioDevice(outputDevice, false, &desired, &obtainedOut, 0)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("%w: open output device: %v", host.ErrHostFailure, err)
	}

	var obtainedIn sdl.AudioSpec
	inDevice, err := sdl.OpenAudioDevice(inputDevice, true, &desired, &obtainedIn, 0)
	if err != nil {
		sdl.CloseAudioDevice(outDevice)
		sdl.Quit()
		return nil, fmt.Errorf("%w: open input device: %v", host.ErrHostFailure, err)
	}

	h := &Host{
		sampleRate: uint64(obtainedOut.Freq),
		outDevice:  outDevice,
		inDevice:   inDevice,
	}

	if midiPortName != "" {
		in, err := midi.FindInPort(midiPortName)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("%w: find midi port %q: %v", host.ErrLookupFailure, midiPortName, err)
		}
		stop, err := midi.ListenTo(in, h.onMIDIMessage)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("%w: listen to midi port %q: %v", host.ErrHostFailure, midiPortName, err)
		}
		h.midiIn = in
		h.midiStop = stop
	}

	slog.Info("sdl2 host opened", "sample_rate", h.sampleRate, "output", outputDevice, "input", inputDevice, "midi", midiPortName)
	return h, nil
}

func (h *Host) onMIDIMessage(msg midi.Message, _ int32) {
	h.midiMu.Lock()
	h.midiBuf = append(h.midiBuf, append([]byte(nil), msg...))
	h.midiMu.Unlock()
}

func (h *Host) SampleRate() uint64 { return h.sampleRate }

// Ports reports only the engine's own fixed ports: SDL2 and RtMidi
// expose no stable cross-process port enumeration the way a server
// audio/MIDI backend does, so this host reports no peer ports and the
// deloop/iodiscovery enumerations find no sources or sinks on it.
func (h *Host) Ports() ([]host.PortInfo, error) {
	return []host.PortInfo{
		{Name: host.PortInputFL, Direction: host.DirectionInput, Type: host.PortTypeAudio},
		{Name: host.PortInputFR, Direction: host.DirectionInput, Type: host.PortTypeAudio},
		{Name: host.PortOutputFL, Direction: host.DirectionOutput, Type: host.PortTypeAudio},
		{Name: host.PortOutputFR, Direction: host.DirectionOutput, Type: host.PortTypeAudio},
		{Name: host.PortControl, Direction: host.DirectionInput, Type: host.PortTypeMIDI},
	}, nil
}

// Connect and Disconnect are no-ops on this host: device selection
// happens at New time, not via a patchbay.
func (h *Host) Connect(src, dst string) error    { return nil }
func (h *Host) Disconnect(src, dst string) error { return nil }

// Run starts both devices and polls the output/input queues on a
// ticker sized to bufFrames, deinterleaving/interleaving stereo
// samples into the engine's four mono buffers. Blocks until Close.
func (h *Host) Run(tick host.TickFunc) error {
	h.running = true
	sdl.PauseAudioDevice(h.outDevice, false)
	sdl.PauseAudioDevice(h.inDevice, false)

	flIn := make([]float32, bufFrames)
	frIn := make([]float32, bufFrames)
	flOut := make([]float32, bufFrames)
	frOut := make([]float32, bufFrames)
	interleavedIn := make([]float32, bufFrames*2)
	interleavedOut := make([]float32, bufFrames*2)

	period := time.Duration(float64(bufFrames) / float64(h.sampleRate) * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for h.running {
		<-ticker.C

		n := sdl.DequeueAudio(h.inDevice, floatsToBytes(interleavedIn))
		if n < len(interleavedIn)*4 {
			// underrun: treat missing samples as silence
			for i := n / 4; i < len(interleavedIn); i++ {
				interleavedIn[i] = 0
			}
		}
		deinterleave(interleavedIn, flIn, frIn)

		h.midiMu.Lock()
		midiEvents := h.midiBuf
		h.midiBuf = nil
		h.midiMu.Unlock()

		tick(host.ProcessScope{
			InputFL: flIn, InputFR: frIn,
			OutputFL: flOut, OutputFR: frOut,
			MIDI: midiEvents, NFrames: bufFrames,
		})

		interleave(flOut, frOut, interleavedOut)
		if err := sdl.QueueAudio(h.outDevice, floatsToBytes(interleavedOut)); err != nil {
			slog.Error("sdl2 host: queue audio failed", "error", err)
		}
	}
	return nil
}

func (h *Host) Close() error {
	h.running = false
	if h.midiStop != nil {
		h.midiStop()
	}
	if h.midiIn != nil {
		h.midiIn.Close()
	}
	sdl.CloseAudioDevice(h.inDevice)
	sdl.CloseAudioDevice(h.outDevice)
	sdl.Quit()
	return nil
}

func deinterleave(in []float32, fl, fr []float32) {
	for i := 0; i < len(fl); i++ {
		fl[i] = in[2*i]
		fr[i] = in[2*i+1]
	}
}

func interleave(fl, fr []float32, out []float32) {
	for i := 0; i < len(fl); i++ {
		out[2*i] = fl[i]
		out[2*i+1] = fr[i]
	}
}

// floatsToBytes reinterprets a float32 slice as its underlying bytes
// without copying, the same trick the teacher uses in
// jeebie/backend/sdl2.go for texture pixel data.
func floatsToBytes(f []float32) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*4)
}
