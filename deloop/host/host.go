// Package host defines the capability surface the engine requires of
// whatever audio host the deployment uses.
package host

import "errors"

// Port names the engine registers with the host. The first four are
// 32-bit-float mono audio ports; control is MIDI-in.
const (
	PortInputFL  = "input_FL"
	PortInputFR  = "input_FR"
	PortOutputFL = "output_FL"
	PortOutputFR = "output_FR"
	PortControl  = "control"
)

// PortDirection is the direction of data through the port itself: an
// Output port produces data (a peer's audio/MIDI source, or the
// engine's own output_FL/output_FR), an Input port consumes it.
type PortDirection int

const (
	DirectionOutput PortDirection = iota
	DirectionInput
)

// PortType distinguishes audio ports from MIDI ports.
type PortType int

const (
	PortTypeAudio PortType = iota
	PortTypeMIDI
)

// PortInfo describes one port visible to the host, whether the
// engine's own or a peer's.
type PortInfo struct {
	Name      string
	Direction PortDirection
	Type      PortType
}

// ProcessScope is handed to the TickFunc once per buffer: this tick's
// input, a mutable handle to the output, the MIDI events that arrived
// this tick, and the frame count.
type ProcessScope struct {
	InputFL, InputFR   []float32
	OutputFL, OutputFR []float32
	MIDI               [][]byte
	NFrames            int
}

// TickFunc is the per-buffer callback a Host invokes.
type TickFunc func(scope ProcessScope)

// Host is the minimal capability surface the core requires from any
// audio host: register the five fixed ports, expose sample rate,
// enumerate peer ports, connect/disconnect named pairs, and drive a
// periodic callback.
type Host interface {
	SampleRate() uint64
	// Ports enumerates all process-visible ports, the engine's own and
	// any connectable peers, by name, direction, and type.
	Ports() ([]PortInfo, error)
	Connect(src, dst string) error
	Disconnect(src, dst string) error
	// Run registers tick as the per-buffer callback and starts the
	// host's audio I/O. Implementations differ in whether Run blocks
	// until Close (sdl2) or merely arms the callback for a caller-driven
	// loop (headless).
	Run(tick TickFunc) error
	Close() error
}

var (
	// ErrHostFailure covers port registration/connection/query failures.
	ErrHostFailure = errors.New("host: operation failed")
	// ErrLookupFailure covers a named port or source not present.
	ErrLookupFailure = errors.New("host: port or source not found")
	// ErrFormatFailure covers peer ports that do not match the
	// stereo/mono/MIDI classification rules.
	ErrFormatFailure = errors.New("host: unexpected port format")
	// ErrCommandTimeout covers a controller command that the engine did
	// not acknowledge within its deadline.
	ErrCommandTimeout = errors.New("host: command timed out")
)
