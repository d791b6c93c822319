//go:build !sdl2

package sdl2

import (
	"fmt"

	"github.com/valerio/go-deloop/deloop/host"
)

// Host stub for when SDL2 is not available. Matches the teacher's
// jeebie/backend/sdl2_stub.go split exactly.
type Host struct{}

// New always fails on a tagless build; rebuild with -tags sdl2 and
// install SDL2 development libraries plus an RtMidi native library to
// get a real implementation.
func New(outputDevice, inputDevice, midiPortName string) (*Host, error) {
	return nil, fmt.Errorf("sdl2 host not available: rebuild with -tags sdl2")
}

func (h *Host) SampleRate() uint64                { return 0 }
func (h *Host) Ports() ([]host.PortInfo, error)   { return nil, fmt.Errorf("sdl2 host not available") }
func (h *Host) Connect(src, dst string) error     { return fmt.Errorf("sdl2 host not available") }
func (h *Host) Disconnect(src, dst string) error  { return fmt.Errorf("sdl2 host not available") }
func (h *Host) Run(tick host.TickFunc) error      { return fmt.Errorf("sdl2 host not available") }
func (h *Host) Close() error                      { return nil }
