// Package controller is the non-realtime facade: it sends commands to
// the engine, blocks on the response channel with a deadline, and
// drains the info channel without blocking. It also owns the host
// enumeration and port connection passthroughs from spec.md §4.4/§6.
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/valerio/go-deloop/deloop/counter"
	"github.com/valerio/go-deloop/deloop/engine"
	"github.com/valerio/go-deloop/deloop/host"
	"github.com/valerio/go-deloop/deloop/iodiscovery"
	"github.com/valerio/go-deloop/deloop/track"
)

// commandDeadline is the hard cap on how long a command-and-wait call
// may block, regardless of the context a caller passes in.
const commandDeadline = 5 * time.Second

// Controller is driven from the controller context: it may allocate
// freely and may block on channels with a timeout, per spec.md §5.
type Controller struct {
	commands  chan<- engine.Command
	responses <-chan engine.Response
	info      <-chan engine.Info
	h         host.Host
}

// New creates a controller over the given command/response/info
// channels and host bridge. The channels are normally the ones a
// engine.Manager was constructed with.
func New(commands chan<- engine.Command, responses <-chan engine.Response, info <-chan engine.Info, h host.Host) *Controller {
	return &Controller{commands: commands, responses: responses, info: info, h: h}
}

// AdvanceTrackState enqueues AdvanceTrackState and waits for the ack.
func (c *Controller) AdvanceTrackState(ctx context.Context) error {
	return c.commandAndWait(ctx, engine.Command{Kind: engine.CmdAdvanceTrackState})
}

// ConfigureTrack enqueues ConfigureTrack(id, settings) and waits for
// the ack.
func (c *Controller) ConfigureTrack(ctx context.Context, id counter.TrackID, settings track.Settings) error {
	return c.commandAndWait(ctx, engine.Command{Kind: engine.CmdConfigureTrack, TrackID: id, Settings: settings})
}

// FocusOnTrack enqueues FocusOnTrack(id) and waits for the ack.
func (c *Controller) FocusOnTrack(ctx context.Context, id counter.TrackID) error {
	return c.commandAndWait(ctx, engine.Command{Kind: engine.CmdFocusOnTrack, TrackID: id})
}

// commandAndWait enqueues cmd and blocks for its response, capped at
// commandDeadline regardless of what ctx allows (spec.md §4.4: "every
// method that mutates engine state... blocks... with a 5-second
// deadline"). No attempt is made to cancel in-flight engine work on
// timeout (spec.md §5, "Cancellation") — the engine either executed
// the command or it did not.
func (c *Controller) commandAndWait(ctx context.Context, cmd engine.Command) error {
	ctx, cancel := context.WithTimeout(ctx, commandDeadline)
	defer cancel()

	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return fmt.Errorf("%w: enqueue command", host.ErrCommandTimeout)
	}

	select {
	case resp := <-c.responses:
		if resp.Kind == engine.RespFailed {
			return fmt.Errorf("command failed: %w", resp.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: awaiting response", host.ErrCommandTimeout)
	}
}

// GetTrackUpdates drains the info channel non-blockingly and returns
// whatever had accumulated.
func (c *Controller) GetTrackUpdates() []engine.Info {
	var updates []engine.Info
	for {
		select {
		case info := <-c.info:
			updates = append(updates, info)
		default:
			return updates
		}
	}
}

// AudioSources returns the set of distinct client names exposing at
// least one output audio port.
func (c *Controller) AudioSources() ([]string, error) {
	ports, err := c.h.Ports()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", host.ErrHostFailure, err)
	}
	return iodiscovery.AudioSources(ports), nil
}

// AudioSinks returns the set of distinct client names exposing at
// least one input audio port.
func (c *Controller) AudioSinks() ([]string, error) {
	ports, err := c.h.Ports()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", host.ErrHostFailure, err)
	}
	return iodiscovery.AudioSinks(ports), nil
}

// MIDISources returns the set of distinct client names exposing
// exactly one MIDI output port.
func (c *Controller) MIDISources() ([]string, error) {
	ports, err := c.h.Ports()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", host.ErrHostFailure, err)
	}
	return iodiscovery.MIDISources(ports), nil
}

// SubscribeTo connects device's output ports to the engine's input
// ports, per spec.md §6's stereo/mono/MIDI classification rules.
func (c *Controller) SubscribeTo(device string) error {
	ports, err := c.h.Ports()
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrHostFailure, err)
	}
	pairs, err := iodiscovery.SubscribePairs(ports, device)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := c.h.Connect(p.Src, p.Dst); err != nil {
			return fmt.Errorf("%w: connect %s -> %s: %v", host.ErrHostFailure, p.Src, p.Dst, err)
		}
	}
	return nil
}

// UnsubscribeFrom disconnects the pairs SubscribeTo would connect for
// device, found by classifying the ports whose client name equals
// device. Peers are not matched by name prefix or substring, and the
// host's live connections are not inspected; an absent or
// unrecognized device disconnects nothing.
func (c *Controller) UnsubscribeFrom(device string) error {
	ports, err := c.h.Ports()
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrHostFailure, err)
	}
	pairs := iodiscovery.UnsubscribePairs(ports, device)
	for _, p := range pairs {
		if err := c.h.Disconnect(p.Src, p.Dst); err != nil {
			// already-disconnected is a warning, not an error (spec.md §7)
			continue
		}
	}
	return nil
}

// PublishTo connects the engine's output ports to sink's classified
// input ports.
func (c *Controller) PublishTo(sink string) error {
	ports, err := c.h.Ports()
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrHostFailure, err)
	}
	pairs, err := iodiscovery.PublishPairs(ports, sink)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := c.h.Connect(p.Src, p.Dst); err != nil {
			return fmt.Errorf("%w: connect %s -> %s: %v", host.ErrHostFailure, p.Src, p.Dst, err)
		}
	}
	return nil
}

// StopPublishing disconnects the engine's output ports from the pairs
// PublishTo would connect for sink, found by classifying the input
// ports whose client name equals sink.
func (c *Controller) StopPublishing(sink string) error {
	ports, err := c.h.Ports()
	if err != nil {
		return fmt.Errorf("%w: %v", host.ErrHostFailure, err)
	}
	pairs := iodiscovery.UnpublishPairs(ports, sink)
	for _, p := range pairs {
		if err := c.h.Disconnect(p.Src, p.Dst); err != nil {
			continue
		}
	}
	return nil
}
