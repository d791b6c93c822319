// Package iodiscovery classifies and connects peer audio/MIDI ports
// against the engine's five fixed ports, independent of which Host
// implementation is enumerating them. Grounded on
// _examples/original_source/src/deloop/common.rs (LabeledPorts) and
// mod.rs's subscribe_to/unsubscribe_from/publish_to/stop_publishing.
package iodiscovery

import (
	"fmt"
	"strings"

	"github.com/valerio/go-deloop/deloop/host"
)

// LabeledPorts is the classification of one client's ports by name
// suffix, mirroring the original's LabeledPorts struct exactly.
type LabeledPorts struct {
	FL   string
	FR   string
	Mono string
}

// FromPortNames classifies a client's ports by name suffix: "_FL",
// "_FR", "_MONO". Unmatched names are ignored.
func FromPortNames(names []string) LabeledPorts {
	var lp LabeledPorts
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, "_FL"):
			lp.FL = name
		case strings.HasSuffix(name, "_FR"):
			lp.FR = name
		case strings.HasSuffix(name, "_MONO"):
			lp.Mono = name
		}
	}
	return lp
}

// IsStereo reports whether both FL and FR were classified.
func (lp LabeledPorts) IsStereo() bool { return lp.FL != "" && lp.FR != "" }

// IsMono reports whether only MONO was classified.
func (lp LabeledPorts) IsMono() bool { return lp.FL == "" && lp.FR == "" && lp.Mono != "" }

// ConnectPair is one connect/disconnect call a Controller should make
// against its Host.
type ConnectPair struct {
	Src, Dst string
}

// clientOf extracts the "client" half of a "client:port" name.
func clientOf(port string) string {
	if i := strings.IndexByte(port, ':'); i >= 0 {
		return port[:i]
	}
	return port
}

// AudioSources returns the distinct client names exposing at least
// one output audio port.
func AudioSources(ports []host.PortInfo) []string {
	return distinctClients(ports, host.DirectionOutput, host.PortTypeAudio)
}

// AudioSinks returns the distinct client names exposing at least one
// input audio port.
func AudioSinks(ports []host.PortInfo) []string {
	return distinctClients(ports, host.DirectionInput, host.PortTypeAudio)
}

// MIDISources returns the distinct client names exposing exactly one
// output MIDI port.
func MIDISources(ports []host.PortInfo) []string {
	var out []string
	for _, client := range distinctClients(ports, host.DirectionOutput, host.PortTypeMIDI) {
		if len(namesForClient(ports, client, host.DirectionOutput, host.PortTypeMIDI)) == 1 {
			out = append(out, client)
		}
	}
	return out
}

// isEnginePort reports whether name is one of the engine's own
// registered ports rather than a peer's. AudioSources/AudioSinks/
// MIDISources enumerate connectable peers only, so the engine never
// appears as its own source or sink.
func isEnginePort(name string) bool {
	switch name {
	case host.PortInputFL, host.PortInputFR, host.PortOutputFL, host.PortOutputFR, host.PortControl:
		return true
	default:
		return false
	}
}

func distinctClients(ports []host.PortInfo, dir host.PortDirection, typ host.PortType) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range ports {
		if p.Direction != dir || p.Type != typ {
			continue
		}
		if isEnginePort(p.Name) {
			continue
		}
		client := clientOf(p.Name)
		if _, ok := seen[client]; ok {
			continue
		}
		seen[client] = struct{}{}
		out = append(out, client)
	}
	return out
}

func namesForClient(ports []host.PortInfo, client string, dir host.PortDirection, typ host.PortType) []string {
	var names []string
	for _, p := range ports {
		if p.Direction != dir || p.Type != typ {
			continue
		}
		if clientOf(p.Name) != client {
			continue
		}
		names = append(names, p.Name)
	}
	return names
}

// SubscribePairs computes the connect calls for wiring device's
// output ports into the engine's input ports, per spec.md §6: stereo
// -> FL/FR, mono -> both engine inputs, single MIDI port -> control.
func SubscribePairs(ports []host.PortInfo, device string) ([]ConnectPair, error) {
	audioNames := namesForClient(ports, device, host.DirectionOutput, host.PortTypeAudio)
	if len(audioNames) > 0 {
		lp := FromPortNames(audioNames)
		switch {
		case lp.IsStereo():
			return []ConnectPair{
				{Src: lp.FL, Dst: host.PortInputFL},
				{Src: lp.FR, Dst: host.PortInputFR},
			}, nil
		case lp.IsMono():
			return []ConnectPair{
				{Src: lp.Mono, Dst: host.PortInputFL},
				{Src: lp.Mono, Dst: host.PortInputFR},
			}, nil
		default:
			return nil, fmt.Errorf("%w: %s", host.ErrFormatFailure, device)
		}
	}

	midiNames := namesForClient(ports, device, host.DirectionOutput, host.PortTypeMIDI)
	if len(midiNames) == 1 {
		return []ConnectPair{{Src: midiNames[0], Dst: host.PortControl}}, nil
	}

	return nil, fmt.Errorf("%w: %s", host.ErrLookupFailure, device)
}

// PublishPairs computes the connect calls for wiring the engine's
// output ports into sink's classified input ports.
func PublishPairs(ports []host.PortInfo, sink string) ([]ConnectPair, error) {
	audioNames := namesForClient(ports, sink, host.DirectionInput, host.PortTypeAudio)
	if len(audioNames) == 0 {
		return nil, fmt.Errorf("%w: %s", host.ErrLookupFailure, sink)
	}

	lp := FromPortNames(audioNames)
	switch {
	case lp.IsStereo():
		return []ConnectPair{
			{Src: host.PortOutputFL, Dst: lp.FL},
			{Src: host.PortOutputFR, Dst: lp.FR},
		}, nil
	case lp.IsMono():
		return []ConnectPair{
			{Src: host.PortOutputFL, Dst: lp.Mono},
			{Src: host.PortOutputFR, Dst: lp.Mono},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", host.ErrFormatFailure, sink)
	}
}

// UnsubscribePairs disconnects device's currently-classified ports
// from the engine's input ports. The original Rust client walks each
// engine input port's live connection list and matches by prefix/
// contains; this Host interface has no equivalent "what's connected
// to me" query, so the teardown set is instead derived by reclassifying
// device's ports the same way SubscribePairs does — the pair that
// would be connected on subscribe is exactly the pair torn down on
// unsubscribe. Never errors: an unrecognized or absent device simply
// yields nothing to disconnect (spec.md §7, "already-disconnected...
// warnings, not errors").
func UnsubscribePairs(ports []host.PortInfo, device string) []ConnectPair {
	pairs, err := SubscribePairs(ports, device)
	if err != nil {
		return nil
	}
	return pairs
}

// UnpublishPairs disconnects the engine's output ports from sink's
// currently-classified input ports, symmetric to PublishPairs for the
// same reason described on UnsubscribePairs.
func UnpublishPairs(ports []host.PortInfo, sink string) []ConnectPair {
	pairs, err := PublishPairs(ports, sink)
	if err != nil {
		return nil
	}
	return pairs
}
