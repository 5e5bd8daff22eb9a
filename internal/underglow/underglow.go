// Package underglow wires the effect engine, status overlay, compositor and
// split sync into one controller driven by a 25 ms tick. All shared state is
// owned by the Controller value; nothing in this package is global, so
// multiple instances coexist (the tests rely on that).
package underglow

import (
	"errors"

	"github.com/example/underglow/internal/effect"
	"github.com/example/underglow/internal/hid"
	"github.com/example/underglow/internal/status"
)

var (
	// ErrNotReady fails every command while no strip transport is wired.
	ErrNotReady = errors.New("underglow: strip not ready")
	// ErrInvalidArgument rejects out-of-range effect indexes and colors.
	ErrInvalidArgument = errors.New("underglow: invalid argument")
	// ErrNotSupported is returned for events no enabled feature consumes.
	ErrNotSupported = errors.New("underglow: event not supported")
)

// Rail controls the strip power rail. A nil Rail is a valid configuration;
// rail errors are logged and never fail a command.
type Rail interface {
	Enable() error
	Disable() error
}

// BatterySource reports the local charge percentage.
type BatterySource interface {
	Level() int
}

// KeymapSource exposes the upstream layer state.
type KeymapSource interface {
	HighestLayer() uint8
	LayerActive(i int) bool
}

// IndicatorSource exposes the host lock-indicator bitmask.
type IndicatorSource interface {
	Indicators() hid.Indicators
}

// EndpointSource describes where key reports currently go.
type EndpointSource interface {
	Transport() status.Transport
	PreferredActive() bool
	ActiveProfile() effect.BLEProfile
	ProfileState(i int) status.ProfileState
}

// PeerSource reports the split link as seen from the peripheral half.
type PeerSource interface {
	Bonded() bool
	Connected() bool
}

// Sources bundles the external read-only collaborators. Nil fields fall back
// to inert defaults so a bench setup without real telemetry still runs.
type Sources struct {
	Battery    BatterySource
	Keymap     KeymapSource
	Indicators IndicatorSource
	Endpoints  EndpointSource
	Peer       PeerSource
}

func (s Sources) withDefaults() Sources {
	if s.Battery == nil {
		s.Battery = FixedBattery(100)
	}
	if s.Keymap == nil {
		s.Keymap = staticKeymap{}
	}
	if s.Indicators == nil {
		s.Indicators = staticIndicators{}
	}
	if s.Endpoints == nil {
		s.Endpoints = staticEndpoints{}
	}
	if s.Peer == nil {
		s.Peer = staticPeer{}
	}
	return s
}

// FixedBattery is a BatterySource pinned to one level.
type FixedBattery int

func (f FixedBattery) Level() int { return int(f) }

type staticKeymap struct{}

func (staticKeymap) HighestLayer() uint8    { return 0 }
func (staticKeymap) LayerActive(i int) bool { return i == 0 }

type staticIndicators struct{}

func (staticIndicators) Indicators() hid.Indicators { return 0 }

type staticEndpoints struct{}

func (staticEndpoints) Transport() status.Transport { return status.TransportUSB }
func (staticEndpoints) PreferredActive() bool       { return true }
func (staticEndpoints) ActiveProfile() effect.BLEProfile {
	return effect.BLEProfile{Index: 0, Connected: true}
}
func (staticEndpoints) ProfileState(i int) status.ProfileState {
	if i == 0 {
		return status.ProfileConnected
	}
	return status.ProfileDisconnected
}

type staticPeer struct{}

func (staticPeer) Bonded() bool    { return true }
func (staticPeer) Connected() bool { return true }
