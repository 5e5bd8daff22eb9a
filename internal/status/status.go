// Package status renders the transient status overlay: battery levels for
// both halves, lock indicators, active layers and endpoint state, painted
// into a dedicated buffer and composited over the active effect with a
// timed fade envelope.
package status

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/example/underglow/internal/color"
	"github.com/example/underglow/internal/compose"
	"github.com/example/underglow/internal/config"
	"github.com/example/underglow/internal/hid"
	"github.com/example/underglow/internal/split"
)

// Envelope phase boundaries in ticks (25 ms each): 500 ms fade-in, hold at
// full weight until 8 s, 2 s fade-out, done at 10 s.
const (
	fadeInEnd  = 500 / 25
	holdEnd    = 8000 / 25
	fadeOutEnd = 10000 / 25
)

// Transport identifies the active endpoint.
type Transport uint8

const (
	TransportNone Transport = iota
	TransportUSB
	TransportBLE
)

// ProfileState is the pairing state of one host profile.
type ProfileState int

const (
	ProfileDisconnected ProfileState = iota
	ProfilePaired
	ProfileConnected
)

// Inputs is the world snapshot the overlay paints from.
type Inputs struct {
	Battery       int
	RemoteBattery func(idx int) (int, error) // nil disables the remote gauge
	Indicators    hid.Indicators
	LayerActive   func(i int) bool

	Transport       Transport
	PreferredActive bool // preferred transport is the one in use
	ActiveProfile   int
	ProfileState    func(i int) ProfileState
}

// Config fixes the overlay geometry.
type Config struct {
	Pixels    int
	Range     color.Range
	Positions config.Positions
	Profiles  int // host profile slots shown on the BLE pixels
}

// Overlay owns the status pixel buffer and the fade envelope counter.
// Not safe for concurrent use; the controller serializes access.
type Overlay struct {
	cfg Config
	log zerolog.Logger

	buf    []color.RGB
	step   uint16
	active bool

	red, yellow, green, dullGreen, magenta, white color.RGB
}

func New(cfg Config, log zerolog.Logger) *Overlay {
	if cfg.Profiles <= 0 {
		cfg.Profiles = 5
	}
	return &Overlay{
		cfg:       cfg,
		log:       log,
		buf:       make([]color.RGB, cfg.Pixels),
		red:       cfg.Range.StatusHex(0xFF0000),
		yellow:    cfg.Range.StatusHex(0xFFFF00),
		green:     cfg.Range.StatusHex(0x00FF00),
		dullGreen: cfg.Range.StatusHex(0x00FF68),
		magenta:   cfg.Range.StatusHex(0xFF00FF),
		white:     cfg.Range.StatusHex(0xFFFFFF),
	}
}

// Buffer exposes the overlay-owned pixel buffer for compositing.
func (o *Overlay) Buffer() []color.RGB { return o.buf }

// Active reports whether the overlay is currently shown.
func (o *Overlay) Active() bool { return o.active }

// Trigger (re)starts the overlay; an already-active overlay restarts its
// envelope from zero.
func (o *Overlay) Trigger() {
	o.active = true
	o.step = 0
}

// Render repaints the status buffer, advances the envelope one tick and
// returns the blend weight in [0,256]. done reports that the fade-out has
// completed this tick and the overlay deactivated itself.
func (o *Overlay) Render(in Inputs) (blend int, done bool) {
	if !o.active {
		return 0, false
	}
	if o.cfg.Positions.Enabled() {
		o.paint(in)
	}
	blend, done = o.envelope()
	o.step++
	return blend, done
}

func (o *Overlay) envelope() (int, bool) {
	s := int(o.step)
	switch {
	case s < fadeInEnd:
		return s * compose.FullBlend / fadeInEnd, false
	case s < holdEnd:
		return compose.FullBlend, false
	case s < fadeOutEnd:
		return compose.FullBlend - (s-holdEnd)*compose.FullBlend/(fadeOutEnd-holdEnd), false
	default:
		o.active = false
		o.step = 0
		return 0, true
	}
}

func (o *Overlay) paint(in Inputs) {
	for i := range o.buf {
		o.buf[i] = color.RGB{}
	}

	pos := o.cfg.Positions

	o.batteryGauge(in.Battery, pos.BatLHS)

	if in.RemoteBattery != nil && len(pos.BatRHS) > 0 {
		level, err := in.RemoteBattery(0)
		switch {
		case err == nil:
			o.batteryGauge(level, pos.BatRHS)
		case errors.Is(err, split.ErrNotConnected):
			o.fill(o.red, pos.BatRHS)
		case errors.Is(err, split.ErrInvalidIndex):
			o.log.Error().Msg("invalid peripheral index requested for battery level read: 0")
		default:
			// transient fetch failure renders the same alert as no link
			o.fill(o.red, pos.BatRHS)
		}
	}

	if in.Indicators.Has(hid.CapsLock) {
		o.setOpt(pos.CapsLock, o.red)
	}
	if in.Indicators.Has(hid.NumLock) {
		o.setOpt(pos.NumLock, o.red)
	}
	if in.Indicators.Has(hid.ScrollLock) {
		o.setOpt(pos.ScrollLock, o.red)
	}

	if in.LayerActive != nil {
		for i, px := range pos.LayerState {
			if in.LayerActive(i) {
				o.set(px, o.magenta)
			}
		}
	}

	if !in.PreferredActive {
		o.setOpt(pos.OutputFallback, o.red)
	}

	if in.ProfileState != nil {
		n := o.cfg.Profiles
		if len(pos.BLEState) < n {
			n = len(pos.BLEState)
		}
		for i := 0; i < n; i++ {
			switch st := in.ProfileState(i); {
			case st == ProfileConnected && in.Transport == TransportBLE && in.ActiveProfile == i:
				o.set(pos.BLEState[i], o.white)
			case st == ProfileConnected:
				o.set(pos.BLEState[i], o.dullGreen)
			case st == ProfilePaired:
				o.set(pos.BLEState[i], o.dullGreen)
			default:
				o.set(pos.BLEState[i], o.red)
			}
		}
	}

	if in.Transport == TransportUSB {
		o.setOpt(pos.USBState, o.white)
	}
}

// batteryGauge grades the level across the given positions: pixel i lights
// when the level reaches i/(n-1) of full, colored by severity.
func (o *Overlay) batteryGauge(level int, positions []int) {
	if len(positions) == 0 {
		return
	}

	var px color.RGB
	switch {
	case level > 40:
		px = o.green
	case level > 20:
		px = o.yellow
	default:
		px = o.red
	}

	if len(positions) == 1 {
		o.set(positions[0], px)
		return
	}
	for i, p := range positions {
		min := i * 100 / (len(positions) - 1)
		if level >= min {
			o.set(p, px)
		}
	}
}

func (o *Overlay) fill(px color.RGB, positions []int) {
	for _, p := range positions {
		o.set(p, px)
	}
}

func (o *Overlay) set(i int, px color.RGB) {
	if i >= 0 && i < len(o.buf) {
		o.buf[i] = px
	}
}

// setOpt skips indicators the layout leaves unmapped.
func (o *Overlay) setOpt(p *int, px color.RGB) {
	if p != nil {
		o.set(*p, px)
	}
}
