// Package effect implements the stateful underglow animations. Each tick the
// engine advances the animation counter for the selected effect and rewrites
// its pixel buffer; compositing with the status overlay happens downstream.
package effect

import (
	"github.com/example/underglow/internal/color"
	"github.com/example/underglow/internal/config"
	"github.com/example/underglow/internal/hid"
)

// Kind enumerates the animation effects.
type Kind uint8

const (
	Solid Kind = iota
	Breathe
	Spectrum
	Swirl
	Kinesis
	Battery
	Test

	Count // number of effects, not a valid selection
)

var kindNames = [...]string{"solid", "breathe", "spectrum", "swirl", "kinesis", "battery", "test"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// breathePeriod is the triangle-wave period of the breathe effect in
// animation-step units (one tick advances speed*10 units).
const breathePeriod = 2400

// testSweepSteps is the hue budget of the diagnostic sweep, one full hue
// cycle per monitored pixel.
const testSweepSteps = color.HueMax * 3

// BLEProfile is the advertising/connection snapshot of the active host
// profile, consumed by the Kinesis indicator pixels.
type BLEProfile struct {
	Index     int
	Open      bool // advertising, not yet paired
	Connected bool
}

// Peer is the split-link snapshot seen from the peripheral half.
type Peer struct {
	Bonded    bool
	Connected bool
}

// Inputs is everything an effect may read from the outside world this tick.
type Inputs struct {
	Battery    int
	Layer      uint8
	Indicators hid.Indicators
	Profile    BLEProfile
	Peer       Peer
}

// batteryLevels are the descending severity thresholds for the battery
// effect; batteryColors has one extra entry for "below all thresholds".
var batteryLevels = [...]int{80, 50, 20}

var batteryHex = [...]uint32{0x00FF00, 0xFFFF00, 0xFF8C00, 0xFF0000}

// btHex colors the Bluetooth profile pixel by profile index.
var btHex = [...]uint32{0xFFFFFF, 0x0000FF, 0xFF0000, 0x00FF00}

// layerHex is the shared 8-entry layer palette. Both halves index it with
// the same value for layers below 8.
var layerHex = [...]uint32{
	0x000000, 0xFFFFFF, 0x0000FF, 0x00FF00,
	0xFF0000, 0xFF00FF, 0x00FFFF, 0xFFFF00,
}

// LayerColors maps a layer number to the (left,right) palette pair. The
// first 8 layers show the same color on both halves. Above that the right
// index cycles within six-slot blocks while the left index advances once per
// block, and the right index skips over the current left index so pairs
// never collide with the single-color layers.
func LayerColors(layer uint8) (left, right uint8) {
	if layer < 8 {
		return layer, layer
	}

	left = 1 + (layer-8)/6
	right = 1 + (layer-8)%6

	if left <= right {
		right++
	}
	return left, right
}

// Config fixes the per-device parameters of the engine.
type Config struct {
	Pixels    int
	Range     color.Range
	Role      config.Role
	Positions config.Positions
	ModColor  uint32 // lock-indicator pixel color
}

// Engine owns the effect pixel buffer and the per-effect animation counter.
// It is not safe for concurrent use; the controller serializes access.
type Engine struct {
	cfg Config

	buf  []color.RGB
	step uint16

	// blink generator phase, one slot per blink rate
	blink [2]bool

	// triggered latches once the diagnostic sweep has run
	triggered bool
}

func New(cfg Config) *Engine {
	if cfg.ModColor == 0 {
		cfg.ModColor = 0xFFFFFF
	}
	return &Engine{
		cfg: cfg,
		buf: make([]color.RGB, cfg.Pixels),
	}
}

// Buffer exposes the engine-owned pixel buffer for compositing. Callers must
// not retain it across ticks.
func (e *Engine) Buffer() []color.RGB { return e.buf }

// Reset rewinds the animation counter; selecting a new effect does this.
func (e *Engine) Reset() { e.step = 0 }

// Step advances one tick of the given effect.
func (e *Engine) Step(kind Kind, c color.HSB, speed int, in Inputs) {
	switch kind {
	case Solid:
		e.solid(c)
	case Breathe:
		e.breathe(c, speed)
	case Spectrum:
		e.spectrum(c, speed)
	case Swirl:
		e.swirl(c, speed)
	case Kinesis:
		e.kinesis(in)
	case Battery:
		e.battery(in.Battery)
	case Test:
		e.test(c)
	case Count:
		// unreachable; Count is rejected by SelectEffect
	}
}

func (e *Engine) solid(c color.HSB) {
	px := e.cfg.Range.ScaleMinMax(c).RGB()
	for i := range e.buf {
		e.buf[i] = px
	}
}

func (e *Engine) breathe(c color.HSB, speed int) {
	c.B = abs(int(e.step)-breathePeriod/2) / 12
	px := e.cfg.Range.ScaleZeroMax(c).RGB()
	for i := range e.buf {
		e.buf[i] = px
	}

	e.step += uint16(speed * 10)
	if e.step >= breathePeriod {
		e.step = 0
	}
}

func (e *Engine) spectrum(c color.HSB, speed int) {
	c.H = int(e.step)
	px := e.cfg.Range.ScaleMinMax(c).RGB()
	for i := range e.buf {
		e.buf[i] = px
	}

	e.step = (e.step + uint16(speed)) % color.HueMax
}

func (e *Engine) swirl(c color.HSB, speed int) {
	for i := range e.buf {
		c.H = (color.HueMax/len(e.buf)*i + int(e.step)) % color.HueMax
		e.buf[i] = e.cfg.Range.ScaleMinMax(c).RGB()
	}

	e.step = (e.step + uint16(speed*2)) % color.HueMax
}

func (e *Engine) battery(level int) {
	sev := 0
	for ; sev < len(batteryLevels) && level < batteryLevels[sev]; sev++ {
	}

	px := e.cfg.Range.Hex(batteryHex[sev])
	for i := range e.buf {
		e.buf[i] = px
	}
}

// blinkStep advances the shared blink counter for the given rate slot and
// reports whether the blinked pixel is currently dark.
func (e *Engine) blinkStep(idx int, limit uint16) bool {
	e.step++
	if e.step > limit {
		e.blink[idx] = !e.blink[idx]
		e.step = 0
	}
	return !e.blink[idx]
}

func (e *Engine) indicatorColor(in Inputs, bit hid.Indicators) color.RGB {
	if in.Indicators.Has(bit) {
		return e.cfg.Range.Hex(e.cfg.ModColor)
	}
	return color.RGB{}
}

func (e *Engine) kinesis(in Inputs) {
	blinking := false

	left, right := LayerColors(in.Layer)

	pos := e.cfg.Positions
	if e.cfg.Role == config.RoleCentral {
		e.setPixel(pos.CapsLock, 0, e.indicatorColor(in, hid.CapsLock))

		// profile pixel blinks fast while open for pairing, slowly while
		// paired but disconnected
		if in.Profile.Open {
			blinking = e.blinkStep(0, 2)
		} else if !in.Profile.Connected {
			blinking = e.blinkStep(1, 13)
		}

		btPixel := color.RGB{}
		if in.Profile.Index < len(btHex) && !blinking {
			btPixel = e.cfg.Range.Hex(btHex[in.Profile.Index])
		}
		e.setAt(pos.BLEState, 0, 1, btPixel)

		e.setAt(pos.LayerState, 0, 2, e.cfg.Range.Hex(layerHex[left]))
		return
	}

	// peripheral half
	e.setPixel(pos.NumLock, 2, e.indicatorColor(in, hid.NumLock))
	e.setPixel(pos.ScrollLock, 1, e.indicatorColor(in, hid.ScrollLock))
	e.setAt(pos.LayerState, 0, 0, e.cfg.Range.Hex(layerHex[right]))

	// link trouble overrides the whole strip with blinking red
	alert := false
	if !in.Peer.Bonded {
		alert = true
		blinking = e.blinkStep(0, 2)
	} else if !in.Peer.Connected {
		alert = true
		blinking = e.blinkStep(1, 13)
	}
	if alert {
		px := color.RGB{}
		if !blinking {
			px = e.cfg.Range.Hex(0xFF0000)
		}
		for i := range e.buf {
			e.buf[i] = px
		}
	}
}

func (e *Engine) test(c color.HSB) {
	e.triggered = true

	for i := range e.buf {
		c.H = int(e.step) % color.HueMax
		e.buf[i] = e.cfg.Range.ScaleMinMax(c).RGB()
	}
	// sweep one pixel at a time: third, second, first
	if e.step < testSweepSteps {
		c.H = int(e.step) % color.HueMax
		e.fill3(color.RGB{}, color.RGB{}, e.cfg.Range.ScaleMinMax(c).RGB())
	}
	if e.step < 2*color.HueMax {
		c.H = int(e.step) % color.HueMax
		e.fill3(color.RGB{}, e.cfg.Range.ScaleMinMax(c).RGB(), color.RGB{})
	}
	if e.step < color.HueMax {
		c.H = int(e.step)
		e.fill3(e.cfg.Range.ScaleMinMax(c).RGB(), color.RGB{}, color.RGB{})
	}

	e.step += 20
	if e.step > testSweepSteps {
		white := color.RGB{R: 255, G: 255, B: 255}
		for i := range e.buf {
			e.buf[i] = white
		}
	}
}

// Triggered reports whether the diagnostic sweep has ever run.
func (e *Engine) Triggered() bool { return e.triggered }

// setPixel writes at the configured index, or the fallback when positions
// are not configured at all. A configured layout that leaves this indicator
// unmapped skips the write.
func (e *Engine) setPixel(configured *int, fallback int, px color.RGB) {
	i := fallback
	if e.cfg.Positions.Enabled() {
		if configured == nil {
			return
		}
		i = *configured
	}
	if i >= 0 && i < len(e.buf) {
		e.buf[i] = px
	}
}

// setAt writes at slot n of the configured position list, or the fallback
// when no positions are configured. A configured layout with a shorter list
// skips the write.
func (e *Engine) setAt(positions []int, n, fallback int, px color.RGB) {
	i := fallback
	if n < len(positions) {
		i = positions[n]
	} else if e.cfg.Positions.Enabled() {
		return
	}
	if i >= 0 && i < len(e.buf) {
		e.buf[i] = px
	}
}

// fill3 writes the first three pixels; the diagnostic sweep validates strip
// wiring one position at a time.
func (e *Engine) fill3(p0, p1, p2 color.RGB) {
	e.setIdx(0, p0)
	e.setIdx(1, p1)
	e.setIdx(2, p2)
}

func (e *Engine) setIdx(i int, px color.RGB) {
	if i < len(e.buf) {
		e.buf[i] = px
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
