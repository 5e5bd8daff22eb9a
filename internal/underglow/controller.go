package underglow

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/underglow/internal/color"
	"github.com/example/underglow/internal/compose"
	"github.com/example/underglow/internal/config"
	"github.com/example/underglow/internal/effect"
	"github.com/example/underglow/internal/sched"
	"github.com/example/underglow/internal/split"
	"github.com/example/underglow/internal/status"
	"github.com/example/underglow/internal/strip"
)

// Controller owns the full underglow state and the render pipeline. Public
// commands, event handling and the tick pass all serialize on one mutex; the
// tick itself runs on the scheduler's single consumer goroutine.
type Controller struct {
	cfg *config.Config
	log zerolog.Logger

	strip strip.Driver
	rail  Rail
	src   Sources

	mu      sync.Mutex
	on      bool
	color   color.HSB
	speed   int
	current effect.Kind

	eff     *effect.Engine
	overlay *status.Overlay
	out     []color.RGB

	// ledData is the display record: computed here on the central half,
	// mirrored from pushes on the peripheral half.
	ledData split.Record

	pusher *split.Pusher

	sleep sleepState

	ticker *sched.Ticker
	// gateActive shadows (on || status_active) for the timer gate, which
	// must not touch the main mutex.
	gateActive atomic.Bool
}

type sleepState struct {
	awake         bool
	onBeforeSleep bool
}

// Options configures New. Strip may be nil, in which case every command
// fails with ErrNotReady until one is provided.
type Options struct {
	Config *config.Config
	Strip  strip.Driver
	Rail   Rail
	Link   split.Link
	Src    Sources
	Log    zerolog.Logger

	// TickInterval overrides the 25 ms default; tests shorten it.
	TickInterval time.Duration
}

func New(o Options) *Controller {
	cfg := o.Config
	if cfg == nil {
		cfg = config.Default()
	}

	c := &Controller{
		cfg:     cfg,
		log:     o.Log,
		strip:   o.Strip,
		rail:    o.Rail,
		src:     o.Src.withDefaults(),
		color:   cfg.Start.Color,
		speed:   cfg.Start.Speed,
		current: effect.Kind(cfg.Start.Effect),
		out:     make([]color.RGB, cfg.Pixels),
		sleep:   sleepState{awake: true},
	}

	c.eff = effect.New(effect.Config{
		Pixels:    cfg.Pixels,
		Range:     cfg.Brightness,
		Role:      cfg.Role,
		Positions: cfg.Indicators,
		ModColor:  cfg.ModColor,
	})
	c.overlay = status.New(status.Config{
		Pixels:    cfg.Pixels,
		Range:     cfg.Brightness,
		Positions: cfg.Indicators,
	}, o.Log)

	if cfg.Role == config.RoleCentral {
		c.pusher = split.NewPusher(o.Link, o.Log)
	}

	c.ledData = split.Record{Effect: uint8(c.current)}

	c.ticker = sched.New(o.TickInterval, c.gateActive.Load, c.tick)
	return c
}

// Start applies the configured power-on state. The strip begins dark; the
// tick timer only runs once something is visible.
func (c *Controller) Start() error {
	if c.cfg.Start.On {
		return c.On()
	}
	return c.Off()
}

// Close releases the scheduler. The controller cannot be restarted.
func (c *Controller) Close() {
	c.ticker.Close()
}

// TickerRunning reports whether the tick timer is active.
func (c *Controller) TickerRunning() bool { return c.ticker.Running() }

// Tick enqueues one pipeline pass, subject to the same single-slot rule as
// the timer. Tests use it to step the pipeline deterministically.
func (c *Controller) Tick() { c.ticker.Trigger() }

// On enables the underglow: power rail up, animation restarted, timer
// running. On the central half the new on-state is pushed to the peer.
func (c *Controller) On() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}

	c.railEnable()
	c.on = true
	c.eff.Reset()
	c.syncGate()
	c.ticker.Start()

	if c.pusher != nil {
		c.ledData.On = true
		c.pusher.Push(c.ledData)
	}
	return nil
}

// Off disables the underglow. The strip is blanked synchronously before the
// timer stops so no stale frame lingers.
func (c *Controller) Off() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}

	c.railDisable()

	buf := c.eff.Buffer()
	for i := range buf {
		buf[i] = color.RGB{}
	}
	if err := c.strip.Write(buf); err != nil {
		c.log.Error().Err(err).Msg("strip blank failed")
	}

	c.on = false
	c.syncGate()
	if !c.overlay.Active() {
		c.ticker.Stop()
	}

	if c.pusher != nil {
		c.ledData.On = false
		c.pusher.Push(c.ledData)
	}
	return nil
}

// Toggle flips the on/off state.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	on := c.on
	c.mu.Unlock()
	if on {
		return c.Off()
	}
	return c.On()
}

// SelectEffect switches to the effect at index i and rewinds its animation.
func (c *Controller) SelectEffect(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}
	if i < 0 || i >= int(effect.Count) {
		return ErrInvalidArgument
	}

	c.current = effect.Kind(i)
	c.eff.Reset()

	if c.pusher != nil {
		c.ledData.Effect = uint8(i)
		c.pusher.Push(c.ledData)
	}
	return nil
}

// CycleEffect advances the selection by direction, wrapping at both ends.
func (c *Controller) CycleEffect(direction int) error {
	c.mu.Lock()
	next := (int(c.current) + int(effect.Count) + direction) % int(effect.Count)
	c.mu.Unlock()
	return c.SelectEffect(next)
}

// CurrentEffect returns the selected effect.
func (c *Controller) CurrentEffect() effect.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetColor replaces the base color. Out-of-range components are rejected
// outright, never clamped.
func (c *Controller) SetColor(h color.HSB) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}
	if !h.Valid() {
		return ErrInvalidArgument
	}
	c.color = h
	return nil
}

// Color returns the current base color.
func (c *Controller) Color() color.HSB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color
}

// ChangeHue steps the hue, wrapping around the circle.
func (c *Controller) ChangeHue(direction int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}
	c.color.H = (c.color.H + color.HueMax + direction*c.cfg.Steps.Hue) % color.HueMax
	return nil
}

// ChangeSat steps the saturation, clamped to [0,100].
func (c *Controller) ChangeSat(direction int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}
	c.color.S = clamp(c.color.S+direction*c.cfg.Steps.Sat, 0, color.SatMax)
	return nil
}

// ChangeBrightness steps the brightness, clamped to [0,100].
func (c *Controller) ChangeBrightness(direction int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}
	c.color.B = clamp(c.color.B+direction*c.cfg.Steps.Brt, 0, color.BrtMax)
	return nil
}

// ChangeSpeed steps the animation speed within 1..5. Stepping down from 1 is
// a silent no-op.
func (c *Controller) ChangeSpeed(direction int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}
	if c.speed == 1 && direction < 0 {
		return nil
	}
	c.speed = clamp(c.speed+direction, 1, 5)
	return nil
}

// Speed returns the animation speed.
func (c *Controller) Speed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// TriggerStatus (re)starts the status overlay. When the main effect is off
// the timer and power rail come up just for the overlay and are released
// again once the fade-out completes.
func (c *Controller) TriggerStatus() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strip == nil {
		return ErrNotReady
	}

	c.overlay.Trigger()
	c.syncGate()
	if !c.on {
		c.railEnable()
	}
	c.ticker.Start()
	return nil
}

// StatusActive reports whether the overlay is shown.
func (c *Controller) StatusActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlay.Active()
}

// SetPeriph adopts a display record pushed by the central half.
func (c *Controller) SetPeriph(r split.Record) error {
	c.mu.Lock()
	mirroredOn := c.on
	c.ledData = r
	c.current = effect.Kind(r.Effect)
	c.mu.Unlock()

	c.log.Debug().
		Uint8("layer", r.Layer).
		Uint8("indicators", uint8(r.Indicators)).
		Bool("on", r.On).
		Msg("display record updated")

	if !mirroredOn && r.On {
		return c.On()
	}
	if mirroredOn && !r.On {
		return c.Off()
	}
	return nil
}

// Snapshot is a copy of the observable controller state.
type Snapshot struct {
	On           bool      `json:"on"`
	Effect       string    `json:"effect"`
	Color        color.HSB `json:"color"`
	Speed        int       `json:"speed"`
	StatusActive bool      `json:"statusActive"`
	Battery      int       `json:"battery"`
	Layer        uint8     `json:"layer"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		On:           c.on,
		Effect:       c.current.String(),
		Color:        c.color,
		Speed:        c.speed,
		StatusActive: c.overlay.Active(),
		Battery:      c.src.Battery.Level(),
		Layer:        c.ledData.Layer,
	}
}

// tick is one pipeline pass: advance the effect, overlay the status display,
// composite, dim, write.
func (c *Controller) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.on && !c.overlay.Active() {
		return
	}

	if c.current == effect.Kinesis && c.pusher != nil {
		c.refreshRecord()
	}

	// while off the effect buffer stays blanked, so a status overlay fades
	// over darkness and the final blend-0 frame leaves the strip dark
	if c.on {
		c.eff.Step(c.current, c.color, c.speed, c.effectInputs())
	}

	blend := 0
	if c.overlay.Active() {
		var done bool
		blend, done = c.overlay.Render(c.statusInputs())
		if done {
			c.syncGate()
			if !c.on {
				// release the timer and rail; the pass still runs so the
				// final frame below blanks the strip
				c.ticker.Stop()
				c.railDisable()
			}
		}
	}

	out := compose.Compose(c.out, c.eff.Buffer(), c.overlay.Buffer(), blend, c.src.Battery.Level())
	if err := c.strip.Write(out); err != nil {
		c.log.Error().Err(err).Msg("strip update failed")
	}
}

// refreshRecord recomputes the synchronized record from the layer and
// indicator sources and pushes it when it changed.
func (c *Controller) refreshRecord() {
	old := c.ledData
	c.ledData.Indicators = c.src.Indicators.Indicators()
	c.ledData.Layer = c.src.Keymap.HighestLayer()

	if old.Layer != c.ledData.Layer || old.Indicators != c.ledData.Indicators {
		c.pusher.Push(c.ledData)
	}
}

func (c *Controller) effectInputs() effect.Inputs {
	return effect.Inputs{
		Battery:    c.src.Battery.Level(),
		Layer:      c.ledData.Layer,
		Indicators: c.ledData.Indicators,
		Profile:    c.src.Endpoints.ActiveProfile(),
		Peer: effect.Peer{
			Bonded:    c.src.Peer.Bonded(),
			Connected: c.src.Peer.Connected(),
		},
	}
}

func (c *Controller) statusInputs() status.Inputs {
	in := status.Inputs{
		Battery:         c.src.Battery.Level(),
		Indicators:      c.src.Indicators.Indicators(),
		LayerActive:     c.src.Keymap.LayerActive,
		Transport:       c.src.Endpoints.Transport(),
		PreferredActive: c.src.Endpoints.PreferredActive(),
		ActiveProfile:   c.src.Endpoints.ActiveProfile().Index,
		ProfileState:    c.src.Endpoints.ProfileState,
	}
	if c.pusher != nil {
		in.RemoteBattery = c.pusher.RemoteBattery
	}
	return in
}

// syncGate mirrors (on || status_active) into the timer gate.
func (c *Controller) syncGate() {
	c.gateActive.Store(c.on || c.overlay.Active())
}

func (c *Controller) railEnable() {
	if c.rail == nil {
		return
	}
	if err := c.rail.Enable(); err != nil {
		c.log.Error().Err(err).Msg("unable to enable ext power")
	}
}

func (c *Controller) railDisable() {
	if c.rail == nil {
		return
	}
	if err := c.rail.Disable(); err != nil {
		c.log.Error().Err(err).Msg("unable to disable ext power")
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
