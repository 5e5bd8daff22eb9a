package underglow

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/underglow/internal/color"
	"github.com/example/underglow/internal/config"
	"github.com/example/underglow/internal/effect"
	"github.com/example/underglow/internal/hid"
	"github.com/example/underglow/internal/split"
	"github.com/example/underglow/internal/strip"
)

type recordingLink struct {
	mu     sync.Mutex
	pushed []split.Record
}

func (r *recordingLink) Push(rec split.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushed = append(r.pushed, rec)
	return nil
}

func (r *recordingLink) RemoteBattery(idx int) (int, error) {
	if idx != 0 {
		return 0, split.ErrInvalidIndex
	}
	return 88, nil
}

func (r *recordingLink) records() []split.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]split.Record(nil), r.pushed...)
}

type fakeRail struct {
	mu       sync.Mutex
	enables  int
	disables int
}

func (r *fakeRail) Enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enables++
	return nil
}

func (r *fakeRail) Disable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disables++
	return nil
}

func (r *fakeRail) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enables, r.disables
}

type volatileKeymap struct {
	mu    sync.Mutex
	layer uint8
}

func (k *volatileKeymap) HighestLayer() uint8 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.layer
}

func (k *volatileKeymap) LayerActive(i int) bool { return uint8(i) == k.HighestLayer() }

func (k *volatileKeymap) set(l uint8) {
	k.mu.Lock()
	k.layer = l
	k.mu.Unlock()
}

func testConfig(role config.Role) *config.Config {
	cfg := config.Default()
	cfg.Pixels = 4
	cfg.Role = role
	cfg.AutoOff = config.AutoOff{Idle: true, USB: true}
	return cfg
}

func newTestController(t *testing.T, opts Options) (*Controller, *strip.Fake) {
	t.Helper()
	fake := &strip.Fake{}
	if opts.Strip == nil {
		opts.Strip = fake
	} else {
		fake, _ = opts.Strip.(*strip.Fake)
	}
	if opts.Config == nil {
		opts.Config = testConfig(config.RoleCentral)
	}
	opts.Log = zerolog.Nop()
	opts.TickInterval = time.Hour // tests drive tick() directly
	c := New(opts)
	t.Cleanup(c.Close)
	return c, fake
}

func TestOnStartsTimerAndPushesState(t *testing.T) {
	link := &recordingLink{}
	c, _ := newTestController(t, Options{Link: link})

	require.NoError(t, c.On())
	assert.True(t, c.TickerRunning())

	recs := link.records()
	require.NotEmpty(t, recs)
	assert.True(t, recs[len(recs)-1].On)
}

func TestOffBlanksStripSynchronously(t *testing.T) {
	link := &recordingLink{}
	c, fake := newTestController(t, Options{Link: link})

	require.NoError(t, c.On())
	c.tick()
	require.NotEqual(t, color.RGB{}, fake.Last()[0], "solid effect should light the strip")

	require.NoError(t, c.Off())
	assert.False(t, c.TickerRunning())
	for _, px := range fake.Last() {
		assert.Equal(t, color.RGB{}, px)
	}

	recs := link.records()
	assert.False(t, recs[len(recs)-1].On)
}

func TestToggleFlips(t *testing.T) {
	c, _ := newTestController(t, Options{})
	require.NoError(t, c.Toggle())
	assert.True(t, c.Snapshot().On)
	require.NoError(t, c.Toggle())
	assert.False(t, c.Snapshot().On)
}

func TestCommandsFailWithoutStrip(t *testing.T) {
	c := New(Options{Config: testConfig(config.RoleCentral), Log: zerolog.Nop(), TickInterval: time.Hour})
	defer c.Close()

	assert.ErrorIs(t, c.On(), ErrNotReady)
	assert.ErrorIs(t, c.SelectEffect(0), ErrNotReady)
	assert.ErrorIs(t, c.SetColor(color.HSB{}), ErrNotReady)
	assert.ErrorIs(t, c.TriggerStatus(), ErrNotReady)
}

func TestSelectEffectBounds(t *testing.T) {
	c, _ := newTestController(t, Options{})

	assert.ErrorIs(t, c.SelectEffect(-1), ErrInvalidArgument)
	assert.ErrorIs(t, c.SelectEffect(int(effect.Count)), ErrInvalidArgument)
	for i := 0; i < int(effect.Count); i++ {
		assert.NoError(t, c.SelectEffect(i), "effect %d", i)
	}
}

func TestCycleEffectWraps(t *testing.T) {
	c, _ := newTestController(t, Options{})

	require.NoError(t, c.SelectEffect(0))
	require.NoError(t, c.CycleEffect(-1))
	assert.Equal(t, effect.Test, c.CurrentEffect())
	require.NoError(t, c.CycleEffect(1))
	assert.Equal(t, effect.Solid, c.CurrentEffect())
}

func TestSetColorRejectsOutOfRange(t *testing.T) {
	c, _ := newTestController(t, Options{})

	assert.ErrorIs(t, c.SetColor(color.HSB{H: 360, S: 50, B: 50}), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetColor(color.HSB{H: 0, S: 101, B: 50}), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetColor(color.HSB{H: 0, S: 50, B: -1}), ErrInvalidArgument)

	want := color.HSB{H: 359, S: 100, B: 100}
	require.NoError(t, c.SetColor(want))
	assert.Equal(t, want, c.Color())
}

func TestChangeHueWraps(t *testing.T) {
	c, _ := newTestController(t, Options{})

	require.NoError(t, c.SetColor(color.HSB{H: 0, S: 100, B: 100}))
	require.NoError(t, c.ChangeHue(-1))
	assert.Equal(t, 350, c.Color().H)
	require.NoError(t, c.ChangeHue(1))
	assert.Equal(t, 0, c.Color().H)
}

func TestChangeSatBrightnessClamp(t *testing.T) {
	c, _ := newTestController(t, Options{})

	require.NoError(t, c.SetColor(color.HSB{H: 0, S: 95, B: 5}))
	require.NoError(t, c.ChangeSat(1))
	assert.Equal(t, 100, c.Color().S)
	require.NoError(t, c.ChangeBrightness(-1))
	assert.Equal(t, 0, c.Color().B)
}

func TestChangeSpeedFloor(t *testing.T) {
	c, _ := newTestController(t, Options{})

	for i := 0; i < 10; i++ {
		require.NoError(t, c.ChangeSpeed(-1))
	}
	assert.Equal(t, 1, c.Speed())
	for i := 0; i < 10; i++ {
		require.NoError(t, c.ChangeSpeed(1))
	}
	assert.Equal(t, 5, c.Speed())
}

func TestStatusOverlayWhileOff(t *testing.T) {
	rail := &fakeRail{}
	cfg := testConfig(config.RoleCentral)
	cfg.Indicators = config.Positions{
		BatLHS:     []int{0, 1},
		BLEState:   []int{2},
		LayerState: []int{3},
	}
	c, fake := newTestController(t, Options{Config: cfg, Rail: rail})

	require.NoError(t, c.Off())
	require.NoError(t, c.TriggerStatus())
	assert.True(t, c.StatusActive())
	assert.True(t, c.TickerRunning())

	lit := false
	for i := 0; i < 500 && c.StatusActive(); i++ {
		c.tick()
		for _, px := range fake.Last() {
			if px != (color.RGB{}) {
				lit = true
			}
		}
	}

	assert.True(t, lit, "overlay never reached the strip")
	assert.False(t, c.StatusActive())
	assert.False(t, c.TickerRunning(), "timer must release once the fade-out ends")

	enables, disables := rail.counts()
	assert.Positive(t, enables)
	assert.Positive(t, disables)

	for _, px := range fake.Last() {
		assert.Equal(t, color.RGB{}, px, "final frame must blank the strip")
	}
}

func TestCriticalBatteryBlanksOutput(t *testing.T) {
	c, fake := newTestController(t, Options{Src: Sources{Battery: FixedBattery(5)}})

	require.NoError(t, c.On())
	c.tick()

	require.NotNil(t, fake.Last())
	for _, px := range fake.Last() {
		assert.Equal(t, color.RGB{}, px)
	}
}

func TestLowBatteryHalvesOutput(t *testing.T) {
	bright, dim := &strip.Fake{}, &strip.Fake{}

	run := func(dst *strip.Fake, level int) {
		c, _ := newTestController(t, Options{Strip: dst, Src: Sources{Battery: FixedBattery(level)}})
		require.NoError(t, c.On())
		c.tick()
	}
	run(bright, 100)
	run(dim, 15)

	for i := range bright.Last() {
		assert.Equal(t, bright.Last()[i].R>>1, dim.Last()[i].R, "pixel %d", i)
	}
}

func TestKinesisLayerChangePushesOnce(t *testing.T) {
	link := &recordingLink{}
	keymap := &volatileKeymap{}
	c, _ := newTestController(t, Options{Link: link, Src: Sources{Keymap: keymap}})

	require.NoError(t, c.SelectEffect(int(effect.Kinesis)))
	require.NoError(t, c.On())
	c.tick()
	before := len(link.records())

	keymap.set(3)
	c.tick()
	c.tick()
	c.tick()

	recs := link.records()
	require.Len(t, recs, before+1, "unchanged record must not re-push")
	assert.Equal(t, uint8(3), recs[len(recs)-1].Layer)
}

func TestAutoStateIdempotent(t *testing.T) {
	c, _ := newTestController(t, Options{})
	require.NoError(t, c.On())

	// sleep remembers the on intent
	require.NoError(t, c.HandleEvent(ActivityChanged{Active: false}))
	assert.False(t, c.Snapshot().On)
	require.NoError(t, c.HandleEvent(ActivityChanged{Active: false}))
	assert.False(t, c.Snapshot().On)

	require.NoError(t, c.HandleEvent(ActivityChanged{Active: true}))
	assert.True(t, c.Snapshot().On)
	require.NoError(t, c.HandleEvent(ActivityChanged{Active: true}))
	assert.True(t, c.Snapshot().On)
}

func TestAutoStateRestoresOffIntent(t *testing.T) {
	c, _ := newTestController(t, Options{})
	require.NoError(t, c.Off())

	require.NoError(t, c.HandleEvent(PowerSourceChanged{Powered: false}))
	require.NoError(t, c.HandleEvent(PowerSourceChanged{Powered: true}))
	assert.False(t, c.Snapshot().On, "waking must not turn on a light the user left off")
}

func TestEventsRejectedWhenFeatureDisabled(t *testing.T) {
	cfg := testConfig(config.RoleCentral)
	cfg.AutoOff = config.AutoOff{}
	c, _ := newTestController(t, Options{Config: cfg})

	assert.ErrorIs(t, c.HandleEvent(ActivityChanged{Active: false}), ErrNotSupported)
	assert.ErrorIs(t, c.HandleEvent(PowerSourceChanged{Powered: false}), ErrNotSupported)
}

func TestPeripheralRejectsLinkEvents(t *testing.T) {
	c, _ := newTestController(t, Options{Config: testConfig(config.RolePeripheral)})
	assert.ErrorIs(t, c.HandleEvent(PeripheralStatusChanged{Connected: true}), ErrNotSupported)
}

func TestPowerSourceChangePushesRecord(t *testing.T) {
	link := &recordingLink{}
	c, _ := newTestController(t, Options{Link: link})
	require.NoError(t, c.On())
	before := len(link.records())

	require.NoError(t, c.HandleEvent(PowerSourceChanged{Powered: false}))
	recs := link.records()
	assert.Greater(t, len(recs), before)
}

func TestReconnectRepushesViaEvent(t *testing.T) {
	link := &recordingLink{}
	c, _ := newTestController(t, Options{Link: link})
	c.pusher.Settle = 10 * time.Millisecond

	require.NoError(t, c.On())
	before := len(link.records())

	require.NoError(t, c.HandleEvent(PeripheralStatusChanged{Connected: true}))
	assert.Eventually(t, func() bool {
		return len(link.records()) == before+1
	}, time.Second, time.Millisecond)
	assert.True(t, link.records()[before].On)
}

func TestSetPeriphMirrorsRecord(t *testing.T) {
	c, _ := newTestController(t, Options{Config: testConfig(config.RolePeripheral)})

	rec := split.Record{Layer: 4, Indicators: hid.NumLock, On: true, Effect: uint8(effect.Kinesis)}
	require.NoError(t, c.SetPeriph(rec))

	snap := c.Snapshot()
	assert.True(t, snap.On)
	assert.Equal(t, effect.Kinesis.String(), snap.Effect)
	assert.Equal(t, uint8(4), snap.Layer)
	assert.True(t, c.TickerRunning())

	rec.On = false
	require.NoError(t, c.SetPeriph(rec))
	assert.False(t, c.Snapshot().On)
	assert.False(t, c.TickerRunning())
}

func TestSnapshotReportsSources(t *testing.T) {
	c, _ := newTestController(t, Options{Src: Sources{Battery: FixedBattery(42)}})
	snap := c.Snapshot()
	assert.Equal(t, 42, snap.Battery)
	assert.Equal(t, "solid", snap.Effect)
	assert.Equal(t, 3, snap.Speed)
}
