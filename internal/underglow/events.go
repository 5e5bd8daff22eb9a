package underglow

import "github.com/example/underglow/internal/config"

// Event is the closed set of notifications the controller reacts to.
type Event interface{ isEvent() }

// ActivityChanged fires when the device transitions between active and idle.
type ActivityChanged struct{ Active bool }

// PowerSourceChanged fires when external power appears or disappears.
type PowerSourceChanged struct{ Powered bool }

// PeripheralStatusChanged fires when the split link to the peripheral half
// comes up or goes down.
type PeripheralStatusChanged struct{ Connected bool }

func (ActivityChanged) isEvent()         {}
func (PowerSourceChanged) isEvent()      {}
func (PeripheralStatusChanged) isEvent() {}

// HandleEvent dispatches one event. Events no enabled feature subscribes to
// return ErrNotSupported.
func (c *Controller) HandleEvent(ev Event) error {
	switch ev := ev.(type) {
	case ActivityChanged:
		if !c.cfg.AutoOff.Idle {
			return ErrNotSupported
		}
		return c.autoState(ev.Active)

	case PowerSourceChanged:
		if !c.cfg.AutoOff.USB {
			return ErrNotSupported
		}
		// refresh and push the record so the peer sees the state that was
		// current when power changed, then suspend or resume
		c.mu.Lock()
		if c.pusher != nil {
			c.ledData.Indicators = c.src.Indicators.Indicators()
			c.ledData.Layer = c.src.Keymap.HighestLayer()
			c.ledData.On = c.on
			c.pusher.Push(c.ledData)
		}
		c.mu.Unlock()
		return c.autoState(ev.Powered)

	case PeripheralStatusChanged:
		if c.cfg.Role != config.RoleCentral {
			return ErrNotSupported
		}
		c.pusher.Connected(ev.Connected)
		return nil

	default:
		return ErrNotSupported
	}
}

// autoState drives the suspend/resume state machine shared by the idle and
// power-source triggers. Repeated notifications for the current state are
// no-ops; falling asleep remembers the user's on/off intent and waking
// restores it.
func (c *Controller) autoState(targetAwake bool) error {
	c.mu.Lock()
	if targetAwake == c.sleep.awake {
		c.mu.Unlock()
		return nil
	}
	c.sleep.awake = targetAwake

	if !targetAwake {
		c.sleep.onBeforeSleep = c.on
		c.mu.Unlock()
		return c.Off()
	}

	restore := c.sleep.onBeforeSleep
	c.mu.Unlock()
	if restore {
		return c.On()
	}
	return c.Off()
}
