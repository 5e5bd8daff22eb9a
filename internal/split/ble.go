package split

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

// GATT identifiers of the split service on the peripheral half. The
// display record is written to the update-LED characteristic; the remote
// charge level comes from the standard Battery Service.
const (
	splitServiceUUID   = "00000000-0096-7107-c967-c5cfb1c2482a"
	splitUpdateLEDUUID = "00000007-0096-7107-c967-c5cfb1c2482a"
)

// BLELink is the central-side link to the peripheral half. It maintains a
// scan/connect/rediscover loop and exposes the Link interface on top of the
// discovered characteristics.
type BLELink struct {
	log         zerolog.Logger
	adapter     *bluetooth.Adapter
	name        string
	retryDelay  time.Duration
	scanTimeout time.Duration

	mu        sync.Mutex
	connected bool
	device    bluetooth.Device
	ledChar   bluetooth.DeviceCharacteristic
	battChar  bluetooth.DeviceCharacteristic
	onChange  func(connected bool)
	lost      chan struct{}
}

var _ Link = (*BLELink)(nil)

// NewBLELink prepares a link that will connect to the peripheral advertising
// the given name. onChange receives connectivity transitions. A zero
// scanTimeout scans until the peripheral appears or the context ends.
func NewBLELink(name string, retryDelay, scanTimeout time.Duration, onChange func(bool), log zerolog.Logger) *BLELink {
	if retryDelay <= 0 {
		retryDelay = 3 * time.Second
	}
	return &BLELink{
		log:         log,
		adapter:     bluetooth.DefaultAdapter,
		name:        name,
		retryDelay:  retryDelay,
		scanTimeout: scanTimeout,
		onChange:    onChange,
		lost:        make(chan struct{}, 1),
	}
}

// Run owns the connection lifecycle until the context is canceled.
func (l *BLELink) Run(ctx context.Context) error {
	if err := l.adapter.Enable(); err != nil {
		return errors.Wrap(err, "enable bluetooth adapter")
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := l.connectOnce(ctx); err != nil {
			l.log.Warn().Err(err).Dur("retry", l.retryDelay).Msg("peripheral connect failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.retryDelay):
			}
			continue
		}

		l.setConnected(true)

		// hold until a write fails or we are shut down
		select {
		case <-ctx.Done():
			l.disconnect()
			return ctx.Err()
		case <-l.lost:
			l.disconnect()
		}
	}
}

// waitScan runs the blocking scan on its own goroutine. The radio only
// returns from scan once it is told to stop, either by the match callback or
// by cancellation here, so the caller never blocks past its context.
func waitScan(ctx context.Context, scan func() error, stop func()) error {
	done := make(chan error, 1)
	go func() { done <- scan() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		stop()
		<-done
		return ctx.Err()
	}
}

func (l *BLELink) connectOnce(ctx context.Context) error {
	scanCtx := ctx
	if l.scanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, l.scanTimeout)
		defer cancel()
	}

	var found bluetooth.ScanResult
	matched := false
	err := waitScan(scanCtx, func() error {
		return l.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if matched || result.LocalName() != l.name {
				return
			}
			matched = true
			found = result
			a.StopScan()
		})
	}, func() {
		l.adapter.StopScan()
	})
	if err != nil {
		return errors.Wrap(err, "scan")
	}

	dev, err := l.adapter.Connect(found.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return errors.Wrap(err, "connect")
	}

	svcUUID, _ := bluetooth.ParseUUID(splitServiceUUID)
	ledUUID, _ := bluetooth.ParseUUID(splitUpdateLEDUUID)

	svcs, err := dev.DiscoverServices([]bluetooth.UUID{svcUUID, bluetooth.ServiceUUIDBattery})
	if err != nil {
		dev.Disconnect()
		return errors.Wrap(err, "discover services")
	}

	var ledChar, battChar bluetooth.DeviceCharacteristic
	for _, svc := range svcs {
		switch svc.UUID() {
		case svcUUID:
			chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{ledUUID})
			if err != nil || len(chars) == 0 {
				dev.Disconnect()
				return errors.Wrap(err, "discover update-LED characteristic")
			}
			ledChar = chars[0]
		case bluetooth.ServiceUUIDBattery:
			chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{bluetooth.CharacteristicUUIDBatteryLevel})
			if err == nil && len(chars) > 0 {
				battChar = chars[0]
			}
		}
	}

	l.mu.Lock()
	l.device = dev
	l.ledChar = ledChar
	l.battChar = battChar
	l.mu.Unlock()

	l.log.Info().Str("name", l.name).Msg("peripheral link up")
	return nil
}

func (l *BLELink) disconnect() {
	l.mu.Lock()
	dev := l.device
	l.mu.Unlock()
	dev.Disconnect()
	l.setConnected(false)
}

func (l *BLELink) setConnected(up bool) {
	l.mu.Lock()
	changed := l.connected != up
	l.connected = up
	cb := l.onChange
	l.mu.Unlock()
	if changed && cb != nil {
		cb(up)
	}
}

// signalLost wakes the run loop to tear the connection down. Extra signals
// while one is already pending are dropped.
func (l *BLELink) signalLost() {
	select {
	case l.lost <- struct{}{}:
	default:
	}
}

// Push writes the display record without response; the tick never waits on
// the radio.
func (l *BLELink) Push(r Record) error {
	l.mu.Lock()
	up := l.connected
	char := l.ledChar
	l.mu.Unlock()

	if !up {
		return ErrNotConnected
	}

	payload := []byte{r.Layer, byte(r.Indicators), bool2byte(r.On), r.Effect}
	if _, err := char.WriteWithoutResponse(payload); err != nil {
		l.signalLost()
		return errors.Wrap(err, "update-LED write")
	}
	return nil
}

// RemoteBattery reads the peripheral charge percentage. Only index 0 exists
// on a two-piece device.
func (l *BLELink) RemoteBattery(idx int) (int, error) {
	if idx != 0 {
		return 0, ErrInvalidIndex
	}

	l.mu.Lock()
	up := l.connected
	char := l.battChar
	l.mu.Unlock()

	if !up || char.UUID() == (bluetooth.UUID{}) {
		return 0, ErrNotConnected
	}

	var buf [1]byte
	n, err := char.Read(buf[:])
	if err != nil || n == 0 {
		l.signalLost()
		return 0, ErrNotConnected
	}
	return int(buf[0]), nil
}

func bool2byte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
