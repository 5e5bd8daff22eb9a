package strip

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIORail switches the strip power rail through one GPIO line, the
// software counterpart of a generic ext-power switch. The periph host must
// be initialized first; OpenSPI does that.
type GPIORail struct {
	pin gpio.PinIO
}

func OpenRail(name string) (*GPIORail, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no gpio pin %q", name)
	}
	return &GPIORail{pin: pin}, nil
}

func (r *GPIORail) Enable() error {
	return errors.Wrap(r.pin.Out(gpio.High), "enable power rail")
}

func (r *GPIORail) Disable() error {
	return errors.Wrap(r.pin.Out(gpio.Low), "disable power rail")
}
