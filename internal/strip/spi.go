package strip

import (
	"image"
	stdcolor "image/color"

	"github.com/example/underglow/internal/color"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"
)

// SPI drives a WS2812-class strip through an NRZ-over-SPI encoder. When no
// SPI port can be opened it degrades to an ANSI terminal renderer so the
// pipeline stays observable on a dev machine.
type SPI struct {
	drawer display.Drawer
	img    *image.NRGBA
	log    zerolog.Logger

	// Hardware reports whether a real SPI port is behind the drawer.
	Hardware bool
}

// SPIOpts configures OpenSPI.
type SPIOpts struct {
	Port   string // empty selects the first registered port
	Pixels int
	HZ     physic.Frequency // refresh, used to derive the SPI clock
}

// OpenSPI initializes the periph host, opens an SPI port and prepares the
// NRZ encoder. A missing port is not an error; the console fallback is used.
func OpenSPI(o SPIOpts, log zerolog.Logger) (*SPI, error) {
	if o.Pixels <= 0 {
		return nil, errors.Errorf("invalid pixel count %d", o.Pixels)
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}

	s := &SPI{
		img: image.NewNRGBA(image.Rect(0, 0, o.Pixels, 1)),
		log: log,
	}

	port, err := spireg.Open(o.Port)
	if err != nil {
		log.Warn().Err(err).Msg("no SPI port, falling back to console renderer")
		s.drawer = screen.New(o.Pixels)
		return s, nil
	}

	hz := o.HZ
	if hz == 0 {
		hz = 2500 * physic.KiloHertz
	}
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: o.Pixels,
		Channels:  3,
		Freq:      hz,
	})
	if err != nil {
		return nil, errors.Wrap(err, "nrzled")
	}
	if err := dev.Halt(); err != nil {
		return nil, errors.Wrap(err, "halt")
	}
	s.drawer = dev
	s.Hardware = true
	return s, nil
}

func (s *SPI) Write(buf []color.RGB) error {
	for i, px := range buf {
		s.img.SetNRGBA(i, 0, stdcolor.NRGBA{R: px.R, G: px.G, B: px.B, A: 0xFF})
	}
	if err := s.drawer.Draw(s.drawer.Bounds(), s.img, image.Point{}); err != nil {
		return errors.Wrap(err, "strip draw")
	}
	return nil
}

// Halt blanks the strip.
func (s *SPI) Halt() error {
	return s.drawer.Halt()
}
