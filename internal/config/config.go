// Package config loads the device description. Everything a firmware build
// would fix at compile time (indicator positions, auto-off features, split
// role) is plain runtime data here; disabled features are inert zero values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/underglow/internal/color"
)

// Role selects which half of a split device this instance is.
type Role string

const (
	RoleCentral    Role = "central"
	RolePeripheral Role = "peripheral"
)

// Positions maps status/indicator roles onto strip pixel indexes. Scalar
// positions are optional; a nil pointer leaves that indicator unmapped, the
// same way a missing devicetree property does. An entirely empty Positions
// disables the status overlay.
type Positions struct {
	CapsLock       *int  `yaml:"capslock"`
	NumLock        *int  `yaml:"numlock"`
	ScrollLock     *int  `yaml:"scrolllock"`
	BLEState       []int `yaml:"ble_state"`
	LayerState     []int `yaml:"layer_state"`
	BatLHS         []int `yaml:"bat_lhs"`
	BatRHS         []int `yaml:"bat_rhs"`
	USBState       *int  `yaml:"usb_state"`
	OutputFallback *int  `yaml:"output_fallback"`
}

// Pixel wraps a pixel index for the optional scalar positions.
func Pixel(i int) *int { return &i }

// Enabled reports whether any status positions are configured.
func (p Positions) Enabled() bool {
	return p.CapsLock != nil || p.NumLock != nil || p.ScrollLock != nil ||
		p.USBState != nil || p.OutputFallback != nil ||
		len(p.BLEState) > 0 || len(p.LayerState) > 0 || len(p.BatLHS) > 0 || len(p.BatRHS) > 0
}

// Steps are the increments applied by the change-hue/sat/brightness commands.
type Steps struct {
	Hue int `yaml:"hue"`
	Sat int `yaml:"sat"`
	Brt int `yaml:"brt"`
}

// Start holds the power-on defaults.
type Start struct {
	Color  color.HSB `yaml:"color"`
	Speed  int       `yaml:"speed"`
	Effect int       `yaml:"effect"`
	On     bool      `yaml:"on"`
}

// AutoOff selects which suspend triggers are wired.
type AutoOff struct {
	Idle bool `yaml:"idle"`
	USB  bool `yaml:"usb"`
}

type StripCfg struct {
	Port    string `yaml:"port"`     // SPI port name, empty = first registered
	SpeedHz int    `yaml:"speed_hz"` // SPI clock
}

type BLECfg struct {
	PeripheralName string `yaml:"peripheral_name"`
	ScanTimeout    string `yaml:"scan_timeout"`
	RetryDelay     string `yaml:"retry_delay"`
}

type MonitorCfg struct {
	Addr string `yaml:"addr"` // empty disables the websocket monitor
}

type Config struct {
	Pixels      int         `yaml:"pixels"`
	Role        Role        `yaml:"role"`
	Brightness  color.Range `yaml:"brightness"`
	ModColor    uint32      `yaml:"mod_color"`
	Steps       Steps       `yaml:"steps"`
	Start       Start       `yaml:"start"`
	AutoOff     AutoOff     `yaml:"auto_off"`
	ExtPower    bool        `yaml:"ext_power"`
	ExtPowerPin string      `yaml:"ext_power_pin"`
	Indicators  Positions   `yaml:"indicators"`
	Strip       StripCfg    `yaml:"strip"`
	BLE         BLECfg      `yaml:"ble"`
	Monitor     MonitorCfg  `yaml:"monitor"`
}

// Default mirrors the firmware's Kconfig defaults for a 3-pixel-per-side
// split board.
func Default() *Config {
	return &Config{
		Pixels:     3,
		Role:       RoleCentral,
		Brightness: color.DefaultRange,
		ModColor:   0xFFFFFF,
		Steps:      Steps{Hue: 10, Sat: 10, Brt: 10},
		Start: Start{
			Color: color.HSB{H: 0, S: 100, B: 100},
			Speed: 3,
		},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	if c.Pixels <= 0 {
		return fmt.Errorf("pixels must be positive, got %d", c.Pixels)
	}
	if c.Role != RoleCentral && c.Role != RolePeripheral {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	if c.Brightness.Min > c.Brightness.Max {
		return fmt.Errorf("brightness min %d exceeds max %d", c.Brightness.Min, c.Brightness.Max)
	}
	if c.Start.Speed < 1 || c.Start.Speed > 5 {
		return fmt.Errorf("start speed %d outside 1..5", c.Start.Speed)
	}
	if c.Start.Effect < 0 || c.Start.Effect > 6 {
		return fmt.Errorf("start effect %d out of range", c.Start.Effect)
	}
	return nil
}
