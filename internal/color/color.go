// Package color implements the HSB color model used by the underglow
// pipeline and its conversion to strip-ready RGB values.
package color

const (
	HueMax = 360
	SatMax = 100
	BrtMax = 100
)

// HSB is a hue/saturation/brightness triple. Hue is in [0,360), saturation
// and brightness in [0,100].
type HSB struct {
	H int `yaml:"hue"`
	S int `yaml:"sat"`
	B int `yaml:"brt"`
}

// Valid reports whether every component is inside its range.
func (c HSB) Valid() bool {
	return c.H >= 0 && c.H < HueMax && c.S >= 0 && c.S <= SatMax && c.B >= 0 && c.B <= BrtMax
}

// RGB is one strip pixel.
type RGB struct {
	R, G, B uint8
}

// RGB converts the color using the standard six-sector hue cone. The sector
// index is h/60 truncated; the fractional term is h/360*6 minus that index.
// Channels are computed in float and truncated into 0..255.
func (c HSB) RGB() RGB {
	var r, g, b float32

	i := c.H / 60
	v := float32(c.B) / float32(BrtMax)
	s := float32(c.S) / float32(SatMax)
	f := float32(c.H)/float32(HueMax)*6 - float32(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	case 5:
		r, g, b = v, p, q
	}

	return RGB{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255)}
}

// Range holds the configured output brightness window. Min and Max bound the
// scaled brightness in [0,100]; Scale is the fixed-palette intensity divisor
// (a palette entry at full intensity maps to Scale/250 of its hex value).
type Range struct {
	Min   int `yaml:"min"`
	Max   int `yaml:"max"`
	Scale int `yaml:"scale"`
}

// DefaultRange drives the strip over its whole brightness span.
var DefaultRange = Range{Min: 0, Max: 100, Scale: 250}

// ScaleMinMax remaps brightness linearly into [Min,Max]. Steady effects use
// this so "dim" never reaches full black.
func (r Range) ScaleMinMax(c HSB) HSB {
	c.B = r.Min + (r.Max-r.Min)*c.B/BrtMax
	return c
}

// ScaleZeroMax remaps brightness linearly into [0,Max]. Breathing-style
// effects use this so they fade all the way to black.
func (r Range) ScaleZeroMax(c HSB) HSB {
	c.B = c.B * r.Max / BrtMax
	return c
}

// Hex expands a 0xRRGGBB palette entry, attenuated by Scale/250.
func (r Range) Hex(hex uint32) RGB {
	m := float32(r.Scale) / 250.0
	return RGB{
		R: uint8(m * float32((hex&0xFF0000)>>16)),
		G: uint8(m * float32((hex&0x00FF00)>>8)),
		B: uint8(m * float32(hex&0x0000FF)),
	}
}

// StatusHex expands a 0xRRGGBB palette entry for the status overlay, scaled
// by Max/255 in integer math.
func (r Range) StatusHex(hex uint32) RGB {
	return RGB{
		R: uint8(r.Max * int((hex&0xFF0000)>>16) / 0xff),
		G: uint8(r.Max * int((hex&0x00FF00)>>8) / 0xff),
		B: uint8(r.Max * int(hex&0x0000FF) / 0xff),
	}
}
