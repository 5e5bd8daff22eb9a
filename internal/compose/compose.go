// Package compose merges the effect and status buffers and applies
// battery-aware output dimming. All math is integer fixed-point; the blend
// weight lives in [0,256].
package compose

import "github.com/example/underglow/internal/color"

// FullBlend is the weight at which the status buffer fully replaces the
// effect buffer.
const FullBlend = 256

// Low-battery thresholds, in percent.
const (
	dimBelow  = 20 // halve every channel
	darkBelow = 10 // blank the strip entirely
)

// Compose writes the final frame into dst. With a zero blend weight and a
// healthy battery the effect buffer is returned directly without copying.
// Battery dimming is applied last so it wins over any effect or status
// output.
func Compose(dst, eff, status []color.RGB, blend, battery int) []color.RGB {
	if blend == 0 && battery >= dimBelow {
		return eff
	}

	switch {
	case blend == 0:
		copy(dst, eff)
	case blend >= FullBlend:
		copy(dst, status)
	default:
		Blend(dst, eff, status, blend)
	}

	Dim(dst, battery)
	return dst
}

// Blend mixes status over effect: out = (S*w + E*(256-w)) >> 8 per channel.
func Blend(dst, eff, status []color.RGB, w int) {
	wl := uint16(w)
	wr := uint16(FullBlend - w)
	for i := range dst {
		dst[i].R = uint8((uint16(status[i].R)*wl)>>8) + uint8((uint16(eff[i].R)*wr)>>8)
		dst[i].G = uint8((uint16(status[i].G)*wl)>>8) + uint8((uint16(eff[i].G)*wr)>>8)
		dst[i].B = uint8((uint16(status[i].B)*wl)>>8) + uint8((uint16(eff[i].B)*wr)>>8)
	}
}

// Dim applies battery-level output dimming in place: below 10% the strip
// goes dark, below 20% every channel is halved.
func Dim(buf []color.RGB, battery int) {
	switch {
	case battery < darkBelow:
		for i := range buf {
			buf[i] = color.RGB{}
		}
	case battery < dimBelow:
		for i := range buf {
			buf[i].R >>= 1
			buf[i].G >>= 1
			buf[i].B >>= 1
		}
	}
}
