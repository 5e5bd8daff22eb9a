package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var hueSectorCases = []struct {
	Hue    int
	Expect RGB
}{
	{0, RGB{R: 255}},
	{60, RGB{R: 255, G: 255}},
	{120, RGB{G: 255}},
	{180, RGB{G: 255, B: 255}},
	{240, RGB{B: 255}},
	{300, RGB{R: 255, B: 255}},
}

func TestHSBToRGBPrimaries(t *testing.T) {
	for _, tc := range hueSectorCases {
		got := HSB{H: tc.Hue, S: 100, B: 100}.RGB()
		assert.Equal(t, tc.Expect, got, "hue %d", tc.Hue)
	}
}

func TestHSBToRGBGrey(t *testing.T) {
	// Zero saturation ignores hue entirely.
	for _, h := range []int{0, 37, 181, 359} {
		got := HSB{H: h, S: 0, B: 100}.RGB()
		assert.Equal(t, RGB{R: 255, G: 255, B: 255}, got)
	}
	assert.Equal(t, RGB{}, HSB{H: 120, S: 100, B: 0}.RGB())
}

func TestScaleMinMax(t *testing.T) {
	r := Range{Min: 20, Max: 80, Scale: 250}

	assert.Equal(t, 20, r.ScaleMinMax(HSB{B: 0}).B)
	assert.Equal(t, 80, r.ScaleMinMax(HSB{B: 100}).B)
	assert.Equal(t, 50, r.ScaleMinMax(HSB{B: 50}).B)

	// Monotonic in brightness.
	prev := -1
	for b := 0; b <= 100; b++ {
		got := r.ScaleMinMax(HSB{B: b}).B
		assert.GreaterOrEqual(t, got, prev)
		assert.GreaterOrEqual(t, got, r.Min)
		assert.LessOrEqual(t, got, r.Max)
		prev = got
	}
}

func TestScaleZeroMax(t *testing.T) {
	r := Range{Min: 20, Max: 80, Scale: 250}

	assert.Equal(t, 0, r.ScaleZeroMax(HSB{B: 0}).B)
	assert.Equal(t, 80, r.ScaleZeroMax(HSB{B: 100}).B)

	prev := -1
	for b := 0; b <= 100; b++ {
		got := r.ScaleZeroMax(HSB{B: b}).B
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, r.Max)
		prev = got
	}
}

func TestHexScaling(t *testing.T) {
	r := Range{Min: 0, Max: 100, Scale: 250}
	assert.Equal(t, RGB{R: 255, G: 140}, r.Hex(0xFF8C00))

	half := Range{Min: 0, Max: 100, Scale: 125}
	assert.Equal(t, RGB{R: 127, G: 70}, half.Hex(0xFF8C00))

	assert.Equal(t, RGB{R: 100}, r.StatusHex(0xFF0000))
}

func TestValid(t *testing.T) {
	assert.True(t, HSB{H: 359, S: 100, B: 100}.Valid())
	assert.False(t, HSB{H: 360, S: 0, B: 0}.Valid())
	assert.False(t, HSB{H: 0, S: 101, B: 0}.Valid())
	assert.False(t, HSB{H: 0, S: 0, B: 101}.Valid())
	assert.False(t, HSB{H: -1, S: 0, B: 0}.Valid())
}
