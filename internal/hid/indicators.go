// Package hid defines the host-driven lock indicator bitmask shared by the
// effect engine, the status overlay, and the split display record.
package hid

// Indicators is the HID LED report bitmask.
type Indicators uint8

const (
	NumLock Indicators = 1 << iota
	CapsLock
	ScrollLock
	Compose
	Kana
)

// Has reports whether bit is set.
func (i Indicators) Has(bit Indicators) bool { return i&bit != 0 }
