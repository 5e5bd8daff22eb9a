// Package strip abstracts the LED strip transport. The controller only ever
// hands a Driver the final composited buffer.
package strip

import (
	"sync"

	"github.com/example/underglow/internal/color"
)

// Driver writes one full frame to the strip.
type Driver interface {
	Write(buf []color.RGB) error
}

// Fake captures frames for tests and headless simulation.
type Fake struct {
	mu     sync.Mutex
	frames int
	last   []color.RGB
}

func (f *Fake) Write(buf []color.RGB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
	f.last = append(f.last[:0], buf...)
	return nil
}

// Frames returns how many frames have been written.
func (f *Fake) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// Last returns a copy of the most recent frame, or nil.
func (f *Fake) Last() []color.RGB {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return nil
	}
	out := make([]color.RGB, len(f.last))
	copy(out, f.last)
	return out
}

// Tee fans a frame out to several drivers; the first error wins but every
// driver still sees the frame.
type Tee []Driver

func (t Tee) Write(buf []color.RGB) error {
	var first error
	for _, d := range t {
		if err := d.Write(buf); err != nil && first == nil {
			first = err
		}
	}
	return first
}
