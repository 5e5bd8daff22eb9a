// glowsim runs the full pipeline headless against a captured-frame strip,
// stepping through every effect and a status overlay pass. Useful for
// eyeballing pipeline behavior before a board exists.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/underglow/internal/config"
	"github.com/example/underglow/internal/effect"
	"github.com/example/underglow/internal/strip"
	"github.com/example/underglow/internal/underglow"
)

func main() {
	var (
		pixels = flag.Int("pixels", 10, "strip length")
		ticks  = flag.Int("ticks", 40, "ticks to run per effect")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	cfg := config.Default()
	cfg.Pixels = *pixels
	cfg.Indicators = config.Positions{
		CapsLock: config.Pixel(0), NumLock: config.Pixel(1), ScrollLock: config.Pixel(2),
		BLEState:   []int{3, 4},
		LayerState: []int{5, 6},
		BatLHS:     []int{7, 8},
		BatRHS:     []int{9},
	}

	fake := &strip.Fake{}
	ctrl := underglow.New(underglow.Options{
		Config:       cfg,
		Strip:        fake,
		Src:          underglow.Sources{Battery: underglow.FixedBattery(64)},
		Log:          logger,
		TickInterval: 5 * time.Millisecond,
	})
	defer ctrl.Close()

	if err := ctrl.On(); err != nil {
		logger.Fatal().Err(err).Msg("on failed")
	}

	for k := 0; k < int(effect.Count); k++ {
		if err := ctrl.SelectEffect(k); err != nil {
			logger.Fatal().Err(err).Int("effect", k).Msg("select failed")
		}
		for i := 0; i < *ticks; i++ {
			ctrl.Tick()
			time.Sleep(time.Millisecond)
		}
		report(ctrl.CurrentEffect().String(), fake)
	}

	// overlay over a dark strip
	if err := ctrl.Off(); err != nil {
		logger.Fatal().Err(err).Msg("off failed")
	}
	if err := ctrl.TriggerStatus(); err != nil {
		logger.Fatal().Err(err).Msg("status failed")
	}
	for i := 0; i < *ticks; i++ {
		ctrl.Tick()
		time.Sleep(time.Millisecond)
	}
	report("status overlay", fake)
}

func report(name string, f *strip.Fake) {
	last := f.Last()
	var r, g, b int
	for _, px := range last {
		r += int(px.R)
		g += int(px.G)
		b += int(px.B)
	}
	n := len(last)
	if n == 0 {
		n = 1
	}
	fmt.Printf("[%-14s] frames=%04d avg=(%3d,%3d,%3d)\n", name, f.Frames(), r/n, g/n, b/n)
}
