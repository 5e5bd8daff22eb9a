package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/physic"

	"github.com/example/underglow/internal/config"
	"github.com/example/underglow/internal/monitor"
	"github.com/example/underglow/internal/split"
	"github.com/example/underglow/internal/strip"
	"github.com/example/underglow/internal/underglow"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "config.yaml", "path to config.yaml")
		simOnly    = pflag.Bool("sim-only", false, "no hardware output, monitor only")
		addr       = pflag.String("addr", "", "monitor listen address (overrides config)")
		debug      = pflag.Bool("debug", false, "debug logging")
	)
	pflag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	if *addr != "" {
		cfg.Monitor.Addr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Strip transport ----
	var drv strip.Driver
	if *simOnly {
		drv = &strip.Fake{}
		log.Info().Msg("simulation strip")
	} else {
		spi, err := strip.OpenSPI(strip.SPIOpts{
			Port:   cfg.Strip.Port,
			Pixels: cfg.Pixels,
			HZ:     physic.Frequency(cfg.Strip.SpeedHz) * physic.Hertz,
		}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("strip setup failed")
		}
		defer spi.Halt()
		drv = spi
		log.Info().Bool("hardware", spi.Hardware).Int("pixels", cfg.Pixels).Msg("strip ready")
	}

	// ---- Power rail ----
	var rail underglow.Rail
	if cfg.ExtPower && cfg.ExtPowerPin != "" && !*simOnly {
		r, err := strip.OpenRail(cfg.ExtPowerPin)
		if err != nil {
			log.Warn().Err(err).Str("pin", cfg.ExtPowerPin).Msg("power rail unavailable")
		} else {
			rail = r
			log.Info().Str("pin", cfg.ExtPowerPin).Msg("power rail ready")
		}
	}

	// ---- Split link (central half only) ----
	// The peripheral half runs the GATT server itself, so a peripheral-role
	// daemon has nothing to dial; only the central ever opens a link.
	var ctrl *underglow.Controller
	var link *split.BLELink
	if cfg.Role == config.RoleCentral && cfg.BLE.PeripheralName != "" {
		retry, _ := time.ParseDuration(cfg.BLE.RetryDelay)
		scanTO, _ := time.ParseDuration(cfg.BLE.ScanTimeout)
		link = split.NewBLELink(cfg.BLE.PeripheralName, retry, scanTO, func(up bool) {
			if ctrl != nil {
				if err := ctrl.HandleEvent(underglow.PeripheralStatusChanged{Connected: up}); err != nil {
					log.Debug().Err(err).Msg("peripheral status event")
				}
			}
		}, log.Logger)
	}

	// ---- Monitor ----
	var mon *monitor.Monitor
	if cfg.Monitor.Addr != "" {
		mon = monitor.New(func() underglow.Snapshot { return ctrl.Snapshot() }, log.Logger)
		drv = strip.Tee{drv, mon}
	}

	opts := underglow.Options{
		Config: cfg,
		Strip:  drv,
		Rail:   rail,
		Log:    log.Logger,
	}
	if link != nil {
		opts.Link = link
	}
	ctrl = underglow.New(opts)
	defer ctrl.Close()

	if err := ctrl.Start(); err != nil {
		log.Fatal().Err(err).Msg("controller start failed")
	}
	log.Info().
		Str("role", string(cfg.Role)).
		Str("effect", ctrl.CurrentEffect().String()).
		Msg("underglow running")

	g, ctx := errgroup.WithContext(ctx)

	if link != nil {
		g.Go(func() error {
			err := link.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	if mon != nil {
		srv := &http.Server{Addr: cfg.Monitor.Addr, Handler: monitorMux(mon)}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Monitor.Addr).Msg("monitor listening")
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			t := time.NewTicker(time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					mon.BroadcastState()
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	}
	log.Info().Msg("bye")
}

func monitorMux(mon *monitor.Monitor) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", mon)
	return mux
}
