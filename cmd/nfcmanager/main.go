// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/internal/config"
	"github.com/ZaparooProject/go-nfcmanager/internal/pn532sim"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
	"github.com/ZaparooProject/go-nfcmanager/pn532"
	"github.com/ZaparooProject/go-nfcmanager/pn532/i2c"
	"github.com/ZaparooProject/go-nfcmanager/pn532/spi"
	"github.com/ZaparooProject/go-nfcmanager/pn532/uart"
	"github.com/ZaparooProject/go-nfcmanager/remote"
)

// Package-level flag variables
var (
	flagConfig      string
	flagBackend     string
	flagDevice      string
	flagWrite       string
	flagType        string
	flagText        string
	flagLang        string
	flagTimeout     time.Duration
	flagOnce        bool
	flagDebug       bool
	flagPrintConfig bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "Path to a TOML config file")
	flag.StringVar(&flagBackend, "backend", "", "Reader backend: uart, i2c, spi, remote or sim")
	flag.StringVar(&flagDevice, "device", "", "Serial port, I2C bus or SPI port of the PN532 (auto-detect serial if empty)")
	flag.StringVar(&flagWrite, "write", "", "URL to write to the next tag (exits after write)")
	flag.StringVar(&flagType, "type", "", "Kind of -write value: website, email, sms, phone, facetime or shortcut")
	flag.StringVar(&flagText, "text", "", "Text record to write to the next tag")
	flag.StringVar(&flagLang, "lang", "en", "Language code of the -text record")
	flag.DurationVar(&flagTimeout, "timeout", 30*time.Second, "How long to wait for a tag when writing")
	flag.BoolVar(&flagOnce, "once", false, "Exit after the first tag is read")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagPrintConfig, "print-config", false, "Print the effective configuration and exit")
}

// options is everything the command needs after flag parsing.
type options struct {
	message nfcmanager.Message
	cfg     config.Config
	timeout time.Duration
	write   bool
	once    bool
}

func parseOptions() (options, error) {
	cfg := config.Defaults()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return options{}, err
		}
		cfg = loaded
	}
	if flagBackend != "" {
		cfg.Reader.Backend = flagBackend
	}
	if flagDevice != "" {
		cfg.Reader.Device = flagDevice
	}
	if flagDebug {
		cfg.Log.Level = zerolog.DebugLevel.String()
	}
	if err := cfg.Validate(); err != nil && !flagPrintConfig {
		return options{}, err
	}

	opts := options{cfg: cfg, timeout: flagTimeout, once: flagOnce}
	if flagWrite != "" {
		t, err := nfcmanager.ParseURLType(flagType)
		if err != nil {
			return options{}, err
		}
		opts.message.URI = &nfcmanager.URIRecord{URL: flagWrite, Type: t}
	}
	if flagText != "" {
		opts.message.Text = &nfcmanager.TextRecord{Text: flagText, Language: flagLang}
	}
	opts.write = !opts.message.IsEmpty()
	return opts, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(cfg.Log.ZerologLevel()).With().Timestamp().Logger()
}

// openPlatform connects the configured backend. The returned func releases
// it.
func openPlatform(ctx context.Context, cfg config.Config, logger zerolog.Logger) (nfcmanager.Platform, func(), error) {
	if cfg.Reader.Backend == config.BackendRemote {
		return openRemote(cfg.Remote, logger)
	}

	var transport pn532.Transport
	switch cfg.Reader.Backend {
	case config.BackendUART:
		var t *uart.Transport
		var err error
		if cfg.Reader.Device == "" {
			logger.Info().Msg("auto-detecting PN532 on serial ports")
			t, err = uart.Detect(ctx, uart.WithLogger(logger))
		} else {
			t, err = uart.New(cfg.Reader.Device, uart.WithLogger(logger))
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		transport = t
	case config.BackendI2C:
		t, err := i2c.New(cfg.Reader.Device, i2c.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		transport = t
	case config.BackendSPI:
		t, err := spi.New(cfg.Reader.Device, spi.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		transport = t
	case config.BackendSim:
		transport = newSimTransport(logger)
	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s", cfg.Reader.Backend)
	}

	dev := pn532.NewDevice(transport, pn532.WithDeviceLogger(logger))
	if err := dev.Init(ctx); err != nil {
		_ = dev.Close()
		return nil, nil, fmt.Errorf("failed to initialise PN532: %w", err)
	}
	disp := pn532.NewDispatcher(dev,
		pn532.WithConfig(cfg.Reader.Dispatcher()),
		pn532.WithDispatcherLogger(logger))

	closeFn := func() {
		_ = disp.Close()
		if err := dev.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing device")
		}
	}
	return disp, closeFn, nil
}

// newSimTransport serves a simulated PN532 over the UART framing, with one
// NTAG215 in the field.
func newSimTransport(logger zerolog.Logger) pn532.Transport {
	sim := pn532sim.New()
	tag := pn532sim.NewNTAG215([]byte{0x04, 0x5A, 0x61, 0x70, 0x61, 0x72, 0x6F})
	// seeded like a tag written by a phone app, with the URI abbreviated
	records := []*ndef.Record{ndef.NewURIRecord("https://zaparoo.org")}
	if text, err := ndef.NewTextRecord("Zaparoo", "en"); err == nil {
		records = append(records, text)
	}
	if data, err := (&ndef.Message{Records: records}).Marshal(); err == nil {
		_ = tag.SetNDEF(data)
	}
	sim.Place(tag)
	return uart.NewWithPort(sim, "sim", uart.WithLogger(logger))
}

func openRemote(cfg config.Remote, logger zerolog.Logger) (nfcmanager.Platform, func(), error) {
	srv := remote.NewServer(remote.WithLogger(logger))
	mux := http.NewServeMux()
	mux.Handle(remote.Path, srv)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("phone endpoint stopped")
		}
	}()
	logger.Info().Stringer("addr", ln.Addr()).Str("path", remote.Path).Msg("waiting for phones")

	var adv *remote.Advertiser
	if cfg.Advertise {
		port := 0
		if addr, ok := ln.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
		adv, err = remote.Advertise(cfg.Name, port, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("mDNS advertising disabled")
		}
	}

	closeFn := func() {
		if adv != nil {
			adv.Shutdown()
		}
		_ = srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	}
	return srv, closeFn, nil
}

func printMessage(out io.Writer, msg *nfcmanager.Message) {
	if msg == nil {
		_, _ = fmt.Fprintln(out, "Tag has no readable records")
		return
	}
	if msg.URI != nil {
		_, _ = fmt.Fprintf(out, "URI: %s (%s)\n", msg.URI.URL, msg.URI.Type)
	}
	if msg.Text != nil {
		_, _ = fmt.Fprintf(out, "Text: %q [%s]\n", msg.Text.Text, msg.Text.Language)
	}
}

// readLoop arms a read for every tag until ctx ends, or once.
func readLoop(ctx context.Context, m *nfcmanager.Manager, out io.Writer, once bool) error {
	_, _ = fmt.Fprintln(out, "Waiting for tags. Press Ctrl+C to stop...")
	waiting := false
	for {
		if !m.ReadingAvailable() {
			// a phone has not connected yet
			if !waiting {
				_, _ = fmt.Fprintln(out, "Reading is not available yet...")
				waiting = true
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				continue
			}
		}
		waiting = false

		h, err := m.ReadTag(ctx, nfcmanager.WithAlertMessage("Hold your device near a tag"))
		if err != nil {
			return fmt.Errorf("failed to arm read: %w", err)
		}
		msg, err := h.Wait(ctx)
		if err != nil {
			_ = m.DisableForegroundDispatch()
			return err
		}
		if msg == nil && !m.ReadingAvailable() {
			continue
		}
		printMessage(out, msg)
		if once {
			return nil
		}
	}
}

// writeOnce writes msg to the next tag.
func writeOnce(ctx context.Context, m *nfcmanager.Manager, msg nfcmanager.Message, timeout time.Duration, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h, err := m.WriteTag(ctx, msg, nfcmanager.WithAlertMessage("Hold your device near a tag to write"))
	if err != nil {
		return fmt.Errorf("failed to arm write: %w", err)
	}
	_, _ = fmt.Fprintln(out, "Please place a tag near the reader...")

	if err := h.Wait(ctx); err != nil {
		_ = m.DisableForegroundDispatch()
		return fmt.Errorf("write operation failed: %w", err)
	}
	_, _ = fmt.Fprintln(out, "Successfully wrote tag")
	return nil
}

func run(ctx context.Context, opts options, logger zerolog.Logger, out io.Writer) error {
	platform, closePlatform, err := openPlatform(ctx, opts.cfg, logger)
	if err != nil {
		return err
	}
	defer closePlatform()

	m := nfcmanager.NewManager(platform, nfcmanager.WithLogger(logger))
	if opts.write {
		return writeOnce(ctx, m, opts.message, opts.timeout, out)
	}
	return readLoop(ctx, m, out, opts.once)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	opts, err := parseOptions()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if flagPrintConfig {
		if err := opts.cfg.Encode(os.Stdout); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, newLogger(opts.cfg), os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			// User requested shutdown, exit cleanly
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
