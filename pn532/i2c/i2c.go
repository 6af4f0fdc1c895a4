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

// Package i2c carries PN532 commands over an I2C bus using periph.io.
package i2c

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/go-nfcmanager/internal/frame"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

const (
	// 7-bit address. The datasheet lists 0x48, which includes the R/W bit.
	pn532Addr = 0x24

	pn532Ready   = 0x01
	maxClockFreq = 400 * physic.KiloHertz

	defaultTimeout = 6 * time.Second
	maxBackoff     = 16 * time.Millisecond
	maxNacks       = 3

	// LEN byte, framing and a leading status byte
	readSize = 1 + frame.MaxDataLength + 8
)

// Transport errors.
var (
	ErrNotReady = errors.New("i2c: PN532 not ready")
	ErrNoACK    = errors.New("i2c: PN532 did not acknowledge the command")
)

// Transport implements pn532.Transport over I2C.
type Transport struct {
	conn    conn.Conn
	closer  io.Closer
	logger  zerolog.Logger
	name    string
	timeout time.Duration
	mu      syncutil.Mutex
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger logs frames at trace level.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithTimeout bounds the wait for the chip to become ready.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// busPath strips an address suffix, accepting "/dev/i2c-1:0x24" as well as
// "/dev/i2c-1".
func busPath(name string) string {
	bus, _, _ := strings.Cut(name, ":")
	return bus
}

// New opens the named I2C bus and addresses the PN532 on it.
func New(busName string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(busPath(busName))
	if err != nil {
		return nil, fmt.Errorf("open I2C bus %s: %w", busName, err)
	}
	// not every adapter can change speed, the default works too
	_ = bus.SetSpeed(maxClockFreq)

	return NewWithConn(&i2c.Dev{Addr: pn532Addr, Bus: bus}, bus, busName, opts...), nil
}

// NewWithConn uses c for all transactions. closer, if not nil, is closed by
// Close.
func NewWithConn(c conn.Conn, closer io.Closer, name string, opts ...Option) *Transport {
	t := &Transport{conn: c, closer: closer, name: name, logger: zerolog.Nop(), timeout: defaultTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SendCommand implements pn532.Transport.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := frame.Build(cmd, args)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.conn.Tx(req, nil); err != nil {
		return nil, fmt.Errorf("I2C write %s: %w", t.name, err)
	}
	t.logger.Trace().Str("bus", t.name).Hex("frame", req).Msg("sent")

	if err := t.waitAck(ctx); err != nil {
		return nil, err
	}
	return t.receive(ctx)
}

func (t *Transport) waitAck(ctx context.Context) error {
	buf, err := t.read(ctx, len(frame.AckFrame))
	if err != nil {
		return err
	}
	if frame.FindAck(buf) < 0 {
		return fmt.Errorf("%w: got % X", ErrNoACK, buf)
	}
	return nil
}

func (t *Transport) receive(ctx context.Context) ([]byte, error) {
	for nacks := 0; ; nacks++ {
		buf, err := t.read(ctx, readSize-1)
		if err != nil {
			return nil, err
		}
		data, _, err := frame.Parse(buf)
		if err == nil {
			t.logger.Trace().Str("bus", t.name).Hex("data", data).Msg("received")
			return data, nil
		}
		if !errors.Is(err, frame.ErrChecksum) || nacks >= maxNacks {
			return nil, fmt.Errorf("I2C %s: %w", t.name, err)
		}
		if err := t.conn.Tx(frame.NackFrame, nil); err != nil {
			return nil, fmt.Errorf("I2C NACK %s: %w", t.name, err)
		}
	}
}

// read waits for the ready status and reads n bytes in one transaction.
// Every read transaction starts with the status byte, which is stripped.
func (t *Transport) read(ctx context.Context, n int) ([]byte, error) {
	if err := t.waitReady(ctx); err != nil {
		return nil, err
	}
	buf := make([]byte, 1+n)
	if err := t.conn.Tx(nil, buf); err != nil {
		return nil, fmt.Errorf("I2C read %s: %w", t.name, err)
	}
	if buf[0] != pn532Ready {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, t.name)
	}
	return buf[1:], nil
}

func (t *Transport) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(t.timeout)
	delay := time.Millisecond
	status := make([]byte, 1)
	for {
		if err := t.conn.Tx(nil, status); err != nil {
			return fmt.Errorf("I2C status %s: %w", t.name, err)
		}
		if status[0] == pn532Ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrNotReady, t.name, t.timeout)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxBackoff)
	}
}

// Close releases the bus.
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	if err := t.closer.Close(); err != nil {
		return fmt.Errorf("I2C close %s: %w", t.name, err)
	}
	return nil
}
