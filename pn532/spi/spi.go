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

// Package spi carries PN532 commands over an SPI bus using periph.io.
package spi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/go-nfcmanager/internal/frame"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

// The first byte of every transaction says what follows.
const (
	opDataWrite  = 0x01
	opStatusRead = 0x02
	opDataRead   = 0x03

	pn532Ready = 0x01

	defaultFreq    = 1 * physic.MegaHertz
	defaultTimeout = 6 * time.Second
	maxBackoff     = 16 * time.Millisecond
	maxNacks       = 3

	readSize = frame.MaxDataLength + 8
)

// Transport errors.
var (
	ErrNotReady = errors.New("spi: PN532 not ready")
	ErrNoACK    = errors.New("spi: PN532 did not acknowledge the command")
)

// Transport implements pn532.Transport over SPI. The PN532 shifts bits LSB
// first; bytes are bit-reversed here so any controller works in mode 0.
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

// New opens the named SPI port.
func New(portName string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize periph host: %w", err)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("open SPI port %s: %w", portName, err)
	}
	c, err := port.Connect(defaultFreq, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connect SPI %s: %w", portName, err)
	}

	t := NewWithConn(c, port, portName, opts...)
	// a dummy byte wakes the chip from power down
	_ = c.Tx([]byte{0x00}, nil)
	time.Sleep(2 * time.Millisecond)
	return t, nil
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

// reverse bit-reverses every byte of b in place.
func reverse(b []byte) []byte {
	for i := range b {
		b[i] = bits.Reverse8(b[i])
	}
	return b
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

	if err := t.write(req); err != nil {
		return nil, err
	}
	t.logger.Trace().Str("port", t.name).Hex("frame", req).Msg("sent")

	buf, err := t.read(ctx, len(frame.AckFrame))
	if err != nil {
		return nil, err
	}
	if frame.FindAck(buf) < 0 {
		return nil, fmt.Errorf("%w: got % X", ErrNoACK, buf)
	}
	return t.receive(ctx)
}

func (t *Transport) receive(ctx context.Context) ([]byte, error) {
	for nacks := 0; ; nacks++ {
		buf, err := t.read(ctx, readSize)
		if err != nil {
			return nil, err
		}
		data, _, err := frame.Parse(buf)
		if err == nil {
			t.logger.Trace().Str("port", t.name).Hex("data", data).Msg("received")
			return data, nil
		}
		if !errors.Is(err, frame.ErrChecksum) || nacks >= maxNacks {
			return nil, fmt.Errorf("SPI %s: %w", t.name, err)
		}
		if err := t.write(frame.NackFrame); err != nil {
			return nil, err
		}
	}
}

func (t *Transport) write(data []byte) error {
	w := make([]byte, 1+len(data))
	w[0] = opDataWrite
	copy(w[1:], data)
	if err := t.conn.Tx(reverse(w), nil); err != nil {
		return fmt.Errorf("SPI write %s: %w", t.name, err)
	}
	return nil
}

// read waits for the ready status and clocks out n bytes.
func (t *Transport) read(ctx context.Context, n int) ([]byte, error) {
	if err := t.waitReady(ctx); err != nil {
		return nil, err
	}
	w := make([]byte, 1+n)
	w[0] = bits.Reverse8(opDataRead)
	r := make([]byte, 1+n)
	if err := t.conn.Tx(w, r); err != nil {
		return nil, fmt.Errorf("SPI read %s: %w", t.name, err)
	}
	return reverse(r[1:]), nil
}

func (t *Transport) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(t.timeout)
	delay := time.Millisecond
	w := []byte{bits.Reverse8(opStatusRead), 0x00}
	r := make([]byte, 2)
	for {
		if err := t.conn.Tx(w, r); err != nil {
			return fmt.Errorf("SPI status %s: %w", t.name, err)
		}
		if bits.Reverse8(r[1])&pn532Ready != 0 {
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

// Close releases the port.
func (t *Transport) Close() error {
	if t.closer == nil {
		return nil
	}
	if err := t.closer.Close(); err != nil {
		return fmt.Errorf("SPI close %s: %w", t.name, err)
	}
	return nil
}
