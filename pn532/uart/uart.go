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

// Package uart carries PN532 commands over a serial port (HSU mode).
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/ZaparooProject/go-nfcmanager/internal/frame"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

const (
	baudRate               = 115200
	defaultResponseTimeout = 6 * time.Second
	maxNacks               = 3
	chunkSize              = 64
)

// The PN532 needs a 0x55 and some idle bytes to leave low power mode.
var wakeUp = []byte{0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// Transport errors.
var (
	ErrNoACK           = errors.New("uart: PN532 did not acknowledge the command")
	ErrResponseTimeout = errors.New("uart: timed out waiting for response")
)

// Port is the part of a serial port the transport uses. serial.Port
// satisfies it.
type Port interface {
	io.ReadWriteCloser
	Drain() error
}

// Transport implements pn532.Transport over a serial port.
type Transport struct {
	port    Port
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

// WithResponseTimeout bounds the wait for a response. It must cover the
// time the chip spends looking for tags.
func WithResponseTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// readTimeout is the per read timeout of the serial port. Windows drivers
// need longer.
func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName at 115200 8N1.
func New(portName string, opts ...Option) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open UART port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout()); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set UART read timeout: %w", err)
	}
	return NewWithPort(port, portName, opts...), nil
}

// NewWithPort wraps an open port. Reads on p must return (0, nil) when no
// data arrives in time rather than block.
func NewWithPort(p Port, name string, opts ...Option) *Transport {
	t := &Transport{port: p, name: name, logger: zerolog.Nop(), timeout: defaultResponseTimeout}
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

	if err := t.write("wake up", wakeUp); err != nil {
		return nil, err
	}
	if err := t.write("command", req); err != nil {
		return nil, err
	}
	t.logger.Trace().Str("port", t.name).Hex("frame", req).Msg("sent")

	res, err := t.receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("UART %s: %w", t.name, err)
	}
	if err := t.write("ACK", frame.AckFrame); err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Transport) write(what string, b []byte) error {
	if _, err := t.port.Write(b); err != nil {
		return fmt.Errorf("UART %s write %s: %w", what, t.name, err)
	}
	if err := t.port.Drain(); err != nil {
		return fmt.Errorf("UART %s drain %s: %w", what, t.name, err)
	}
	return nil
}

// receive waits for the ACK and then for the response frame, asking for a
// retransmission when a frame arrives corrupted.
func (t *Transport) receive(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(t.timeout)
	chunk := make([]byte, chunkSize)
	var buf []byte
	acked := false
	nacks := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			if !acked {
				return nil, ErrNoACK
			}
			return nil, ErrResponseTimeout
		}

		n, err := t.port.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}
		buf = append(buf, chunk[:n]...)

		if !acked {
			end := frame.FindAck(buf)
			if end < 0 {
				continue
			}
			acked = true
			buf = buf[end:]
		}

		data, _, err := frame.Parse(buf)
		switch {
		case err == nil:
			t.logger.Trace().Str("port", t.name).Hex("data", data).Msg("received")
			return data, nil
		case errors.Is(err, frame.ErrIncomplete):
			continue
		case errors.Is(err, frame.ErrChecksum) && nacks < maxNacks:
			nacks++
			t.logger.Debug().Str("port", t.name).Int("attempt", nacks).Msg("corrupt frame, sending NACK")
			buf = buf[:0]
			if err := t.write("NACK", frame.NackFrame); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
}

// Close closes the port.
func (t *Transport) Close() error {
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close %s: %w", t.name, err)
	}
	return nil
}
