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

// Package pn532sim simulates a PN532 and the NTAG21x tags in its field. A
// Simulator answers commands directly, or as a byte stream through Write and
// Read the way the chip does on a serial link.
package pn532sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-nfcmanager/internal/frame"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

// InDataExchange status codes.
const (
	StatusOK           byte = 0x00
	StatusTimeout      byte = 0x01
	StatusFormat       byte = 0x13
	StatusNotSelected  byte = 0x27
	ntagNAK                 = StatusFormat
	atqaHigh, atqaLow       = 0x00, 0x44
)

// ErrUnsupportedCommand is returned for commands the simulator does not
// implement.
var ErrUnsupportedCommand = errors.New("pn532sim: unsupported command")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("pn532sim: closed")

// Simulator is a virtual PN532. It is safe for concurrent use.
type Simulator struct {
	calls    map[byte]int
	selected *Tag
	rx       bytes.Buffer
	tx       bytes.Buffer
	field    []*Tag
	lastResp []byte
	failNext []byte
	mu       syncutil.Mutex
	closed   bool
}

// New returns a simulator with an empty field.
func New() *Simulator {
	return &Simulator{calls: make(map[byte]int)}
}

// Place puts tags in the field.
func (s *Simulator) Place(tags ...*Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field = append(s.field, tags...)
}

// Remove takes tag out of the field.
func (s *Simulator) Remove(tag *Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.field {
		if t == tag {
			s.field = append(s.field[:i], s.field[i+1:]...)
			break
		}
	}
	if s.selected == tag {
		s.selected = nil
	}
}

// Clear empties the field.
func (s *Simulator) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field = nil
	s.selected = nil
}

// FailNext makes the next tag exchange return status.
func (s *Simulator) FailNext(status byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, status)
}

// Calls returns how many times cmd was received.
func (s *Simulator) Calls(cmd byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[cmd]
}

// SendCommand answers cmd directly. The reply starts with the response code.
func (s *Simulator) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.handle(cmd, args)
}

// Close implements io.Closer.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Write takes bytes sent by the host. Every complete command frame is
// acknowledged and answered on the read side. A NACK repeats the last
// response.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.rx.Write(p)

	for {
		buf := s.rx.Bytes()
		if i := bytes.Index(buf, frame.NackFrame); i >= 0 {
			s.rx.Next(i + len(frame.NackFrame))
			s.tx.Write(s.lastResp)
			continue
		}
		cmd, args, end, err := frame.ParseCommand(buf)
		if errors.Is(err, frame.ErrIncomplete) {
			return len(p), nil
		}
		s.rx.Next(end)
		if err != nil {
			// the chip stays silent on a corrupt frame
			continue
		}
		s.tx.Write(frame.AckFrame)
		s.tx.Write(s.respond(cmd, args))
	}
}

// Read returns pending reply bytes. Like a serial port with a read timeout,
// it returns 0 and no error when nothing is pending.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.tx.Len() == 0 {
		return 0, nil
	}
	n, _ := s.tx.Read(p)
	return n, nil
}

// Drain is a no-op. It lets the simulator stand in for a serial port.
func (*Simulator) Drain() error { return nil }

// Pending reports whether reply bytes are waiting to be read.
func (s *Simulator) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx.Len() > 0
}

func (s *Simulator) respond(cmd byte, args []byte) []byte {
	var out []byte
	res, err := s.handle(cmd, args)
	if err == nil {
		out, err = frame.BuildResponse(res)
	}
	if err != nil {
		out = []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}
	}
	s.lastResp = out
	return out
}

func (s *Simulator) handle(cmd byte, args []byte) ([]byte, error) {
	s.calls[cmd]++
	res := []byte{cmd + 1}
	switch cmd {
	case 0x02: // GetFirmwareVersion
		return append(res, 0x32, 0x01, 0x06, 0x07), nil
	case 0x14, 0x32: // SAMConfiguration, RFConfiguration
		return res, nil
	case 0x4A:
		return s.listTargets(res, args)
	case 0x40:
		return s.exchange(res, args), nil
	case 0x52: // InRelease
		s.selected = nil
		return append(res, StatusOK), nil
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnsupportedCommand, cmd)
	}
}

func (s *Simulator) listTargets(res, args []byte) ([]byte, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: InListPassiveTarget needs 2 arguments", ErrUnsupportedCommand)
	}
	n := min(len(s.field), int(args[0]))
	res = append(res, byte(n))
	for i := range n {
		tag := s.field[i]
		res = append(res, byte(i+1), atqaHigh, atqaLow, 0x00, byte(len(tag.uid)))
		res = append(res, tag.uid...)
	}
	s.selected = nil
	if n > 0 {
		s.selected = s.field[0]
	}
	return res, nil
}

func (s *Simulator) exchange(res, args []byte) []byte {
	if len(s.failNext) > 0 {
		status := s.failNext[0]
		s.failNext = s.failNext[1:]
		return append(res, status)
	}
	if len(args) < 2 || args[0] != 1 {
		return append(res, StatusNotSelected)
	}
	if s.selected == nil {
		return append(res, StatusTimeout)
	}

	tag, data := s.selected, args[1:]
	switch {
	case data[0] == 0x30 && len(data) == 2: // READ
		pages, err := tag.read(int(data[1]))
		if err != nil {
			return append(res, ntagNAK)
		}
		return append(append(res, StatusOK), pages...)
	case data[0] == 0xA2 && len(data) == 2+pageSize: // WRITE
		if err := tag.write(int(data[1]), data[2:]); err != nil {
			return append(res, ntagNAK)
		}
		return append(res, StatusOK)
	default:
		return append(res, ntagNAK)
	}
}
