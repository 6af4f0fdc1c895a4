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

// Package frame builds and parses PN532 host interface frames.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame direction identifiers (TFI).
const (
	HostToPn532 byte = 0xD4
	Pn532ToHost byte = 0xD5
	errorTFI    byte = 0x7F
)

// MaxDataLength is the largest TFI+command+args length of a normal frame.
const MaxDataLength = 255

// ACK and NACK frames.
var (
	AckFrame  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	NackFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}

	startCode = []byte{0x00, 0xFF}
)

// Parse errors.
var (
	ErrIncomplete  = errors.New("frame: incomplete")
	ErrChecksum    = errors.New("frame: checksum mismatch")
	ErrDirection   = errors.New("frame: unexpected TFI")
	ErrApplication = errors.New("frame: PN532 application error frame")
	ErrTooLarge    = errors.New("frame: data exceeds normal frame length")
	ErrMalformed   = errors.New("frame: malformed")
)

// Checksum returns the byte that makes the sum of data plus itself zero.
func Checksum(data ...byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// Build returns a normal information frame carrying cmd and args from the
// host.
func Build(cmd byte, args []byte) ([]byte, error) {
	return encode(HostToPn532, append([]byte{cmd}, args...))
}

// BuildResponse returns a frame from the PN532 carrying data, which starts
// with the response code.
func BuildResponse(data []byte) ([]byte, error) {
	return encode(Pn532ToHost, data)
}

func encode(tfi byte, data []byte) ([]byte, error) {
	n := 1 + len(data)
	if n > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}

	out := make([]byte, 0, n+7)
	out = append(out, 0x00, 0x00, 0xFF, byte(n), Checksum(byte(n)), tfi)
	out = append(out, data...)
	return append(out, Checksum(out[5:]...), 0x00), nil
}

// FindAck reports where an ACK frame ends in buf, or -1.
func FindAck(buf []byte) int {
	i := bytes.Index(buf, AckFrame)
	if i < 0 {
		return -1
	}
	return i + len(AckFrame)
}

// Parse looks for a response frame in buf. It returns the bytes after the
// TFI, starting with the response code, and the offset just past the frame.
// ACK frames in front of the response are skipped. ErrIncomplete means more
// bytes are needed.
func Parse(buf []byte) (data []byte, end int, err error) {
	return parse(buf, Pn532ToHost)
}

// ParseCommand is the chip side of Parse. It returns the command code and
// arguments of the first host frame in buf.
func ParseCommand(buf []byte) (cmd byte, args []byte, end int, err error) {
	data, end, err := parse(buf, HostToPn532)
	if err != nil {
		return 0, nil, end, err
	}
	if len(data) == 0 {
		return 0, nil, end, fmt.Errorf("%w: no command code", ErrMalformed)
	}
	return data[0], data[1:], end, nil
}

func parse(buf []byte, tfi byte) (data []byte, end int, err error) {
	base := 0
	for {
		i := bytes.Index(buf[base:], startCode)
		if i < 0 {
			return nil, 0, ErrIncomplete
		}
		off := base + i + len(startCode)
		if len(buf) < off+2 {
			return nil, 0, ErrIncomplete
		}
		n, lcs := buf[off], buf[off+1]
		if n == 0 && lcs == 0xFF {
			base = off + 2
			continue
		}
		if n+lcs != 0 {
			return nil, off + 2, fmt.Errorf("%w: length", ErrChecksum)
		}
		return parseBody(buf, off+2, int(n), tfi)
	}
}

func parseBody(buf []byte, body, n int, tfi byte) (data []byte, end int, err error) {
	if len(buf) < body+n+1 {
		return nil, 0, ErrIncomplete
	}
	end = min(body+n+2, len(buf)) // DCS, postamble
	payload := buf[body : body+n]
	if Checksum(payload...) != buf[body+n] {
		return nil, end, fmt.Errorf("%w: data", ErrChecksum)
	}

	if n == 0 {
		return nil, end, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	switch payload[0] {
	case tfi:
		return append([]byte(nil), payload[1:]...), end, nil
	case errorTFI:
		return nil, end, ErrApplication
	default:
		return nil, end, fmt.Errorf("%w: 0x%02X", ErrDirection, payload[0])
	}
}
