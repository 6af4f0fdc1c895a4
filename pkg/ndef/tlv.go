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

package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TLV block types used in Type 2 tag memory.
const (
	TLVNull          byte = 0x00
	TLVLockControl   byte = 0x01
	TLVMemoryControl byte = 0x02
	TLVMessage       byte = 0x03
	TLVTerminator    byte = 0xFE

	tlvLongLength byte = 0xFF
	maxTLVLength       = 0xFFFE
)

// TLV errors.
var (
	ErrTLVTruncated = errors.New("ndef: TLV data truncated")
	ErrTLVNotFound  = errors.New("ndef: no NDEF message TLV")
	ErrTLVTooLarge  = errors.New("ndef: message too large for TLV")
)

// TLVSize returns the number of bytes WrapTLV produces for a message of n
// bytes, terminator included.
func TLVSize(n int) int {
	if n < int(tlvLongLength) {
		return 2 + n + 1
	}
	return 4 + n + 1
}

// WrapTLV places an encoded NDEF message in a message TLV followed by a
// terminator TLV.
func WrapTLV(msg []byte) ([]byte, error) {
	if len(msg) > maxTLVLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTLVTooLarge, len(msg))
	}
	out := make([]byte, 0, TLVSize(len(msg)))
	out = append(out, TLVMessage)
	if len(msg) < int(tlvLongLength) {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, tlvLongLength)
		//nolint:gosec // bounded by maxTLVLength above
		out = binary.BigEndian.AppendUint16(out, uint16(len(msg)))
	}
	out = append(out, msg...)
	return append(out, TLVTerminator), nil
}

// UnwrapTLV returns the contents of the first NDEF message TLV in data,
// skipping NULL padding and any other TLV blocks before it. It returns
// ErrTLVNotFound once a terminator is reached and ErrTLVTruncated when data
// ends first.
func UnwrapTLV(data []byte) ([]byte, error) {
	off := 0
	for off < len(data) {
		t := data[off]
		switch t {
		case TLVNull:
			off++
			continue
		case TLVTerminator:
			return nil, ErrTLVNotFound
		}

		length, hdr, err := readTLVLength(data[off:])
		if err != nil {
			return nil, err
		}
		start := off + hdr
		if start+length > len(data) {
			return nil, fmt.Errorf("%w: block of %d bytes at %d", ErrTLVTruncated, length, off)
		}
		if t == TLVMessage {
			return data[start : start+length], nil
		}
		off = start + length
	}
	return nil, ErrTLVTruncated
}

// readTLVLength decodes the one or three byte length that follows a TLV type.
func readTLVLength(block []byte) (length, header int, err error) {
	if len(block) < 2 {
		return 0, 0, ErrTLVTruncated
	}
	if block[1] != tlvLongLength {
		return int(block[1]), 2, nil
	}
	if len(block) < 4 {
		return 0, 0, ErrTLVTruncated
	}
	return int(binary.BigEndian.Uint16(block[2:4])), 4, nil
}
