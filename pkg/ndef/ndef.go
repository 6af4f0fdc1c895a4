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

// Package ndef implements the NFC Data Exchange Format at the wire level:
// record framing, the URI and Text well-known payloads, and the TLV
// container used on Type 2 tags.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TNF (Type Name Format) values as defined by NFC Forum.
const (
	TNFEmpty       byte = 0x00 // Empty record
	TNFWellKnown   byte = 0x01 // NFC Forum well-known type
	TNFMedia       byte = 0x02 // Media-type (RFC 2046)
	TNFAbsoluteURI byte = 0x03 // Absolute URI (RFC 3986)
	TNFExternal    byte = 0x04 // NFC Forum external type
	TNFUnknown     byte = 0x05 // Unknown
	TNFUnchanged   byte = 0x06 // Middle and last chunks
	TNFReserved    byte = 0x07
)

// Record header bits.
const (
	flagMB  byte = 0x80
	flagME  byte = 0x40
	flagCF  byte = 0x20
	flagSR  byte = 0x10
	flagIL  byte = 0x08
	tnfMask byte = 0x07

	maxShortPayload = 0xFF
	maxFieldLength  = 0xFF // TYPE_LENGTH and ID_LENGTH are single bytes
)

// Common errors.
var (
	ErrEmptyMessage    = errors.New("ndef: empty message")
	ErrTruncatedRecord = errors.New("ndef: truncated record data")
	ErrInvalidTNF      = errors.New("ndef: invalid TNF value")
	ErrChunkedRecord   = errors.New("ndef: chunked records not supported")
	ErrFieldTooLong    = errors.New("ndef: type or ID exceeds 255 bytes")
)

// Record is a single NDEF record. The MB and ME flags are not stored; they
// follow from the record's position when a Message is marshalled.
type Record struct {
	Type    string
	ID      string
	Payload []byte
	TNF     byte
}

// NewRecord returns a record with the given type name format, type and payload.
func NewRecord(tnf byte, recordType string, payload []byte) *Record {
	return &Record{TNF: tnf, Type: recordType, Payload: payload}
}

// Is reports whether r carries the given TNF and type.
func (r *Record) Is(tnf byte, recordType string) bool {
	return r != nil && r.TNF == tnf && r.Type == recordType
}

// String renders the record for logs.
func (r *Record) String() string {
	return fmt.Sprintf("ndef.Record{tnf=%d type=%q id=%q payload=%d bytes}",
		r.TNF, r.Type, r.ID, len(r.Payload))
}

// Marshal serializes r as a message holding only this record.
func (r *Record) Marshal() ([]byte, error) {
	return r.appendTo(nil, true, true)
}

func (r *Record) appendTo(dst []byte, first, last bool) ([]byte, error) {
	if r.TNF > TNFUnchanged {
		return nil, ErrInvalidTNF
	}
	if len(r.Type) > maxFieldLength || len(r.ID) > maxFieldLength {
		return nil, ErrFieldTooLong
	}

	short := len(r.Payload) <= maxShortPayload
	flags := r.TNF & tnfMask
	if first {
		flags |= flagMB
	}
	if last {
		flags |= flagME
	}
	if short {
		flags |= flagSR
	}
	if r.ID != "" {
		flags |= flagIL
	}

	dst = append(dst, flags, byte(len(r.Type)))
	if short {
		dst = append(dst, byte(len(r.Payload)))
	} else {
		//nolint:gosec // payload length fits in uint32 for any tag memory
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(r.Payload)))
	}
	if r.ID != "" {
		dst = append(dst, byte(len(r.ID)))
	}
	dst = append(dst, r.Type...)
	dst = append(dst, r.ID...)
	return append(dst, r.Payload...), nil
}

// recordHeader is the decoded fixed part of a record.
type recordHeader struct {
	flags      byte
	typeLen    int
	idLen      int
	payloadLen int
	size       int // header bytes before TYPE
}

func readHeader(data []byte) (recordHeader, error) {
	var h recordHeader
	if len(data) < 3 {
		return h, ErrTruncatedRecord
	}
	h.flags = data[0]
	h.typeLen = int(data[1])
	h.size = 2

	if h.flags&flagCF != 0 {
		return h, ErrChunkedRecord
	}
	if h.flags&tnfMask == TNFReserved {
		return h, ErrInvalidTNF
	}

	if h.flags&flagSR != 0 {
		h.payloadLen = int(data[h.size])
		h.size++
	} else {
		if len(data) < h.size+4 {
			return h, ErrTruncatedRecord
		}
		h.payloadLen = int(binary.BigEndian.Uint32(data[h.size:]))
		h.size += 4
	}

	if h.flags&flagIL != 0 {
		if len(data) <= h.size {
			return h, ErrTruncatedRecord
		}
		h.idLen = int(data[h.size])
		h.size++
	}

	if h.payloadLen < 0 || len(data)-h.size < h.typeLen+h.idLen+h.payloadLen {
		return h, ErrTruncatedRecord
	}
	return h, nil
}

// Unmarshal parses one record from data and returns the bytes consumed.
func (r *Record) Unmarshal(data []byte) (int, error) {
	_, n, err := r.unmarshal(data)
	return n, err
}

func (r *Record) unmarshal(data []byte) (recordHeader, int, error) {
	h, err := readHeader(data)
	if err != nil {
		return h, 0, err
	}

	off := h.size
	r.TNF = h.flags & tnfMask
	r.Type = string(data[off : off+h.typeLen])
	off += h.typeLen
	r.ID = string(data[off : off+h.idLen])
	off += h.idLen
	r.Payload = append([]byte(nil), data[off:off+h.payloadLen]...)
	off += h.payloadLen

	return h, off, nil
}

// Message is an ordered list of NDEF records.
type Message struct {
	Records []*Record
}

// Marshal serializes the message, setting MB on the first record and ME on
// the last.
func (m *Message) Marshal() ([]byte, error) {
	if len(m.Records) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	for i, rec := range m.Records {
		var err error
		out, err = rec.appendTo(out, i == 0, i == len(m.Records)-1)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return out, nil
}

// Unmarshal parses records from data until one carries the ME flag or the
// data runs out, and returns the bytes consumed.
func (m *Message) Unmarshal(data []byte) (int, error) {
	m.Records = nil
	off := 0
	for off < len(data) {
		rec := &Record{}
		h, n, err := rec.unmarshal(data[off:])
		if err != nil {
			return off, fmt.Errorf("record at offset %d: %w", off, err)
		}
		m.Records = append(m.Records, rec)
		off += n
		if h.flags&flagME != 0 {
			break
		}
	}
	if len(m.Records) == 0 {
		return 0, ErrEmptyMessage
	}
	return off, nil
}

// ParseMessage is shorthand for unmarshalling a message and returning its
// records.
func ParseMessage(data []byte) ([]*Record, error) {
	var m Message
	if _, err := m.Unmarshal(data); err != nil {
		return nil, err
	}
	return m.Records, nil
}
