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

// Package remote lets a phone act as the NFC reader. The phone connects over
// a websocket, is told when a read or write is armed, and relays the tags it
// scans as raw NDEF records.
package remote

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// Path is where the websocket endpoint is served.
const Path = "/nfc"

// Message types.
const (
	TypeHello       = "hello"
	TypeArm         = "arm"
	TypeDisarm      = "disarm"
	TypeTag         = "tag"
	TypeWrite       = "write"
	TypeWritten     = "written"
	TypeInvalidated = "invalidated"
	TypeError       = "error"
)

// Error codes a phone reports in written and invalidated messages.
const (
	CodeReadOnly     = "read_only"
	CodeCapacity     = "capacity"
	CodeNotFormatted = "not_ndef"
	CodeTagLost      = "tag_lost"
	CodeMultipleTags = "multiple_tags"
	CodeCancelled    = "cancelled"
)

// Remote errors.
var (
	ErrNoPhone      = errors.New("remote: no phone connected")
	ErrDisconnected = errors.New("remote: phone disconnected")
	ErrPhone        = errors.New("remote: phone reported an error")
	ErrCancelled    = errors.New("remote: cancelled on the phone")
	ErrClosed       = errors.New("remote: server closed")
)

// Record is an NDEF record on the wire. Payload is base64 in JSON.
type Record struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload []byte `json:"payload"`
	TNF     byte   `json:"tnf"`
}

// Envelope is every message in either direction. Fields not used by a
// message type are left empty.
type Envelope struct {
	Type    string   `json:"type"`
	Usage   string   `json:"usage,omitempty"`
	Alert   string   `json:"alert,omitempty"`
	UID     string   `json:"uid,omitempty"`
	Device  string   `json:"device,omitempty"`
	Error   string   `json:"error,omitempty"`
	Code    string   `json:"code,omitempty"`
	Records []Record `json:"records,omitempty"`
	ID      uuid.UUID `json:"id,omitzero"`
	CanRead bool     `json:"canRead,omitempty"`
}

func toWire(records []*ndef.Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, Record{TNF: r.TNF, Type: r.Type, ID: r.ID, Payload: r.Payload})
	}
	return out
}

func fromWire(records []Record) ([]*ndef.Record, error) {
	out := make([]*ndef.Record, 0, len(records))
	for i, r := range records {
		if r.TNF > ndef.TNFReserved {
			return nil, fmt.Errorf("record %d: %w: %d", i, ndef.ErrInvalidTNF, r.TNF)
		}
		rec := ndef.NewRecord(r.TNF, r.Type, r.Payload)
		rec.ID = r.ID
		out = append(out, rec)
	}
	return out, nil
}

// phoneError turns an error reported by the phone into one the manager
// understands.
func phoneError(code, text string) error {
	var base error
	switch code {
	case "":
		if text == "" {
			return nil
		}
		base = ErrPhone
	case CodeReadOnly:
		base = nfcmanager.ErrTagReadOnly
	case CodeCapacity:
		base = nfcmanager.ErrTagCapacity
	case CodeNotFormatted:
		base = nfcmanager.ErrNotNDEFFormatted
	case CodeTagLost:
		base = nfcmanager.ErrTagLost
	case CodeMultipleTags:
		base = nfcmanager.ErrMultipleTags
	case CodeCancelled:
		base = ErrCancelled
	default:
		base = ErrPhone
	}
	if text == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, text)
}
