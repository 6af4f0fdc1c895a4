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

package pn532sim

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

const (
	pageSize  = 4
	userPage  = 4
	readPages = 4
)

var (
	errPageRange = errors.New("page out of range")
	errReadOnly  = errors.New("page is read only")
)

// Tag is a simulated NTAG21x tag.
type Tag struct {
	uid      []byte
	mem      []byte
	mu       syncutil.Mutex
	userEnd  int
	readOnly bool
}

func newTag(uid []byte, pages int, ccSize byte) *Tag {
	t := &Tag{
		uid:     append([]byte(nil), uid...),
		mem:     make([]byte, pages*pageSize),
		userEnd: userPage + int(ccSize)*8/pageSize,
	}
	copy(t.mem, uid)
	copy(t.mem[3*pageSize:], []byte{0xE1, 0x10, ccSize, 0x00})
	copy(t.mem[userPage*pageSize:], []byte{ndef.TLVMessage, 0x00, ndef.TLVTerminator})
	return t
}

// NewNTAG213 returns an empty, formatted NTAG213 with 144 bytes of user
// memory.
func NewNTAG213(uid []byte) *Tag { return newTag(uid, 45, 0x12) }

// NewNTAG215 returns an empty, formatted NTAG215 with 496 bytes of user
// memory.
func NewNTAG215(uid []byte) *Tag { return newTag(uid, 135, 0x3E) }

// UID returns the tag UID as lowercase hex.
func (t *Tag) UID() string { return hex.EncodeToString(t.uid) }

// SetNDEF stores an encoded NDEF message in a message TLV.
func (t *Tag) SetNDEF(msg []byte) error {
	data, err := ndef.WrapTLV(msg)
	if err != nil {
		return fmt.Errorf("wrap NDEF message: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if userPage*pageSize+len(data) > t.userEnd*pageSize {
		return fmt.Errorf("message of %d bytes does not fit", len(msg))
	}
	copy(t.mem[userPage*pageSize:], data)
	return nil
}

// NDEF returns the message stored on the tag.
func (t *Tag) NDEF() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg, err := ndef.UnwrapTLV(t.mem[userPage*pageSize : t.userEnd*pageSize])
	if err != nil {
		return nil, fmt.Errorf("unwrap NDEF message: %w", err)
	}
	return append([]byte(nil), msg...), nil
}

// SetReadOnly sets the write access nibble of the capability container.
func (t *Tag) SetReadOnly() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readOnly = true
	t.mem[3*pageSize+3] = 0x0F
}

// Unformat clears the capability container.
func (t *Tag) Unformat() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.mem[3*pageSize : 4*pageSize])
}

// read returns four pages starting at page, rolling over at the end of
// memory like the real tag.
func (t *Tag) read(page int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pages := len(t.mem) / pageSize
	if page >= pages {
		return nil, errPageRange
	}
	out := make([]byte, 0, readPages*pageSize)
	for i := range readPages {
		p := (page + i) % pages
		out = append(out, t.mem[p*pageSize:(p+1)*pageSize]...)
	}
	return out, nil
}

func (t *Tag) write(page int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if page < userPage || page >= t.userEnd {
		return errPageRange
	}
	if t.readOnly {
		return errReadOnly
	}
	copy(t.mem[page*pageSize:(page+1)*pageSize], data)
	return nil
}
