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

package pn532

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// Type 2 tag commands and memory layout.
const (
	t2Read  byte = 0x30
	t2Write byte = 0xA2

	ccPage    = 3
	userPage  = 4
	pageSize  = 4
	readPages = 4 // READ returns four pages

	ccMagic      byte = 0xE1
	ccWriteMask  byte = 0x0F
	ccSizeFactor      = 8
)

// capability is the Type 2 capability container in page 3.
type capability [pageSize]byte

func (c capability) formatted() bool { return c[0] == ccMagic }
func (c capability) dataSize() int   { return int(c[2]) * ccSizeFactor }
func (c capability) writable() bool  { return c[3]&ccWriteMask == 0 }

// Type2Tag is an NFC Forum Type 2 tag selected by the reader.
type Type2Tag struct {
	dev    *Device
	target Target
}

// NewType2Tag returns a tag handle for a target found by DetectTag.
func NewType2Tag(dev *Device, target Target) *Type2Tag {
	return &Type2Tag{dev: dev, target: target}
}

// UID implements nfcmanager.Tag.
func (t *Type2Tag) UID() string { return t.target.UIDHex() }

// Target returns the activation data of the tag.
func (t *Type2Tag) Target() Target { return t.target }

func (t *Type2Tag) read(ctx context.Context, page int) ([]byte, error) {
	data, err := t.dev.Exchange(ctx, t.target.Number, t2Read, byte(page))
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", page, tagErr(err))
	}
	if len(data) < readPages*pageSize {
		return nil, fmt.Errorf("read page %d: %w: %d bytes", page, ErrUnexpectedResponse, len(data))
	}
	return data[:readPages*pageSize], nil
}

func (t *Type2Tag) write(ctx context.Context, page int, data []byte) error {
	args := append([]byte{t2Write, byte(page)}, data...)
	if _, err := t.dev.Exchange(ctx, t.target.Number, args...); err != nil {
		return fmt.Errorf("write page %d: %w", page, tagErr(err))
	}
	return nil
}

// tagErr marks tag timeouts as a lost connection.
func tagErr(err error) error {
	var ce *CommandError
	if errors.As(err, &ce) && ce.Timeout() {
		return fmt.Errorf("%w: %w", nfcmanager.ErrTagLost, err)
	}
	return err
}

func (t *Type2Tag) capability(ctx context.Context) (capability, error) {
	var cc capability
	data, err := t.read(ctx, ccPage)
	if err != nil {
		return cc, err
	}
	copy(cc[:], data)
	if !cc.formatted() {
		return cc, fmt.Errorf("%w: capability container % X", nfcmanager.ErrNotNDEFFormatted, cc[:])
	}
	return cc, nil
}

// ReadNDEF implements nfcmanager.Tag. A formatted tag with an empty NDEF
// message returns no records and no error.
func (t *Type2Tag) ReadNDEF(ctx context.Context) ([]*ndef.Record, error) {
	cc, err := t.capability(ctx)
	if err != nil {
		return nil, err
	}

	size := cc.dataSize()
	mem := make([]byte, 0, size+readPages*pageSize)
	for page := userPage; len(mem) < size; page += readPages {
		chunk, err := t.read(ctx, page)
		if err != nil {
			return nil, err
		}
		mem = append(mem, chunk...)
		if len(mem) > size {
			mem = mem[:size]
		}

		msg, err := ndef.UnwrapTLV(mem)
		switch {
		case err == nil:
			return parseRecords(msg)
		case errors.Is(err, ndef.ErrTLVTruncated):
			continue
		default:
			return nil, fmt.Errorf("%w: %w", nfcmanager.ErrNotNDEFFormatted, err)
		}
	}
	return nil, fmt.Errorf("%w: %w", nfcmanager.ErrNotNDEFFormatted, ndef.ErrTLVTruncated)
}

func parseRecords(msg []byte) ([]*ndef.Record, error) {
	if len(msg) == 0 {
		return nil, nil
	}
	records, err := ndef.ParseMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("parse NDEF message: %w", err)
	}
	return records, nil
}

// WriteNDEF implements nfcmanager.Tag.
func (t *Type2Tag) WriteNDEF(ctx context.Context, records []*ndef.Record) error {
	cc, err := t.capability(ctx)
	if err != nil {
		return err
	}
	if !cc.writable() {
		return nfcmanager.ErrTagReadOnly
	}

	msg, err := (&ndef.Message{Records: records}).Marshal()
	if err != nil {
		return fmt.Errorf("encode NDEF message: %w", err)
	}
	data, err := ndef.WrapTLV(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", nfcmanager.ErrTagCapacity, err)
	}
	if len(data) > cc.dataSize() {
		return fmt.Errorf("%w: need %d bytes, tag holds %d", nfcmanager.ErrTagCapacity, len(data), cc.dataSize())
	}
	if pad := len(data) % pageSize; pad != 0 {
		data = append(data, make([]byte, pageSize-pad)...)
	}

	for i := 0; i < len(data); i += pageSize {
		if err := t.write(ctx, userPage+i/pageSize, data[i:i+pageSize]); err != nil {
			return err
		}
	}
	return nil
}

var _ nfcmanager.Tag = (*Type2Tag)(nil)
