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
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager"
)

// PN532 commands.
const (
	cmdGetFirmwareVersion  byte = 0x02
	cmdSAMConfiguration    byte = 0x14
	cmdRFConfiguration     byte = 0x32
	cmdInDataExchange      byte = 0x40
	cmdInListPassiveTarget byte = 0x4A
	cmdInRelease           byte = 0x52
)

const (
	samNormalMode   byte = 0x01
	samTimeout      byte = 0x14 // x 50ms
	rfMaxRetries    byte = 0x05
	baudTypeA106    byte = 0x00
	maxTargets      byte = 0x02
	defaultRetries  byte = 0x20
	statusErrorMask byte = 0x3F
)

// Firmware identifies the chip and its firmware.
type Firmware struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

func (f Firmware) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Version, f.Revision)
}

// Target is a tag found by InListPassiveTarget.
type Target struct {
	UID    []byte
	ATQA   uint16
	Number byte
	SAK    byte
}

// UIDHex returns the UID as lowercase hex.
func (t Target) UIDHex() string {
	return hex.EncodeToString(t.UID)
}

// IsType2 reports whether the SAK says the tag speaks the Type 2 command set.
func (t Target) IsType2() bool {
	return t.SAK == 0x00
}

// Device issues commands to a PN532 over a Transport.
type Device struct {
	transport Transport
	logger    zerolog.Logger
	firmware  Firmware
	retries   byte
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithDeviceLogger sets the device logger.
func WithDeviceLogger(l zerolog.Logger) DeviceOption {
	return func(d *Device) { d.logger = l }
}

// WithPassiveRetries sets how many times the chip retries activation before
// InListPassiveTarget gives up. 0xFF retries forever and should be avoided.
func WithPassiveRetries(n byte) DeviceOption {
	return func(d *Device) { d.retries = n }
}

// NewDevice wraps t. Call Init before use.
func NewDevice(t Transport, opts ...DeviceOption) *Device {
	d := &Device{transport: t, logger: zerolog.Nop(), retries: defaultRetries}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init configures the SAM and the activation retry count and reads the
// firmware version.
func (d *Device) Init(ctx context.Context) error {
	if err := d.SAMConfiguration(ctx); err != nil {
		return err
	}
	if _, err := d.call(ctx, cmdRFConfiguration, rfMaxRetries, 0xFF, 0x01, d.retries); err != nil {
		return fmt.Errorf("set passive retries: %w", err)
	}
	fw, err := d.FirmwareVersion(ctx)
	if err != nil {
		return err
	}
	d.firmware = fw
	d.logger.Info().Stringer("firmware", fw).Msg("pn532 ready")
	return nil
}

// Firmware returns the version read by Init.
func (d *Device) Firmware() Firmware { return d.firmware }

// Close closes the transport.
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// call sends cmd and strips the response code from the reply.
func (d *Device) call(ctx context.Context, cmd byte, args ...byte) ([]byte, error) {
	res, err := d.transport.SendCommand(ctx, cmd, args)
	if err != nil {
		return nil, fmt.Errorf("command 0x%02X: %w", cmd, err)
	}
	if len(res) == 0 || res[0] != cmd+1 {
		return nil, fmt.Errorf("%w to 0x%02X: % X", ErrUnexpectedResponse, cmd, res)
	}
	return res[1:], nil
}

// FirmwareVersion runs GetFirmwareVersion.
func (d *Device) FirmwareVersion(ctx context.Context) (Firmware, error) {
	res, err := d.call(ctx, cmdGetFirmwareVersion)
	if err != nil {
		return Firmware{}, err
	}
	if len(res) < 4 {
		return Firmware{}, fmt.Errorf("%w: firmware version % X", ErrUnexpectedResponse, res)
	}
	return Firmware{IC: res[0], Version: res[1], Revision: res[2], Support: res[3]}, nil
}

// SAMConfiguration puts the chip in normal mode with the IRQ pin enabled.
func (d *Device) SAMConfiguration(ctx context.Context) error {
	if _, err := d.call(ctx, cmdSAMConfiguration, samNormalMode, samTimeout, 0x01); err != nil {
		return fmt.Errorf("SAM configuration: %w", err)
	}
	return nil
}

// DetectTag looks for ISO14443A tags. It returns ErrNoTag when the field is
// empty and nfcmanager.ErrMultipleTags when more than one tag answers.
func (d *Device) DetectTag(ctx context.Context) (Target, error) {
	res, err := d.call(ctx, cmdInListPassiveTarget, maxTargets, baudTypeA106)
	if err != nil {
		return Target{}, err
	}
	if len(res) == 0 || res[0] == 0 {
		return Target{}, ErrNoTag
	}
	if res[0] > 1 {
		return Target{}, nfcmanager.ErrMultipleTags
	}
	// Tg, ATQA(2), SAK, NFCIDLength, NFCID
	if len(res) < 6 || len(res) < 6+int(res[5]) {
		return Target{}, fmt.Errorf("%w: target data % X", ErrUnexpectedResponse, res)
	}
	uidLen := int(res[5])
	return Target{
		Number: res[1],
		ATQA:   binary.BigEndian.Uint16(res[2:4]),
		SAK:    res[4],
		UID:    append([]byte(nil), res[6:6+uidLen]...),
	}, nil
}

// Exchange sends data to target tg with InDataExchange and returns the
// tag's answer.
func (d *Device) Exchange(ctx context.Context, tg byte, data ...byte) ([]byte, error) {
	res, err := d.call(ctx, cmdInDataExchange, append([]byte{tg}, data...)...)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: empty data exchange", ErrUnexpectedResponse)
	}
	if res[0]&statusErrorMask != 0 {
		return nil, &CommandError{Cmd: cmdInDataExchange, Status: res[0]}
	}
	return res[1:], nil
}

// Release deselects target tg.
func (d *Device) Release(ctx context.Context, tg byte) error {
	res, err := d.call(ctx, cmdInRelease, tg)
	if err != nil {
		return err
	}
	if len(res) > 0 && res[0]&statusErrorMask != 0 {
		return &CommandError{Cmd: cmdInRelease, Status: res[0]}
	}
	return nil
}
