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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/internal/pn532sim"
)

func TestDeviceInit(t *testing.T) {
	t.Parallel()

	dev, sim := newSimDevice(t)
	assert.Equal(t, Firmware{IC: 0x32, Version: 1, Revision: 6, Support: 7}, dev.Firmware())
	assert.Equal(t, "PN532 v1.6", dev.Firmware().String())
	assert.Equal(t, 1, sim.Calls(cmdSAMConfiguration))
	assert.Equal(t, 1, sim.Calls(cmdRFConfiguration))
	require.NoError(t, dev.Close())
}

func TestDeviceInitErrors(t *testing.T) {
	t.Parallel()

	ioErr := errors.New("port gone")
	err := NewDevice(&stubTransport{err: ioErr}).Init(context.Background())
	require.ErrorIs(t, err, ioErr)

	err = NewDevice(&stubTransport{reply: []byte{0x99}}).Init(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestDetectTag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev, sim := newSimDevice(t)

	_, err := dev.DetectTag(ctx)
	require.ErrorIs(t, err, ErrNoTag)

	sim.Place(pn532sim.NewNTAG215(uidA))
	target, err := dev.DetectTag(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(1), target.Number)
	assert.Equal(t, uint16(0x0044), target.ATQA)
	assert.Equal(t, "04112233445580", target.UIDHex())
	assert.True(t, target.IsType2())

	sim.Place(pn532sim.NewNTAG213(uidB))
	_, err = dev.DetectTag(ctx)
	require.ErrorIs(t, err, nfcmanager.ErrMultipleTags)
}

func TestDetectTagShortReply(t *testing.T) {
	t.Parallel()

	dev := NewDevice(&stubTransport{reply: []byte{0x4B, 0x01, 0x01, 0x00}})
	_, err := dev.DetectTag(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestExchangeStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev, sim := newSimDevice(t)
	sim.Place(pn532sim.NewNTAG215(uidA))
	target, err := dev.DetectTag(ctx)
	require.NoError(t, err)

	sim.FailNext(pn532sim.StatusTimeout)
	_, err = dev.Exchange(ctx, target.Number, 0x30, 0x04)
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Timeout())
	assert.Contains(t, ce.Error(), "timeout")

	data, err := dev.Exchange(ctx, target.Number, 0x30, 0x03)
	require.NoError(t, err)
	assert.Equal(t, byte(0xE1), data[0])

	require.NoError(t, dev.Release(ctx, target.Number))
}

func TestCommandErrorText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pn532: command 0x40 failed: CRC error (0x02)", (&CommandError{Cmd: 0x40, Status: 0x02}).Error())
	assert.Equal(t, "pn532: command 0x40 failed with status 0x3E", (&CommandError{Cmd: 0x40, Status: 0x7E}).Error())
	assert.False(t, (&CommandError{Status: 0x02}).Timeout())
}

func TestCallHonoursContext(t *testing.T) {
	t.Parallel()

	dev, _ := newSimDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := dev.DetectTag(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
