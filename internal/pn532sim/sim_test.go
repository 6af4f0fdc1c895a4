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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-nfcmanager/internal/frame"
)

var testUID = []byte{0x04, 0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0x80}

func TestListTargets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sim := New()

	res, err := sim.SendCommand(ctx, 0x4A, []byte{0x02, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x4B, 0x00}, res)

	tag := NewNTAG215(testUID)
	sim.Place(tag)
	res, err = sim.SendCommand(ctx, 0x4A, []byte{0x02, 0x00})
	require.NoError(t, err)
	want := append([]byte{0x4B, 0x01, 0x01, 0x00, 0x44, 0x00, 0x07}, testUID...)
	assert.Equal(t, want, res)
	assert.Equal(t, "04a1b2c3d4e580", tag.UID())

	sim.Place(NewNTAG213([]byte{1, 2, 3, 4, 5, 6, 7}))
	res, err = sim.SendCommand(ctx, 0x4A, []byte{0x02, 0x00})
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), res[1])
	assert.Equal(t, 3, sim.Calls(0x4A))
}

func TestReadWritePages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sim := New()
	tag := NewNTAG213(testUID)
	sim.Place(tag)

	_, err := sim.SendCommand(ctx, 0x4A, []byte{0x01, 0x00})
	require.NoError(t, err)

	res, err := sim.SendCommand(ctx, 0x40, []byte{0x01, 0x30, 0x03})
	require.NoError(t, err)
	require.Len(t, res, 18)
	assert.Equal(t, []byte{0x41, 0x00, 0xE1, 0x10, 0x12, 0x00}, res[:6])

	res, err = sim.SendCommand(ctx, 0x40, []byte{0x01, 0xA2, 0x04, 0x03, 0x01, 0xAA, 0xFE})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x00}, res)

	msg, err := tag.NDEF()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, msg)

	res, err = sim.SendCommand(ctx, 0x40, []byte{0x01, 0xA2, 0x02, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, StatusFormat}, res, "lock page is not writable")

	tag.SetReadOnly()
	res, err = sim.SendCommand(ctx, 0x40, []byte{0x01, 0xA2, 0x04, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, StatusFormat}, res)
}

func TestExchangeAfterRemoval(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sim := New()
	tag := NewNTAG215(testUID)
	sim.Place(tag)

	_, err := sim.SendCommand(ctx, 0x4A, []byte{0x01, 0x00})
	require.NoError(t, err)
	sim.Remove(tag)

	res, err := sim.SendCommand(ctx, 0x40, []byte{0x01, 0x30, 0x04})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, StatusTimeout}, res)
}

func TestFailNext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sim := New()
	sim.Place(NewNTAG215(testUID))
	_, err := sim.SendCommand(ctx, 0x4A, []byte{0x01, 0x00})
	require.NoError(t, err)

	sim.FailNext(StatusTimeout)
	res, err := sim.SendCommand(ctx, 0x40, []byte{0x01, 0x30, 0x04})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, StatusTimeout}, res)

	res, err = sim.SendCommand(ctx, 0x40, []byte{0x01, 0x30, 0x04})
	require.NoError(t, err)
	assert.Equal(t, byte(StatusOK), res[1])
}

func TestWireProtocol(t *testing.T) {
	t.Parallel()
	sim := New()

	req, err := frame.Build(0x02, nil)
	require.NoError(t, err)
	// wake-up preamble in front of the first frame
	_, err = sim.Write(append([]byte{0x55, 0x55, 0x00, 0x00}, req...))
	require.NoError(t, err)
	require.True(t, sim.Pending())

	buf := make([]byte, 64)
	n, err := sim.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 6, frame.FindAck(buf[:n]))

	data, _, err := frame.Parse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, data)

	n, err = sim.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = sim.Write(frame.NackFrame)
	require.NoError(t, err)
	n, err = sim.Read(buf)
	require.NoError(t, err)
	data, _, err = frame.Parse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), data[0])
}

func TestWireUnsupportedCommand(t *testing.T) {
	t.Parallel()
	sim := New()

	req, err := frame.Build(0x60, nil)
	require.NoError(t, err)
	_, err = sim.Write(req)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := sim.Read(buf)
	require.NoError(t, err)
	_, _, err = frame.Parse(buf[:n])
	require.ErrorIs(t, err, frame.ErrApplication)
}

func TestClosed(t *testing.T) {
	t.Parallel()
	sim := New()
	require.NoError(t, sim.Close())
	_, err := sim.SendCommand(context.Background(), 0x02, nil)
	require.ErrorIs(t, err, ErrClosed)
}
