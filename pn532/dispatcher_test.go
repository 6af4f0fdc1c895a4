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
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/internal/pn532sim"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var fastConfig = Config{
	PollInterval:       5 * time.Millisecond,
	CardRemovalTimeout: 20 * time.Millisecond,
	MaxPollErrors:      3,
}

// recordingHandler counts dispatched tags and never ends the session.
type recordingHandler struct {
	invalid error
	panics  bool
	uids    []string
	mu      syncutil.Mutex
}

func (h *recordingHandler) HandleTag(_ context.Context, tag nfcmanager.Tag) error {
	h.mu.Lock()
	h.uids = append(h.uids, tag.UID())
	panics := h.panics
	h.mu.Unlock()
	if panics {
		panic("boom")
	}
	return nil
}

func (h *recordingHandler) HandleInvalid(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalid = err
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.uids...)
}

func (h *recordingHandler) invalidErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalid
}

func TestDispatcherDeduplicatesResidentTag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dev, sim := newSimDevice(t)
	clock := clockwork.NewFakeClock()
	d := NewDispatcher(dev, WithClock(clock), WithConfig(Config{
		PollInterval:       time.Second,
		CardRemovalTimeout: 3 * time.Second,
	}))
	defer func() { require.NoError(t, d.Close()) }()

	vt := pn532sim.NewNTAG215(uidA)
	sim.Place(vt)
	h := &recordingHandler{}
	require.NoError(t, d.EnableForegroundDispatch(ctx, nfcmanager.DispatchRequest{Handler: h}))

	// first poll runs without waiting for the ticker
	require.Eventually(t, func() bool { return sim.Calls(cmdInRelease) == 1 }, waitFor, tick)
	assert.Len(t, h.seen(), 1)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return sim.Calls(cmdInRelease) == 2 }, waitFor, tick)
	assert.Len(t, h.seen(), 1, "resident tag is not dispatched twice")

	// a short lift inside the removal timeout is ignored
	sim.Remove(vt)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return sim.Calls(cmdInListPassiveTarget) >= 3 }, waitFor, tick)
	sim.Place(vt)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return sim.Calls(cmdInRelease) == 3 }, waitFor, tick)
	assert.Len(t, h.seen(), 1)

	// a real removal allows the tag to be dispatched again
	sim.Remove(vt)
	polls := sim.Calls(cmdInListPassiveTarget)
	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return sim.Calls(cmdInListPassiveTarget) > polls }, waitFor, tick)
	sim.Place(vt)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(h.seen()) == 2 }, waitFor, tick)
}

func TestDispatcherRearmKeepsResidentTag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dev, sim := newSimDevice(t)
	d := NewDispatcher(dev, WithConfig(fastConfig))
	defer func() { require.NoError(t, d.Close()) }()

	vt := pn532sim.NewNTAG215(uidA)
	sim.Place(vt)
	h := &recordingHandler{}
	read := nfcmanager.DispatchRequest{Handler: h, Usage: nfcmanager.UsageRead}
	require.NoError(t, d.EnableForegroundDispatch(ctx, read))
	require.Eventually(t, func() bool { return len(h.seen()) == 1 }, waitFor, tick)

	// re-arming for another read does not hand over the same tag again
	require.NoError(t, d.DisableForegroundDispatch())
	require.NoError(t, d.EnableForegroundDispatch(ctx, read))
	polls := sim.Calls(cmdInRelease)
	require.Eventually(t, func() bool { return sim.Calls(cmdInRelease) >= polls+5 }, waitFor, tick)
	assert.Len(t, h.seen(), 1)

	// a write is served by the tag on the reader
	write := nfcmanager.DispatchRequest{Handler: h, Usage: nfcmanager.UsageWrite}
	require.NoError(t, d.EnableForegroundDispatch(ctx, write))
	require.Eventually(t, func() bool { return len(h.seen()) == 2 }, waitFor, tick)

	// and the tag can be read back after the write
	require.NoError(t, d.EnableForegroundDispatch(ctx, read))
	require.Eventually(t, func() bool { return len(h.seen()) == 3 }, waitFor, tick)

	// after removal the same usage gets the tag again
	sim.Remove(vt)
	polls = sim.Calls(cmdInListPassiveTarget)
	require.Eventually(t, func() bool { return sim.Calls(cmdInListPassiveTarget) >= polls+10 }, waitFor, tick)
	sim.Place(vt)
	require.Eventually(t, func() bool { return len(h.seen()) == 4 }, waitFor, tick)
}

func TestDispatcherSkipsMultipleTags(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dev, sim := newSimDevice(t)
	d := NewDispatcher(dev, WithConfig(fastConfig))
	defer func() { require.NoError(t, d.Close()) }()

	a, b := pn532sim.NewNTAG215(uidA), pn532sim.NewNTAG215(uidB)
	sim.Place(a, b)
	h := &recordingHandler{}
	require.NoError(t, d.EnableForegroundDispatch(ctx, nfcmanager.DispatchRequest{Handler: h}))

	require.Eventually(t, func() bool { return sim.Calls(cmdInListPassiveTarget) >= 3 }, waitFor, tick)
	assert.Empty(t, h.seen())

	sim.Remove(a)
	require.Eventually(t, func() bool { return len(h.seen()) == 1 }, waitFor, tick)
	assert.Equal(t, "0466778899aa80", h.seen()[0])
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dev, sim := newSimDevice(t)
	d := NewDispatcher(dev, WithConfig(fastConfig))
	defer func() { require.NoError(t, d.Close()) }()

	sim.Place(pn532sim.NewNTAG215(uidA))
	h := &recordingHandler{panics: true}
	require.NoError(t, d.EnableForegroundDispatch(ctx, nfcmanager.DispatchRequest{Handler: h}))

	require.Eventually(t, func() bool { return sim.Calls(cmdInRelease) >= 1 }, waitFor, tick)
	assert.Len(t, h.seen(), 1)
}

func TestDispatcherReaderFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dev, sim := newSimDevice(t)
	d := NewDispatcher(dev, WithConfig(fastConfig))
	defer func() { require.NoError(t, d.Close()) }()

	h := &recordingHandler{}
	require.NoError(t, sim.Close())
	require.NoError(t, d.EnableForegroundDispatch(ctx, nfcmanager.DispatchRequest{Handler: h}))

	require.Eventually(t, func() bool { return h.invalidErr() != nil }, waitFor, tick)
	require.ErrorIs(t, h.invalidErr(), ErrReaderFailed)
	require.ErrorIs(t, h.invalidErr(), pn532sim.ErrClosed)
}

func TestDispatcherClosed(t *testing.T) {
	t.Parallel()

	dev, _ := newSimDevice(t)
	d := NewDispatcher(dev)
	assert.True(t, d.ReadingAvailable())
	require.NoError(t, d.Close())
	assert.False(t, d.ReadingAvailable())

	err := d.EnableForegroundDispatch(context.Background(), nfcmanager.DispatchRequest{Handler: &recordingHandler{}})
	require.ErrorIs(t, err, ErrDispatcherClosed)
}

// End to end: the manager arms the dispatcher and the simulated tag is read
// and written through the PN532 command set.

func newManager(t *testing.T) (*nfcmanager.Manager, *pn532sim.Simulator) {
	t.Helper()
	dev, sim := newSimDevice(t)
	d := NewDispatcher(dev, WithConfig(fastConfig))
	t.Cleanup(func() { require.NoError(t, d.Close()) })
	return nfcmanager.NewManager(d), sim
}

func TestManagerReadThroughPN532(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	m, sim := newManager(t)
	vt := pn532sim.NewNTAG215(uidA)
	text, err := ndef.NewTextRecord("Super Mario", "en")
	require.NoError(t, err)
	msg, err := (&ndef.Message{Records: []*ndef.Record{ndef.NewURIRecord("sms:12345"), text}}).Marshal()
	require.NoError(t, err)
	require.NoError(t, vt.SetNDEF(msg))

	h, err := m.ReadTag(ctx)
	require.NoError(t, err)
	assert.Equal(t, nfcmanager.UsageRead, m.Usage())

	sim.Place(vt)
	got, err := h.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sms:12345", got.URI.URL)
	assert.Equal(t, nfcmanager.URLTypeSMS, got.URI.Type)
	assert.Equal(t, "Super Mario", got.Text.Text)
	assert.Equal(t, nfcmanager.UsageNone, m.Usage())
}

func TestManagerWriteThroughPN532(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	m, sim := newManager(t)
	vt := pn532sim.NewNTAG213(uidA)
	sim.Place(vt)

	h, err := m.WriteTag(ctx, nfcmanager.Message{
		URI: &nfcmanager.URIRecord{URL: "hello@example.com", Type: nfcmanager.URLTypeEmail},
	})
	require.NoError(t, err)
	require.NoError(t, h.Wait(ctx))
	assert.Equal(t, nfcmanager.UsageNone, m.Usage())

	stored, err := vt.NDEF()
	require.NoError(t, err)
	records, err := ndef.ParseMessage(stored)
	require.NoError(t, err)
	decoded := nfcmanager.DecodeMessage(records)
	require.NotNil(t, decoded.URI)
	assert.Equal(t, "mailto:hello@example.com", decoded.URI.URL)
}

func TestManagerWriteReadOnlyTag(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	m, sim := newManager(t)
	vt := pn532sim.NewNTAG213(uidA)
	vt.SetReadOnly()
	sim.Place(vt)

	h, err := m.WriteTag(ctx, nfcmanager.NewTextMessage("locked", "en"))
	require.NoError(t, err)
	err = h.Wait(ctx)
	require.ErrorIs(t, err, nfcmanager.ErrTagReadOnly)
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}
