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
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

// ErrDispatcherClosed is returned by EnableForegroundDispatch after Close.
var ErrDispatcherClosed = errors.New("pn532: dispatcher closed")

// ErrReaderFailed ends a session when the reader stops answering.
var ErrReaderFailed = errors.New("pn532: reader failed")

// Dispatcher polls a Device while foreground dispatch is enabled and hands
// each new tag to the armed handler. It implements nfcmanager.Platform.
type Dispatcher struct {
	clock  clockwork.Clock
	dev    *Device
	req    *nfcmanager.DispatchRequest
	wake   chan struct{}
	stop   context.CancelFunc
	logger zerolog.Logger
	config Config
	wg     sync.WaitGroup
	gen    uint64
	mu     syncutil.Mutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithConfig sets the polling configuration.
func WithConfig(cfg Config) DispatcherOption {
	return func(d *Dispatcher) { d.config = cfg }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c clockwork.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher returns a dispatcher for an initialised device. Polling
// starts with the first EnableForegroundDispatch.
func NewDispatcher(dev *Device, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		dev:    dev,
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
		config: DefaultConfig(),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ReadingAvailable implements nfcmanager.Platform.
func (d *Dispatcher) ReadingAvailable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

// EnableForegroundDispatch implements nfcmanager.Platform. A tag that is
// already on the reader is dispatched to the new request unless it was last
// dispatched for the same usage and has not been removed since.
func (d *Dispatcher) EnableForegroundDispatch(_ context.Context, req nfcmanager.DispatchRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.req = &req
	d.gen++
	if d.stop == nil {
		ctx, cancel := context.WithCancel(context.Background())
		d.stop = cancel
		d.wg.Add(1)
		go d.run(ctx)
	}
	d.poke()
	if req.AlertMessage != "" {
		d.logger.Info().Msg(req.AlertMessage)
	}
	return nil
}

// DisableForegroundDispatch implements nfcmanager.Platform. It does not wait
// for a tag that is being handled.
func (d *Dispatcher) DisableForegroundDispatch() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.req = nil
	return nil
}

// Close stops polling and waits for the poll loop to exit. It does not
// close the device.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.req = nil
	stop := d.stop
	d.mu.Unlock()

	if stop != nil {
		stop()
	}
	d.wg.Wait()
	return nil
}

func (d *Dispatcher) poke() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) current() (*nfcmanager.DispatchRequest, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.req, d.gen
}

// clearIf drops the request if it is still generation gen.
func (d *Dispatcher) clearIf(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen || d.req == nil {
		return false
	}
	d.req = nil
	return true
}

// poller is the state of the poll loop. The last tag outlives the request
// generation so a resident tag is not handed to every re-armed read.
type poller struct {
	lastSeen  time.Time
	lastUID   string
	gen       uint64
	failures  int
	lastUsage nfcmanager.SessionUsage
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	ticker := d.clock.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	var p poller
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		case <-d.wake:
		}

		if req, gen := d.current(); req != nil {
			if gen != p.gen {
				p.gen, p.failures = gen, 0
			}
			d.poll(ctx, &p, *req)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context, p *poller, req nfcmanager.DispatchRequest) {
	target, err := d.dev.DetectTag(ctx)
	switch {
	case err == nil:
		p.failures = 0
	case errors.Is(err, ErrNoTag):
		p.failures = 0
		if p.lastUID != "" && d.clock.Since(p.lastSeen) >= d.config.CardRemovalTimeout {
			d.logger.Debug().Str("uid", p.lastUID).Msg("tag removed")
			p.lastUID = ""
		}
		return
	case errors.Is(err, nfcmanager.ErrMultipleTags):
		p.failures = 0
		d.logger.Warn().Msg("more than one tag in the field, present one tag at a time")
		return
	case ctx.Err() != nil:
		return
	default:
		p.failures++
		d.logger.Warn().Err(err).Int("failures", p.failures).Msg("polling for tags")
		if d.config.MaxPollErrors > 0 && p.failures >= d.config.MaxPollErrors && d.clearIf(p.gen) {
			req.Handler.HandleInvalid(fmt.Errorf("%w: %w", ErrReaderFailed, err))
		}
		return
	}

	uid := target.UIDHex()
	p.lastSeen = d.clock.Now()
	if uid == p.lastUID && req.Usage == p.lastUsage {
		d.release(ctx, target)
		return
	}
	p.lastUID, p.lastUsage = uid, req.Usage

	log := d.logger.With().Str("uid", uid).Logger()
	if !target.IsType2() {
		log.Warn().Uint8("sak", target.SAK).Msg("tag is not an NFC Forum Type 2 tag, ignored")
		d.release(ctx, target)
		return
	}

	log.Debug().Stringer("usage", req.Usage).Msg("tag detected")
	if err := safeHandle(ctx, req.Handler, NewType2Tag(d.dev, target)); err != nil {
		log.Warn().Err(err).Msg("tag handler")
	}
	d.release(ctx, target)
}

func (d *Dispatcher) release(ctx context.Context, target Target) {
	if err := d.dev.Release(context.WithoutCancel(ctx), target.Number); err != nil {
		d.logger.Debug().Err(err).Msg("releasing target")
	}
}

// safeHandle calls HandleTag with panic recovery.
func safeHandle(ctx context.Context, h nfcmanager.TagHandler, tag nfcmanager.Tag) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tag handler panicked: %v", r)
		}
	}()
	return h.HandleTag(ctx, tag)
}

var _ nfcmanager.Platform = (*Dispatcher)(nil)
