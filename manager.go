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

package nfcmanager

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

// SessionUsage is what an armed session does with the next tag.
type SessionUsage int

const (
	UsageNone SessionUsage = iota
	UsageRead
	UsageWrite
)

func (u SessionUsage) String() string {
	switch u {
	case UsageNone:
		return "none"
	case UsageRead:
		return "read"
	case UsageWrite:
		return "write"
	default:
		return fmt.Sprintf("SessionUsage(%d)", int(u))
	}
}

// Manager arms a Platform to read or write the next tag. At most one request
// is outstanding; arming again replaces the pending one. After a tag has
// been read or written the manager returns to UsageNone and turns dispatch
// off, so every cycle starts with an explicit ReadTag or WriteTag.
type Manager struct {
	platform Platform
	read     *ReadHandle
	write    *WriteHandle
	logger   zerolog.Logger
	// dispatchMu orders platform enable/disable calls with state changes.
	dispatchMu syncutil.Mutex
	mu         syncutil.Mutex
	usage      SessionUsage
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// ArmOption configures a single ReadTag or WriteTag call.
type ArmOption func(*DispatchRequest)

// WithAlertMessage sets the prompt shown to the user while the backend waits
// for a tag, where the backend has a way to show one.
func WithAlertMessage(msg string) ArmOption {
	return func(r *DispatchRequest) { r.AlertMessage = msg }
}

// NewManager returns an idle manager for platform.
func NewManager(platform Platform, opts ...Option) *Manager {
	m := &Manager{platform: platform, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Usage returns the current session usage.
func (m *Manager) Usage() SessionUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// swap installs a new state and cancels whatever was pending.
func (m *Manager) swap(usage SessionUsage, rh *ReadHandle, wh *WriteHandle, reason error) {
	m.mu.Lock()
	prevRead, prevWrite := m.read, m.write
	m.usage, m.read, m.write = usage, rh, wh
	m.mu.Unlock()

	if prevRead != nil && prevRead != rh && prevRead.res.resolve(nil) {
		m.logger.Debug().Stringer("request", prevRead.id).Err(reason).Msg("pending read cancelled")
	}
	if prevWrite != nil && prevWrite != wh && prevWrite.res.resolve(reason) {
		m.logger.Debug().Stringer("request", prevWrite.id).Err(reason).Msg("pending write cancelled")
	}
}

func (m *Manager) request(usage SessionUsage, opts []ArmOption) DispatchRequest {
	req := DispatchRequest{Handler: m, Usage: usage}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// ReadingAvailable reports whether the platform can read tags right now.
func (m *Manager) ReadingAvailable() bool {
	return m.platform.ReadingAvailable()
}

// ReadTag arms the platform to read the next tag. The returned handle
// delivers the decoded message, or nil when the tag held nothing readable,
// the read was cancelled or the platform cannot read at all. In the last
// case nothing is armed.
func (m *Manager) ReadTag(ctx context.Context, opts ...ArmOption) (*ReadHandle, error) {
	h := newReadHandle()
	if !m.platform.ReadingAvailable() {
		m.logger.Debug().Stringer("request", h.id).Msg("reading unavailable")
		h.res.resolve(nil)
		return h, nil
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.swap(UsageRead, h, nil, ErrSuperseded)
	if err := m.platform.EnableForegroundDispatch(ctx, m.request(UsageRead, opts)); err != nil {
		m.abort(h, nil)
		return nil, fmt.Errorf("enable foreground dispatch: %w", err)
	}
	m.logger.Debug().Stringer("request", h.id).Msg("armed for read")
	return h, nil
}

// WriteTag arms the platform to write msg to the next tag. Records of msg
// that cannot be encoded are dropped; if none remain WriteTag returns
// ErrNothingToWrite and nothing changes. Unlike ReadTag it arms even when
// reading is unavailable, so a backend can deliver the write once a reader
// appears.
func (m *Manager) WriteTag(ctx context.Context, msg Message, opts ...ArmOption) (*WriteHandle, error) {
	records, skipped := encodeMessage(msg)
	for _, err := range skipped {
		m.logger.Warn().Err(err).Msg("record left out of write")
	}
	if len(records) == 0 {
		return nil, ErrNothingToWrite
	}

	h := newWriteHandle(records)
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	if err := m.platform.DisableForegroundDispatch(); err != nil {
		m.logger.Warn().Err(err).Msg("disabling previous dispatch")
	}
	m.swap(UsageWrite, nil, h, ErrSuperseded)
	if err := m.platform.EnableForegroundDispatch(ctx, m.request(UsageWrite, opts)); err != nil {
		err = fmt.Errorf("enable foreground dispatch: %w", err)
		m.abort(nil, h)
		h.res.resolve(err)
		return nil, err
	}
	m.logger.Debug().Stringer("request", h.id).Int("records", len(records)).Msg("armed for write")
	return h, nil
}

// abort returns to idle if rh or wh is still the pending request.
func (m *Manager) abort(rh *ReadHandle, wh *WriteHandle) {
	m.mu.Lock()
	current := (rh != nil && m.read == rh) || (wh != nil && m.write == wh)
	if current {
		m.usage, m.read, m.write = UsageNone, nil, nil
	}
	m.mu.Unlock()
	if rh != nil {
		rh.res.resolve(nil)
	}
}

// DisableForegroundDispatch cancels any pending request and stops the
// platform from polling.
func (m *Manager) DisableForegroundDispatch() error {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.swap(UsageNone, nil, nil, ErrDisarmed)
	if err := m.platform.DisableForegroundDispatch(); err != nil {
		return fmt.Errorf("disable foreground dispatch: %w", err)
	}
	return nil
}

// finish ends the cycle for the given pending request. It reports false if
// the request was replaced while the tag was being handled.
func (m *Manager) finish(rh *ReadHandle, wh *WriteHandle) bool {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	current := m.read == rh && m.write == wh
	if current {
		m.usage, m.read, m.write = UsageNone, nil, nil
	}
	m.mu.Unlock()
	if !current {
		return false
	}

	if err := m.platform.DisableForegroundDispatch(); err != nil {
		m.logger.Warn().Err(err).Msg("disabling dispatch after cycle")
	}
	return true
}

// HandleTag runs the armed operation against tag. With nothing armed the
// tag is ignored.
func (m *Manager) HandleTag(ctx context.Context, tag Tag) error {
	m.mu.Lock()
	usage, rh, wh := m.usage, m.read, m.write
	m.mu.Unlock()

	log := m.logger.With().Str("uid", tag.UID()).Stringer("usage", usage).Logger()

	switch usage {
	case UsageRead:
		records, err := tag.ReadNDEF(ctx)
		var result *Message
		if err != nil {
			log.Warn().Err(err).Msg("reading tag")
		} else if msg := DecodeMessage(records); !msg.IsEmpty() {
			result = &msg
		}
		if !m.finish(rh, nil) {
			log.Debug().Msg("read finished after request was replaced")
			return err
		}
		rh.res.resolve(result)
		log.Info().Stringer("request", rh.id).Bool("found", result != nil).Msg("tag read")
		return err

	case UsageWrite:
		err := tag.WriteNDEF(ctx, wh.records)
		if err != nil {
			err = fmt.Errorf("write tag %s: %w", tag.UID(), err)
			log.Error().Err(err).Msg("writing tag")
		}
		if !m.finish(nil, wh) {
			log.Debug().Msg("write finished after request was replaced")
			return err
		}
		wh.res.resolve(err)
		if err == nil {
			log.Info().Stringer("request", wh.id).Msg("tag written")
		}
		return err

	default:
		log.Debug().Msg("tag ignored, nothing armed")
		return nil
	}
}

// HandleInvalid ends the pending request because the platform session ended.
// A pending read receives nil and a pending write receives err.
func (m *Manager) HandleInvalid(err error) {
	m.mu.Lock()
	rh, wh := m.read, m.write
	m.mu.Unlock()
	if rh == nil && wh == nil {
		return
	}
	if err == nil {
		err = ErrTagLost
	}
	if !m.finish(rh, wh) {
		return
	}
	m.logger.Warn().Err(err).Msg("session invalidated")
	if rh != nil {
		rh.res.resolve(nil)
	}
	if wh != nil {
		wh.res.resolve(err)
	}
}

var _ TagHandler = (*Manager)(nil)
