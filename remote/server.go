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

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

const defaultWriteWait = 5 * time.Second

// Server is an nfcmanager.Platform backed by a connected phone. It is also
// the http.Handler for the websocket endpoint. One phone is served at a
// time; a new connection replaces the old one.
type Server struct {
	phone     *phone
	req       *nfcmanager.DispatchRequest
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
	writeWait time.Duration
	wg        sync.WaitGroup
	reqID     uuid.UUID
	mu        syncutil.Mutex
	// dispatched is set once a tag has been handed to the current request.
	dispatched bool
	closed     bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithWriteWait bounds every websocket write.
func WithWriteWait(d time.Duration) Option {
	return func(s *Server) { s.writeWait = d }
}

// NewServer returns a server with no phone connected.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:    zerolog.Nop(),
		writeWait: defaultWriteWait,
		upgrader: websocket.Upgrader{
			// phones connect from app webviews with arbitrary origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadingAvailable implements nfcmanager.Platform. It is true while a phone
// that can read tags is connected.
func (s *Server) ReadingAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phone != nil && s.phone.canRead
}

// EnableForegroundDispatch implements nfcmanager.Platform. Without a phone
// the request waits for one to connect.
func (s *Server) EnableForegroundDispatch(_ context.Context, req nfcmanager.DispatchRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.req = &req
	s.reqID = uuid.New()
	s.dispatched = false
	if s.phone != nil {
		s.phone.send(s.armMessage())
	}
	return nil
}

// DisableForegroundDispatch implements nfcmanager.Platform.
func (s *Server) DisableForegroundDispatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req == nil {
		return nil
	}
	s.req = nil
	if s.phone != nil {
		s.phone.send(Envelope{Type: TypeDisarm, ID: s.reqID})
	}
	return nil
}

// armMessage describes the current request. Callers hold s.mu.
func (s *Server) armMessage() Envelope {
	return Envelope{Type: TypeArm, ID: s.reqID, Usage: s.req.Usage.String(), Alert: s.req.AlertMessage}
}

// Close disconnects the phone and waits for running handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	p := s.phone
	s.mu.Unlock()

	if p != nil {
		p.close()
	}
	s.wg.Wait()
	return nil
}

// ServeHTTP upgrades the request and serves the phone until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	p := newPhone(ws, cancel, s.writeWait)
	defer p.close()
	log := s.logger.With().Str("remote", r.RemoteAddr).Logger()

	hello, err := p.readHello()
	if err != nil {
		log.Warn().Err(err).Msg("phone handshake")
		p.send(Envelope{Type: TypeError, Error: err.Error()})
		return
	}
	p.device, p.canRead = hello.Device, hello.CanRead
	log = log.With().Str("device", p.device).Logger()
	if !s.attach(p) {
		return
	}
	log.Info().Bool("canRead", p.canRead).Msg("phone connected")

	s.serve(ctx, p, log)

	s.detach(p, log)
	log.Info().Msg("phone disconnected")
}

// attach makes p the current phone and sends it the pending request.
func (s *Server) attach(p *phone) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	prev := s.phone
	s.phone = p
	if s.req != nil {
		p.send(s.armMessage())
	}
	s.mu.Unlock()

	if prev != nil {
		prev.close()
	}
	return true
}

// detach drops p. A request armed while p was connected ends, since the
// reader it was waiting on went away.
func (s *Server) detach(p *phone, log zerolog.Logger) {
	s.mu.Lock()
	if s.phone != p {
		s.mu.Unlock()
		return
	}
	s.phone = nil
	var handler nfcmanager.TagHandler
	if s.req != nil && !s.dispatched {
		handler = s.req.Handler
		s.req = nil
	}
	s.mu.Unlock()

	if handler != nil {
		log.Debug().Msg("invalidating armed request")
		handler.HandleInvalid(ErrDisconnected)
	}
}

func (s *Server) serve(ctx context.Context, p *phone, log zerolog.Logger) {
	for {
		var env Envelope
		if err := p.ws.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("reading from phone")
			}
			return
		}

		switch env.Type {
		case TypeTag:
			s.handleTag(ctx, p, env, log)
		case TypeWritten:
			p.resolve(env.ID, phoneError(env.Code, env.Error))
		case TypeInvalidated:
			s.handleInvalidated(env, log)
		case TypeHello:
			s.mu.Lock()
			p.canRead = env.CanRead
			s.mu.Unlock()
		default:
			log.Warn().Str("type", env.Type).Msg("unknown message type")
			p.send(Envelope{Type: TypeError, ID: env.ID, Error: "unknown message type " + env.Type})
		}
	}
}

func (s *Server) handleTag(ctx context.Context, p *phone, env Envelope, log zerolog.Logger) {
	s.mu.Lock()
	if s.req == nil || env.ID != s.reqID || s.dispatched {
		s.mu.Unlock()
		log.Debug().Stringer("request", env.ID).Msg("tag for a request that is not armed, ignored")
		return
	}
	s.dispatched = true
	handler := s.req.Handler
	s.mu.Unlock()

	records, err := fromWire(env.Records)
	if err != nil {
		log.Warn().Err(err).Msg("malformed records from phone")
	}
	tag := &phoneTag{phone: p, uid: env.UID, records: records, readErr: err}

	// the handler may write to the tag, which needs this read loop running
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := safeHandle(ctx, handler, tag); err != nil {
			log.Warn().Err(err).Str("uid", env.UID).Msg("tag handler")
		}
	}()
}

func (s *Server) handleInvalidated(env Envelope, log zerolog.Logger) {
	s.mu.Lock()
	if s.req == nil || (env.ID != uuid.Nil && env.ID != s.reqID) || s.dispatched {
		s.mu.Unlock()
		return
	}
	handler := s.req.Handler
	s.req = nil
	s.mu.Unlock()

	err := phoneError(env.Code, env.Error)
	if err == nil {
		err = ErrCancelled
	}
	log.Info().Err(err).Msg("phone session invalidated")
	handler.HandleInvalid(err)
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

// phone is one websocket connection.
type phone struct {
	ws        *websocket.Conn
	cancel    context.CancelFunc
	pending   map[uuid.UUID]chan error
	done      chan struct{}
	device    string
	writeWait time.Duration
	writeMu   syncutil.Mutex
	mu        syncutil.Mutex
	once      sync.Once
	canRead   bool
}

func newPhone(ws *websocket.Conn, cancel context.CancelFunc, writeWait time.Duration) *phone {
	return &phone{
		ws:        ws,
		cancel:    cancel,
		writeWait: writeWait,
		pending:   make(map[uuid.UUID]chan error),
		done:      make(chan struct{}),
	}
}

func (p *phone) readHello() (Envelope, error) {
	var env Envelope
	if err := p.ws.SetReadDeadline(time.Now().Add(p.writeWait)); err != nil {
		return env, fmt.Errorf("set read deadline: %w", err)
	}
	if err := p.ws.ReadJSON(&env); err != nil {
		return env, fmt.Errorf("read hello: %w", err)
	}
	if env.Type != TypeHello {
		return env, fmt.Errorf("expected %q message, got %q", TypeHello, env.Type)
	}
	if err := p.ws.SetReadDeadline(time.Time{}); err != nil {
		return env, fmt.Errorf("clear read deadline: %w", err)
	}
	return env, nil
}

// send writes env. Failures close the connection, which ends the read loop.
func (p *phone) send(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.ws.SetWriteDeadline(time.Now().Add(p.writeWait))
	if err := p.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		p.close()
	}
}

// expect registers a pending write result.
func (p *phone) expect(id uuid.UUID) chan error {
	ch := make(chan error, 1)
	p.mu.Lock()
	p.pending[id] = ch
	p.mu.Unlock()
	return ch
}

func (p *phone) forget(id uuid.UUID) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *phone) resolve(id uuid.UUID, err error) {
	p.mu.Lock()
	ch, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()
	if ok {
		ch <- err
	}
}

func (p *phone) close() {
	p.once.Do(func() {
		close(p.done)
		p.cancel()
		_ = p.ws.Close()
	})
}
