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
	"sync"

	"github.com/google/uuid"

	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// oneShot delivers exactly one value. Later resolve calls are ignored.
type oneShot[T any] struct {
	ch   chan T
	once sync.Once
}

func newOneShot[T any]() oneShot[T] {
	return oneShot[T]{ch: make(chan T, 1)}
}

func (o *oneShot[T]) resolve(v T) bool {
	resolved := false
	o.once.Do(func() {
		o.ch <- v
		close(o.ch)
		resolved = true
	})
	return resolved
}

func wait[T any](ctx context.Context, ch <-chan T) (T, error) {
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// ReadHandle is the pending result of Manager.ReadTag.
type ReadHandle struct {
	res oneShot[*Message]
	id  uuid.UUID
}

func newReadHandle() *ReadHandle {
	return &ReadHandle{id: uuid.New(), res: newOneShot[*Message]()}
}

// ID identifies the request in logs.
func (h *ReadHandle) ID() uuid.UUID { return h.id }

// C receives one value and is then closed. A nil message means nothing
// readable was found, or the read was cancelled.
func (h *ReadHandle) C() <-chan *Message { return h.res.ch }

// Wait blocks until the read completes or ctx is done.
func (h *ReadHandle) Wait(ctx context.Context) (*Message, error) {
	return wait(ctx, h.res.ch)
}

// WriteHandle is the pending result of Manager.WriteTag.
type WriteHandle struct {
	res     oneShot[error]
	records []*ndef.Record
	id      uuid.UUID
}

func newWriteHandle(records []*ndef.Record) *WriteHandle {
	return &WriteHandle{id: uuid.New(), records: records, res: newOneShot[error]()}
}

// ID identifies the request in logs.
func (h *WriteHandle) ID() uuid.UUID { return h.id }

// Records returns the encoded records that will be written.
func (h *WriteHandle) Records() []*ndef.Record { return h.records }

// Done receives the write outcome once and is then closed.
func (h *WriteHandle) Done() <-chan error { return h.res.ch }

// Wait blocks until the write completes or ctx is done. It returns the write
// error, or ctx.Err() if ctx ends first.
func (h *WriteHandle) Wait(ctx context.Context) error {
	werr, err := wait(ctx, h.res.ch)
	if err != nil {
		return err
	}
	return werr
}
