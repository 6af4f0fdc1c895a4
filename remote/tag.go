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

	"github.com/google/uuid"

	"github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// phoneTag is a tag the phone is holding a session with. Its records were
// read by the phone before the tag was reported.
type phoneTag struct {
	phone   *phone
	readErr error
	uid     string
	records []*ndef.Record
}

func (t *phoneTag) UID() string { return t.uid }

func (t *phoneTag) ReadNDEF(context.Context) ([]*ndef.Record, error) {
	return t.records, t.readErr
}

// WriteNDEF asks the phone to write records and waits for its answer.
func (t *phoneTag) WriteNDEF(ctx context.Context, records []*ndef.Record) error {
	id := uuid.New()
	res := t.phone.expect(id)
	defer t.phone.forget(id)

	t.phone.send(Envelope{Type: TypeWrite, ID: id, UID: t.uid, Records: toWire(records)})

	select {
	case err := <-res:
		return err
	case <-t.phone.done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ nfcmanager.Tag = (*phoneTag)(nil)
