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

	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// Tag is a tag currently in range of a backend.
type Tag interface {
	// UID returns the tag UID as lowercase hex.
	UID() string
	// ReadNDEF returns the records stored on the tag.
	ReadNDEF(ctx context.Context) ([]*ndef.Record, error)
	// WriteNDEF replaces the tag contents with records.
	WriteNDEF(ctx context.Context, records []*ndef.Record) error
}

// TagHandler receives hardware events from a Platform. Manager implements it.
type TagHandler interface {
	// HandleTag is called once for each tag that enters the field while
	// dispatch is enabled.
	HandleTag(ctx context.Context, tag Tag) error
	// HandleInvalid is called when the platform session ends on its own,
	// e.g. the user cancelled the system sheet or the reader went away.
	HandleInvalid(err error)
}

// DispatchRequest is passed to a Platform when a read or write is armed.
type DispatchRequest struct {
	Handler      TagHandler
	AlertMessage string
	Usage        SessionUsage
}

// Platform is an NFC backend that can poll for tags.
//
// EnableForegroundDispatch and DisableForegroundDispatch may be called from
// inside HandleTag, so they must not wait for an in-flight HandleTag call to
// return, and must not call the handler before they return. Enabling while
// already enabled replaces the request.
type Platform interface {
	ReadingAvailable() bool
	EnableForegroundDispatch(ctx context.Context, req DispatchRequest) error
	DisableForegroundDispatch() error
}
