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
	"errors"

	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// Codec errors. Decode errors never leave DecodeMessage; they are returned by
// the per-record functions for callers that want the detail.
var (
	ErrUnknownAbbreviation = ndef.ErrUnknownAbbreviation
	ErrInvalidURI          = errors.New("nfcmanager: invalid URI")
	ErrInvalidLanguageCode = errors.New("nfcmanager: invalid language code")
	ErrInvalidTextEncoding = errors.New("nfcmanager: invalid text encoding")
	ErrUnsupportedLanguage = errors.New("nfcmanager: language has no language code")
	ErrMalformedText       = errors.New("nfcmanager: malformed text record")
)

// Session errors.
var (
	ErrNothingToWrite = errors.New("nfcmanager: message has no records to write")
	ErrSuperseded     = errors.New("nfcmanager: replaced by a newer request")
	ErrDisarmed       = errors.New("nfcmanager: foreground dispatch disabled")
)

// Tag errors reported by backends.
var (
	ErrTagReadOnly      = errors.New("nfcmanager: tag is not writable")
	ErrTagCapacity      = errors.New("nfcmanager: tag capacity is too small")
	ErrNotNDEFFormatted = errors.New("nfcmanager: tag is not NDEF formatted")
	ErrMultipleTags     = errors.New("nfcmanager: more than one tag detected")
	ErrTagLost          = errors.New("nfcmanager: tag connection lost")
)
