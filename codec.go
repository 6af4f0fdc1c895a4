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
	"fmt"
	"net/url"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// DefaultLanguage is the language given to records read as plain text.
const DefaultLanguage = "en"

// DecodeURIRecord decodes a well-known URI record or an absolute-URI record.
// Any other record returns nil, nil.
func DecodeURIRecord(rec *ndef.Record) (*URIRecord, error) {
	var raw string
	switch {
	case rec.Is(ndef.TNFWellKnown, ndef.URIRecordType):
		s, err := ndef.ParseURIPayload(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
		}
		raw = s
	case rec != nil && rec.TNF == ndef.TNFAbsoluteURI:
		if !utf8.Valid(rec.Payload) {
			return nil, fmt.Errorf("%w: not UTF-8", ErrInvalidURI)
		}
		raw = string(rec.Payload)
	default:
		return nil, nil //nolint:nilnil // not a URI record
	}

	if err := checkURI(raw); err != nil {
		return nil, err
	}
	return &URIRecord{URL: raw, Type: ClassifyURL(raw)}, nil
}

// checkURI requires an absolute URI.
func checkURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%w: %q has no scheme", ErrInvalidURI, raw)
	}
	return nil
}

// DecodeTextRecord decodes a well-known Text record. Any other record
// returns nil, nil.
func DecodeTextRecord(rec *ndef.Record) (*TextRecord, error) {
	if !rec.Is(ndef.TNFWellKnown, ndef.TextRecordType) {
		return nil, nil //nolint:nilnil // not a Text record
	}

	t, err := ndef.ParseTextPayload(rec.Payload)
	switch {
	case err == nil:
		return &TextRecord{Text: t.Text, Language: t.Language}, nil
	case errors.Is(err, ndef.ErrTextLanguageNotASCII):
		return nil, fmt.Errorf("%w: %w", ErrInvalidLanguageCode, err)
	case errors.Is(err, ndef.ErrTextEncoding):
		return nil, fmt.Errorf("%w: %w", ErrInvalidTextEncoding, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrMalformedText, err)
	}
}

// DefaultTextRecord reads the whole payload of any record as UTF-8 text in
// DefaultLanguage.
func DefaultTextRecord(rec *ndef.Record) (*TextRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedText)
	}
	if !utf8.Valid(rec.Payload) {
		return nil, ErrInvalidTextEncoding
	}
	return &TextRecord{Text: string(rec.Payload), Language: DefaultLanguage}, nil
}

// EncodeURIRecord builds a well-known URI record. The payload always uses
// abbreviation code 0x00 followed by the full URI. When r.Type is set the
// URL is first passed through StandardURL.
func EncodeURIRecord(r URIRecord) (*ndef.Record, error) {
	raw := StandardURL(r.URL, r.Type)
	if err := checkURI(raw); err != nil {
		return nil, err
	}
	return ndef.NewRecord(ndef.TNFWellKnown, ndef.URIRecordType, ndef.EncodeRawURIPayload(raw)), nil
}

// EncodeTextRecord builds a UTF-8 well-known Text record. The language is
// reduced to its base language code, so "en-US" is written as "en".
func EncodeTextRecord(r TextRecord) (*ndef.Record, error) {
	code, err := languageCode(r.Language)
	if err != nil {
		return nil, err
	}
	rec, err := ndef.NewTextRecord(r.Text, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLanguageCode, err)
	}
	return rec, nil
}

func languageCode(tag string) (string, error) {
	if tag == "" {
		return "", ErrUnsupportedLanguage
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnsupportedLanguage, tag, err)
	}
	base, conf := t.Base()
	if t.IsRoot() || conf == language.No {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
	return base.String(), nil
}
