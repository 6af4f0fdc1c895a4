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

package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Text record constants.
const (
	TextRecordType    = "T"
	MaxLanguageLength = 63 // 6-bit length field

	textUTF16Flag    byte = 0x80
	textLangCodeMask byte = 0x3F
)

// Text record errors.
var (
	ErrTextPayloadTooShort  = errors.New("ndef: text payload too short")
	ErrTextPayloadTruncated = errors.New("ndef: language code length exceeds payload")
	ErrTextLanguageTooLong  = errors.New("ndef: language code too long")
	ErrTextLanguageNotASCII = errors.New("ndef: language code is not ASCII")
	ErrTextEncoding         = errors.New("ndef: text invalid for declared encoding")
)

// utf16Text decodes RTD_TEXT UTF-16 content: big-endian unless a byte order
// mark says otherwise.
var utf16Text = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// Text is a decoded RTD_TEXT payload.
type Text struct {
	Text     string
	Language string
	UTF16    bool
}

// ParseTextPayload decodes an RTD_TEXT payload.
func ParseTextPayload(payload []byte) (*Text, error) {
	if len(payload) < 1 {
		return nil, ErrTextPayloadTooShort
	}

	status := payload[0]
	langLen := int(status & textLangCodeMask)
	if 1+langLen > len(payload) {
		return nil, fmt.Errorf("%w: %d > %d", ErrTextPayloadTruncated, langLen, len(payload)-1)
	}

	lang := payload[1 : 1+langLen]
	for _, b := range lang {
		if b >= utf8.RuneSelf {
			return nil, ErrTextLanguageNotASCII
		}
	}

	body := payload[1+langLen:]
	t := &Text{Language: string(lang), UTF16: status&textUTF16Flag != 0}
	if t.UTF16 {
		s, err := decodeUTF16(body)
		if err != nil {
			return nil, err
		}
		t.Text = s
		return t, nil
	}

	if !utf8.Valid(body) {
		return nil, ErrTextEncoding
	}
	t.Text = string(body)
	return t, nil
}

func decodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: odd UTF-16 length %d", ErrTextEncoding, len(b))
	}
	if !pairedSurrogates(b) {
		return "", fmt.Errorf("%w: unpaired UTF-16 surrogate", ErrTextEncoding)
	}
	out, err := utf16Text.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTextEncoding, err)
	}
	return string(out), nil
}

// pairedSurrogates reports whether every surrogate code unit in b belongs to
// a high/low pair. The decoder would replace a lone one with U+FFFD.
func pairedSurrogates(b []byte) bool {
	var order binary.ByteOrder = binary.BigEndian
	switch {
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE:
		order, b = binary.LittleEndian, b[2:]
	case len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF:
		b = b[2:]
	}
	for i := 0; i+1 < len(b); i += 2 {
		u := rune(order.Uint16(b[i:]))
		if !utf16.IsSurrogate(u) {
			continue
		}
		if i+3 >= len(b) {
			return false
		}
		if utf16.DecodeRune(u, rune(order.Uint16(b[i+2:]))) == utf8.RuneError {
			return false
		}
		i += 2
	}
	return true
}

// EncodeTextPayload builds a UTF-8 RTD_TEXT payload.
func EncodeTextPayload(text, language string) ([]byte, error) {
	if len(language) > MaxLanguageLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTextLanguageTooLong, len(language))
	}
	for i := 0; i < len(language); i++ {
		if language[i] >= utf8.RuneSelf {
			return nil, ErrTextLanguageNotASCII
		}
	}

	payload := make([]byte, 0, 1+len(language)+len(text))
	payload = append(payload, byte(len(language)))
	payload = append(payload, language...)
	return append(payload, text...), nil
}

// NewTextRecord returns a well-known UTF-8 Text record.
func NewTextRecord(text, language string) (*Record, error) {
	payload, err := EncodeTextPayload(text, language)
	if err != nil {
		return nil, err
	}
	return NewRecord(TNFWellKnown, TextRecordType, payload), nil
}
