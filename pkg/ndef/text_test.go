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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTextPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr   error
		name      string
		wantText  string
		wantLang  string
		payload   []byte
		wantUTF16 bool
	}{
		{
			name:     "utf8",
			payload:  []byte("\x02enhello"),
			wantText: "hello",
			wantLang: "en",
		},
		{
			name:     "utf8 multibyte",
			payload:  append([]byte("\x02ja"), "こんにちは"...),
			wantText: "こんにちは",
			wantLang: "ja",
		},
		{
			name:     "empty text",
			payload:  []byte("\x05en-US"),
			wantText: "",
			wantLang: "en-US",
		},
		{
			name:     "zero length language",
			payload:  []byte("\x00plain"),
			wantText: "plain",
			wantLang: "",
		},
		{
			name:     "reserved bit ignored",
			payload:  []byte("\x42enhi"),
			wantText: "hi",
			wantLang: "en",
		},
		{
			name:      "utf16 big endian",
			payload:   []byte{0x82, 'e', 'n', 0x00, 'h', 0x00, 'i'},
			wantText:  "hi",
			wantLang:  "en",
			wantUTF16: true,
		},
		{
			name:      "utf16 little endian with bom",
			payload:   []byte{0x82, 'e', 'n', 0xFF, 0xFE, 'h', 0x00, 'i', 0x00},
			wantText:  "hi",
			wantLang:  "en",
			wantUTF16: true,
		},
		{
			name:      "utf16 big endian with bom",
			payload:   []byte{0x82, 'e', 'n', 0xFE, 0xFF, 0x00, 'o', 0x00, 'k'},
			wantText:  "ok",
			wantLang:  "en",
			wantUTF16: true,
		},
		{
			name:      "utf16 surrogate pair",
			payload:   []byte{0x82, 'e', 'n', 0xD8, 0x3C, 0xDF, 0xAE},
			wantText:  "🎮",
			wantLang:  "en",
			wantUTF16: true,
		},
		{name: "empty payload", payload: nil, wantErr: ErrTextPayloadTooShort},
		{name: "language past end", payload: []byte("\x09en"), wantErr: ErrTextPayloadTruncated},
		{name: "non ascii language", payload: []byte{0x02, 0xC3, 0xA9, 'x'}, wantErr: ErrTextLanguageNotASCII},
		{name: "invalid utf8", payload: []byte{0x02, 'e', 'n', 0xFF}, wantErr: ErrTextEncoding},
		{name: "odd utf16", payload: []byte{0x82, 'e', 'n', 0x00, 'h', 0x00}, wantErr: ErrTextEncoding},
		{name: "lone high surrogate", payload: []byte{0x82, 'e', 'n', 0xD8, 0x00, 0x00, 'a'}, wantErr: ErrTextEncoding},
		{name: "trailing high surrogate", payload: []byte{0x82, 'e', 'n', 0x00, 'a', 0xD8, 0x00}, wantErr: ErrTextEncoding},
		{name: "lone low surrogate le", payload: []byte{0x82, 'e', 'n', 0xFF, 0xFE, 0x00, 0xDC}, wantErr: ErrTextEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTextPayload(tt.payload)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantLang, got.Language)
			assert.Equal(t, tt.wantUTF16, got.UTF16)
		})
	}
}

func TestEncodeTextPayload(t *testing.T) {
	t.Parallel()

	payload, err := EncodeTextPayload("hello", "en")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x02enhello"), payload)
	assert.Zero(t, payload[0]&textUTF16Flag)

	_, err = EncodeTextPayload("x", strings.Repeat("a", MaxLanguageLength+1))
	require.ErrorIs(t, err, ErrTextLanguageTooLong)

	_, err = EncodeTextPayload("x", "é")
	require.ErrorIs(t, err, ErrTextLanguageNotASCII)

	payload, err = EncodeTextPayload("x", strings.Repeat("a", MaxLanguageLength))
	require.NoError(t, err)
	assert.Equal(t, byte(MaxLanguageLength), payload[0])
}

func TestTextRoundTrip(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "hello", "héllo wörld", "🎮 tap"} {
		rec, err := NewTextRecord(text, "en")
		require.NoError(t, err)
		assert.True(t, rec.Is(TNFWellKnown, TextRecordType))

		got, err := ParseTextPayload(rec.Payload)
		require.NoError(t, err)
		assert.Equal(t, text, got.Text)
		assert.Equal(t, "en", got.Language)
	}
}
