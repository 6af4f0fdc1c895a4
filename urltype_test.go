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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want URLType
	}{
		{"tel:12345", URLTypePhone},
		{"sms:+15551234", URLTypeSMS},
		{"mailto:a@b.c", URLTypeEmail},
		{"https://example.com", URLTypeWebsite},
		{"http://example.com", URLTypeWebsite},
		{"facetime://a@b.c", URLTypeFaceTime},
		{"facetime-audio://a@b.c", URLTypeFaceTime},
		{"shortcuts://run-shortcut?name=x", URLTypeShortcut},
		{"ftp://x", URLTypeDefaultText},
		{"HTTP://EXAMPLE.COM", URLTypeDefaultText},
		{"telnet://host", URLTypePhone},
		{"", URLTypeDefaultText},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyURL(tt.url), tt.url)
	}
}

func TestStandardURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
		typ  URLType
	}{
		{name: "email", raw: "a@b.c", typ: URLTypeEmail, want: "mailto:a@b.c"},
		{name: "email already", raw: "mailto:a@b.c", typ: URLTypeEmail, want: "mailto:a@b.c"},
		{name: "sms", raw: "+1555", typ: URLTypeSMS, want: "sms:+1555"},
		{name: "phone", raw: "+1555", typ: URLTypePhone, want: "tel:+1555"},
		{name: "facetime", raw: "a@b.c", typ: URLTypeFaceTime, want: "facetime://a@b.c"},
		{name: "shortcut", raw: "Play Game", typ: URLTypeShortcut, want: "shortcuts://run-shortcut?name=Play%20Game"},
		{name: "shortcut ampersand", raw: "A&B", typ: URLTypeShortcut, want: "shortcuts://run-shortcut?name=A%26B"},
		{name: "website unchanged", raw: "example.com", typ: URLTypeWebsite, want: "example.com"},
		{name: "text unchanged", raw: "geo:1,2", typ: URLTypeDefaultText, want: "geo:1,2"},
		{name: "none unchanged", raw: "a@b.c", typ: URLTypeNone, want: "a@b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StandardURL(tt.raw, tt.typ))
		})
	}
}

func TestURLTypeText(t *testing.T) {
	t.Parallel()

	for typ := URLTypeNone; typ <= URLTypeDefaultText; typ++ {
		b, err := typ.MarshalText()
		require.NoError(t, err)

		var got URLType
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, typ, got)
	}

	_, err := ParseURLType("fax")
	require.Error(t, err)
	assert.Equal(t, "URLType(42)", URLType(42).String())
}
