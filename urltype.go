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
	"fmt"
	"net/url"
	"strings"
)

// URLType is the category of a URI, decided by its scheme prefix.
type URLType int

// URLTypeNone means the URI has not been classified.
const (
	URLTypeNone URLType = iota
	URLTypeWebsite
	URLTypeEmail
	URLTypeSMS
	URLTypePhone
	URLTypeFaceTime
	URLTypeShortcut
	URLTypeDefaultText
)

var urlTypeNames = [...]string{
	URLTypeNone:        "",
	URLTypeWebsite:     "website",
	URLTypeEmail:       "email",
	URLTypeSMS:         "sms",
	URLTypePhone:       "phone",
	URLTypeFaceTime:    "facetime",
	URLTypeShortcut:    "shortcut",
	URLTypeDefaultText: "default_text",
}

func (t URLType) String() string {
	if t < 0 || int(t) >= len(urlTypeNames) {
		return fmt.Sprintf("URLType(%d)", int(t))
	}
	return urlTypeNames[t]
}

// ParseURLType is the inverse of String. The empty string is URLTypeNone.
func ParseURLType(s string) (URLType, error) {
	for i, name := range urlTypeNames {
		if name == s {
			return URLType(i), nil
		}
	}
	return URLTypeNone, fmt.Errorf("unknown URL type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t URLType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *URLType) UnmarshalText(b []byte) error {
	v, err := ParseURLType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Checked in order; the first matching prefix wins.
var urlTypePrefixes = [...]struct {
	prefix string
	typ    URLType
}{
	{"tel", URLTypePhone},
	{"sms", URLTypeSMS},
	{"mailto", URLTypeEmail},
	{"http", URLTypeWebsite},
	{"facetime", URLTypeFaceTime},
	{"shortcut", URLTypeShortcut},
}

// ClassifyURL returns the category of a URL by case-sensitive prefix match.
// URLs matching no known prefix are URLTypeDefaultText.
func ClassifyURL(u string) URLType {
	for _, p := range urlTypePrefixes {
		if strings.HasPrefix(u, p.prefix) {
			return p.typ
		}
	}
	return URLTypeDefaultText
}

// shortcutURL launches a named shortcut in the iOS Shortcuts app.
const shortcutURL = "shortcuts://run-shortcut?name="

// StandardURL turns a bare value into a URL of the given type, e.g. an
// address into a mailto: URL. Values that already classify as t are
// returned unchanged, as are websites and plain text.
func StandardURL(raw string, t URLType) string {
	if t == URLTypeNone || ClassifyURL(raw) == t {
		return raw
	}
	switch t {
	case URLTypeEmail:
		return "mailto:" + raw
	case URLTypeSMS:
		return "sms:" + raw
	case URLTypePhone:
		return "tel:" + raw
	case URLTypeFaceTime:
		return "facetime://" + raw
	case URLTypeShortcut:
		return shortcutURL + strings.ReplaceAll(url.QueryEscape(raw), "+", "%20")
	default:
		return raw
	}
}
