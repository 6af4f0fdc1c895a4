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

// URIRecord is a decoded or to-be-written URI.
type URIRecord struct {
	URL string `json:"url"`
	// Type is set when the record was read from a tag, or by the caller to
	// have URL normalised before writing.
	Type URLType `json:"type,omitempty"`
}

// TextRecord is human readable text with its language code.
type TextRecord struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Message holds at most one URI and one Text record.
type Message struct {
	URI  *URIRecord  `json:"uri,omitempty"`
	Text *TextRecord `json:"text,omitempty"`
}

// NewURIMessage returns a message with only a URI record.
func NewURIMessage(url string) Message {
	return Message{URI: &URIRecord{URL: url}}
}

// NewTextMessage returns a message with only a Text record.
func NewTextMessage(text, language string) Message {
	return Message{Text: &TextRecord{Text: text, Language: language}}
}

// IsEmpty reports whether the message holds no records.
func (m Message) IsEmpty() bool {
	return m.URI == nil && m.Text == nil
}
