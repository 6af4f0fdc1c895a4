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

	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// DecodeMessage turns the records read from a tag into a Message. Each
// record is tried as a URI, then as a Text record, and otherwise read as
// plain text. The first URI and the first text found are kept; later ones
// are ignored. Records that fail to decode are skipped.
func DecodeMessage(records []*ndef.Record) Message {
	var msg Message
	for _, rec := range records {
		if msg.URI != nil && msg.Text != nil {
			break
		}
		uri, text := decodeRecord(rec)
		if uri != nil && msg.URI == nil {
			msg.URI = uri
		}
		if text != nil && msg.Text == nil {
			msg.Text = text
		}
	}
	return msg
}

func decodeRecord(rec *ndef.Record) (*URIRecord, *TextRecord) {
	if uri, err := DecodeURIRecord(rec); err == nil && uri != nil {
		return uri, nil
	}
	if text, err := DecodeTextRecord(rec); err == nil && text != nil {
		return nil, text
	}
	if text, err := DefaultTextRecord(rec); err == nil {
		return nil, text
	}
	return nil, nil
}

// EncodeMessage returns the records to write for msg: the URI record first,
// then the Text record. A record that cannot be encoded is left out. An empty
// result means there is nothing to write.
func EncodeMessage(msg Message) []*ndef.Record {
	records, _ := encodeMessage(msg)
	return records
}

// encodeMessage also returns the reason each skipped record was dropped.
func encodeMessage(msg Message) ([]*ndef.Record, []error) {
	records := make([]*ndef.Record, 0, 2)
	var skipped []error
	if msg.URI != nil {
		rec, err := EncodeURIRecord(*msg.URI)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("uri record: %w", err))
		} else {
			records = append(records, rec)
		}
	}
	if msg.Text != nil {
		rec, err := EncodeTextRecord(*msg.Text)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("text record: %w", err))
		} else {
			records = append(records, rec)
		}
	}
	return records, skipped
}
