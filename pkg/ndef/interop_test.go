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

package ndef_test

import (
	"testing"

	gondef "github.com/hsanjuan/go-ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-nfcmanager/pkg/ndef"
)

// Messages written by go-ndef must parse here, and the reverse.

func TestInteropReadsGoNDEFMessages(t *testing.T) {
	t.Parallel()

	uris := []string{"https://zaparoo.org", "https://www.example.com/a?b=c", "tel:+441234", "custom:x"}
	for _, uri := range uris {
		data, err := gondef.NewURIMessage(uri).Marshal()
		require.NoError(t, err)

		records, err := ndef.ParseMessage(data)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.True(t, records[0].Is(ndef.TNFWellKnown, ndef.URIRecordType))

		got, err := ndef.ParseURIPayload(records[0].Payload)
		require.NoError(t, err)
		assert.Equal(t, uri, got)
	}

	data, err := gondef.NewTextMessage("hello world", "en").Marshal()
	require.NoError(t, err)
	records, err := ndef.ParseMessage(data)
	require.NoError(t, err)
	require.Len(t, records, 1)

	text, err := ndef.ParseTextPayload(records[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text.Text)
	assert.Equal(t, "en", text.Language)
}

func TestInteropGoNDEFReadsOurMessages(t *testing.T) {
	t.Parallel()

	textRec, err := ndef.NewTextRecord("tap to play", "en")
	require.NoError(t, err)
	uriRec := ndef.NewRecord(ndef.TNFWellKnown, ndef.URIRecordType, ndef.EncodeRawURIPayload("https://zaparoo.org/x"))

	data, err := (&ndef.Message{Records: []*ndef.Record{uriRec, textRec}}).Marshal()
	require.NoError(t, err)

	msg := &gondef.Message{}
	_, err = msg.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, msg.Records, 2)

	assert.Equal(t, gondef.NFCForumWellKnownType, msg.Records[0].TNF())
	assert.Equal(t, "U", msg.Records[0].Type())
	payload, err := msg.Records[0].Payload()
	require.NoError(t, err)
	uri, err := ndef.ParseURIPayload(payload.Marshal())
	require.NoError(t, err)
	assert.Equal(t, "https://zaparoo.org/x", uri)

	assert.Equal(t, "T", msg.Records[1].Type())
	payload, err = msg.Records[1].Payload()
	require.NoError(t, err)
	text, err := ndef.ParseTextPayload(payload.Marshal())
	require.NoError(t, err)
	assert.Equal(t, "tap to play", text.Text)
}
