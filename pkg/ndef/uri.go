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
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// URIRecordType is the RTD_URI well-known type.
const URIRecordType = "U"

// URI record errors.
var (
	ErrURIPayloadTooShort  = errors.New("ndef: URI payload too short")
	ErrUnknownAbbreviation = errors.New("ndef: unknown URI abbreviation code")
	ErrURIEncoding         = errors.New("ndef: URI is not valid UTF-8")
)

// uriPrefixes is the NFC Forum URI RTD abbreviation table. It is an array so
// the table has a fixed size and no way to be appended to.
var uriPrefixes = [...]string{
	"",                           // 0x00 no abbreviation
	"http://www.",                // 0x01
	"https://www.",               // 0x02
	"http://",                    // 0x03
	"https://",                   // 0x04
	"tel:",                       // 0x05
	"mailto:",                    // 0x06
	"ftp://anonymous:anonymous@", // 0x07
	"ftp://ftp.",                 // 0x08
	"ftps://",                    // 0x09
	"sftp://",                    // 0x0A
	"smb://",                     // 0x0B
	"nfs://",                     // 0x0C
	"ftp://",                     // 0x0D
	"dav://",                     // 0x0E
	"news:",                      // 0x0F
	"telnet://",                  // 0x10
	"imap:",                      // 0x11
	"rtsp://",                    // 0x12
	"urn:",                       // 0x13
	"pop:",                       // 0x14
	"sip:",                       // 0x15
	"sips:",                      // 0x16
	"tftp:",                      // 0x17
	"btspp://",                   // 0x18
	"btl2cap://",                 // 0x19
	"btgoep://",                  // 0x1A
	"tcpobex://",                 // 0x1B
	"irdaobex://",                // 0x1C
	"file://",                    // 0x1D
	"urn:epc:id:",                // 0x1E
	"urn:epc:tag:",               // 0x1F
	"urn:epc:pat:",               // 0x20
	"urn:epc:raw:",               // 0x21
	"urn:epc:",                   // 0x22
	"urn:nfc:",                   // 0x23
}

// URIPrefixCount is the number of defined abbreviation codes.
const URIPrefixCount = len(uriPrefixes)

// LookupURIPrefix returns the prefix for an abbreviation code. Codes past the
// end of the table are an error rather than an empty prefix.
func LookupURIPrefix(code byte) (string, error) {
	if int(code) >= len(uriPrefixes) {
		return "", fmt.Errorf("%w: 0x%02X", ErrUnknownAbbreviation, code)
	}
	return uriPrefixes[code], nil
}

// URIPrefixFor returns the code of the longest prefix that uri starts with,
// or 0x00 when none applies.
func URIPrefixFor(uri string) byte {
	best, bestLen := 0, 0
	for i := 1; i < len(uriPrefixes); i++ {
		p := uriPrefixes[i]
		if len(p) > bestLen && strings.HasPrefix(uri, p) {
			best, bestLen = i, len(p)
		}
	}
	return byte(best)
}

// ParseURIPayload expands an RTD_URI payload into the full URI.
func ParseURIPayload(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", ErrURIPayloadTooShort
	}
	prefix, err := LookupURIPrefix(payload[0])
	if err != nil {
		return "", err
	}
	rest := payload[1:]
	if !utf8.Valid(rest) {
		return "", ErrURIEncoding
	}
	return prefix + string(rest), nil
}

// EncodeURIPayload builds an RTD_URI payload using the longest matching
// abbreviation, the form most phone apps write. Writers that must preserve
// the URI byte for byte use EncodeRawURIPayload.
func EncodeURIPayload(uri string) []byte {
	code := URIPrefixFor(uri)
	rest := uri[len(uriPrefixes[code]):]
	payload := make([]byte, 0, 1+len(rest))
	payload = append(payload, code)
	return append(payload, rest...)
}

// EncodeRawURIPayload builds an RTD_URI payload with code 0x00 followed by
// the whole URI.
func EncodeRawURIPayload(uri string) []byte {
	payload := make([]byte, 0, 1+len(uri))
	payload = append(payload, 0x00)
	return append(payload, uri...)
}

// NewURIRecord returns a well-known URI record with abbreviation applied.
func NewURIRecord(uri string) *Record {
	return NewRecord(TNFWellKnown, URIRecordType, EncodeURIPayload(uri))
}
