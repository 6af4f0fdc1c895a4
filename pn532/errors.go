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

package pn532

import (
	"errors"
	"fmt"
)

// Device and tag errors.
var (
	ErrNoTag              = errors.New("pn532: no tag in field")
	ErrUnexpectedResponse = errors.New("pn532: unexpected response")
)

// statusText covers the InDataExchange status codes seen with Type 2 tags.
var statusText = map[byte]string{
	0x01: "timeout",
	0x02: "CRC error",
	0x03: "parity error",
	0x0A: "RF field not activated",
	0x13: "data format error",
	0x14: "authentication error",
	0x27: "command not acceptable in this context",
	0x29: "target released by initiator",
}

// CommandError is a non-zero status returned by the PN532 for a command.
type CommandError struct {
	Cmd    byte
	Status byte
}

func (e *CommandError) Error() string {
	code := e.Status & 0x3F
	if text, ok := statusText[code]; ok {
		return fmt.Sprintf("pn532: command 0x%02X failed: %s (0x%02X)", e.Cmd, text, code)
	}
	return fmt.Sprintf("pn532: command 0x%02X failed with status 0x%02X", e.Cmd, code)
}

// Timeout reports whether the tag did not answer, which usually means it
// left the field.
func (e *CommandError) Timeout() bool {
	return e.Status&0x3F == 0x01
}
