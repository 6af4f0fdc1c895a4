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

// Package pn532 drives an NXP PN532 reader as an nfcmanager.Platform. It
// reads and writes NDEF on NFC Forum Type 2 tags (NTAG21x, Ultralight).
package pn532

import "context"

// Transport carries PN532 commands over a physical link such as UART or I2C.
type Transport interface {
	// SendCommand sends cmd with args and returns the response data starting
	// with the response code, which is cmd+1.
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)
	Close() error
}
