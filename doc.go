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

// Package nfcmanager reads and writes NFC tags that carry a URI and/or a
// Text record. It decodes NDEF records into a Message, encodes a Message
// back into records, and runs the read/write session state machine that a
// hardware backend drives.
//
// Hardware is supplied through the Platform and Tag interfaces. This module
// ships a PN532 backend in package pn532 and a phone relay in package remote.
package nfcmanager
