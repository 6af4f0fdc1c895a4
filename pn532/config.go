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

import "time"

// Config holds polling configuration options.
type Config struct {
	// PollInterval is the delay between InListPassiveTarget calls while
	// dispatch is enabled.
	PollInterval time.Duration
	// CardRemovalTimeout is how long a tag must be absent before the same
	// UID is dispatched again.
	CardRemovalTimeout time.Duration
	// MaxPollErrors is the number of consecutive reader failures that end
	// the session. Zero never gives up.
	MaxPollErrors int
}

// DefaultConfig returns the default polling configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:       250 * time.Millisecond,
		CardRemovalTimeout: 600 * time.Millisecond,
		MaxPollErrors:      5,
	}
}
