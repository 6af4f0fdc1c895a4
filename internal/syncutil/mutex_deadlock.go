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

//go:build deadlock

package syncutil

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Tag handling holds the manager lock only for state swaps, so anything held
// this long is a bug.
func init() {
	deadlock.Opts.DeadlockTimeout = 10 * time.Second
}

// Mutex is a go-deadlock mutex that reports lock-order inversions and locks
// held past the timeout.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is the read/write counterpart of Mutex.
type RWMutex struct {
	deadlock.RWMutex
}
