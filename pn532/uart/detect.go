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

package uart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

// ErrNoDevice means no serial port answered like a PN532.
var ErrNoDevice = errors.New("uart: no PN532 found")

const probeTimeout = 2 * time.Second

// USB serial bridges found on PN532 boards, as VID:PID.
var knownBridges = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

var knownKeywords = []string{"pn532", "nfc", "rfid", "13.56"}

// likelyPN532 reports whether a port looks like a PN532 board.
func likelyPN532(p *enumerator.PortDetails) bool {
	if !p.IsUSB {
		return false
	}
	vidpid := strings.ToUpper(p.VID + ":" + p.PID)
	if slices.Contains(knownBridges, vidpid) {
		return true
	}
	product := strings.ToLower(p.Product)
	for _, kw := range knownKeywords {
		if strings.Contains(product, kw) {
			return true
		}
	}
	return false
}

// candidates returns the names of the ports worth probing, most likely
// first.
func candidates(ports []*enumerator.PortDetails) []string {
	var likely, other []string
	for _, p := range ports {
		switch {
		case likelyPN532(p):
			likely = append(likely, p.Name)
		case p.IsUSB:
			other = append(other, p.Name)
		}
	}
	return append(likely, other...)
}

// probe asks for the firmware version, which every PN532 answers.
func probe(ctx context.Context, t *Transport) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	res, err := t.SendCommand(ctx, 0x02, nil)
	if err != nil {
		return err
	}
	if len(res) < 2 || res[0] != 0x03 || res[1] != 0x32 {
		return fmt.Errorf("not a PN532: % X", res)
	}
	return nil
}

// Detect probes the USB serial ports and returns a transport for the first
// one with a PN532 behind it. Ports are opened one at a time and probed
// once.
func Detect(ctx context.Context, opts ...Option) (*Transport, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return detect(ctx, candidates(ports), New, opts...)
}

func detect(
	ctx context.Context,
	names []string,
	open func(string, ...Option) (*Transport, error),
	opts ...Option,
) (*Transport, error) {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := open(name, opts...)
		if err != nil {
			continue
		}
		if err := probe(ctx, t); err != nil {
			t.logger.Debug().Err(err).Str("port", name).Msg("probe failed")
			_ = t.Close()
			continue
		}
		t.logger.Info().Str("port", name).Msg("found PN532")
		return t, nil
	}
	return nil, ErrNoDevice
}
