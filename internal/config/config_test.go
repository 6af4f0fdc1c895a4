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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-nfcmanager/pn532"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	assert.Equal(t, pn532.DefaultConfig(), cfg.Reader.Dispatcher())
	assert.Equal(t, zerolog.InfoLevel, cfg.Log.ZerologLevel())

	require.NoError(t, cfg.Validate())
	cfg.Reader.Backend = BackendI2C
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)
	cfg.Reader.Device = "/dev/i2c-1"
	require.NoError(t, cfg.Validate())
}

func TestParseOverDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
[reader]
backend = "i2c"
device = "/dev/i2c-1"
poll_interval = "100ms"

[log]
level = "debug"
`))
	require.NoError(t, err)
	assert.Equal(t, BackendI2C, cfg.Reader.Backend)
	assert.Equal(t, "/dev/i2c-1", cfg.Reader.Device)
	assert.Equal(t, zerolog.DebugLevel, cfg.Log.ZerologLevel())

	pc := cfg.Reader.Dispatcher()
	assert.Equal(t, 100*time.Millisecond, pc.PollInterval)
	assert.Equal(t, pn532.DefaultConfig().CardRemovalTimeout, pc.CardRemovalTimeout)
	assert.Equal(t, Defaults().Remote, cfg.Remote)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "unknown backend", data: "[reader]\nbackend = \"usb\"\ndevice = \"x\""},
		{name: "spi without device", data: "[reader]\nbackend = \"spi\""},
		{name: "i2c without device", data: "[reader]\nbackend = \"i2c\""},
		{name: "bad duration", data: "[reader]\nbackend = \"sim\"\npoll_interval = \"soon\""},
		{name: "negative duration", data: "[reader]\nbackend = \"sim\"\ncard_removal_timeout = \"-1s\""},
		{name: "bad listen", data: "[reader]\nbackend = \"remote\"\n[remote]\nlisten = \"nowhere\""},
		{name: "advertise without name", data: "[reader]\nbackend = \"remote\"\n[remote]\nname = \"\""},
		{name: "bad level", data: "[reader]\nbackend = \"sim\"\n[log]\nlevel = \"loud\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.data))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseRejectsBadTOML(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("[reader\n"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalid)

	_, err = Parse([]byte("[reader]\nbackend = \"sim\"\nspeed = 3"))
	require.Error(t, err, "unknown keys are rejected")
}

func TestLoadAndEncode(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.Reader.Backend = BackendRemote
	cfg.Remote.Listen = "127.0.0.1:9000"

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	path := filepath.Join(t.TempDir(), "nfcmanager.toml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
