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

// Package config loads the nfcmanager command's TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager/pn532"
)

// Reader backends.
const (
	BackendUART   = "uart"
	BackendI2C    = "i2c"
	BackendSPI    = "spi"
	BackendRemote = "remote"
	BackendSim    = "sim"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the whole configuration file.
type Config struct {
	Reader Reader `toml:"reader"`
	Remote Remote `toml:"remote"`
	Log    Log    `toml:"log"`
}

// Reader selects and tunes the tag reader.
type Reader struct {
	Backend string `toml:"backend" validate:"oneof=uart i2c spi remote sim"`
	// Device is a serial port for uart, or a bus or port name for i2c and
	// spi. Empty with uart probes the USB serial ports.
	Device             string `toml:"device,omitempty"`
	PollInterval       string `toml:"poll_interval" validate:"required,duration"`
	CardRemovalTimeout string `toml:"card_removal_timeout" validate:"required,duration"`
	MaxPollErrors      int    `toml:"max_poll_errors" validate:"min=0"`
}

// Remote configures the phone relay endpoint.
type Remote struct {
	Listen    string `toml:"listen" validate:"hostname_port"`
	Name      string `toml:"name" validate:"required_if=Advertise true"`
	Advertise bool   `toml:"advertise"`
}

// Log sets the log level.
type Log struct {
	Level string `toml:"level" validate:"oneof=trace debug info warn error"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	pc := pn532.DefaultConfig()
	return Config{
		Reader: Reader{
			Backend:            BackendUART,
			PollInterval:       pc.PollInterval.String(),
			CardRemovalTimeout: pc.CardRemovalTimeout.String(),
			MaxPollErrors:      pc.MaxPollErrors,
		},
		Remote: Remote{
			Listen:    ":7498",
			Name:      "nfcmanager",
			Advertise: true,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the file at path over Defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML over Defaults and validates the result. Keys missing
// from data keep their default values.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", validateDuration)
	v.RegisterStructValidation(validateReader, Reader{})
	return v
}

// validateDuration checks for a positive Go duration string.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// validateReader requires a device for the bus backends. An empty uart
// device means auto-detect.
func validateReader(sl validator.StructLevel) {
	r, ok := sl.Current().Interface().(Reader)
	if !ok {
		return
	}
	if (r.Backend == BackendI2C || r.Backend == BackendSPI) && r.Device == "" {
		sl.ReportError(r.Device, "Device", "device", "required_for_backend", r.Backend)
	}
}

// Validate checks every field of c.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (%d problems)", ErrInvalid, fe.Namespace(), fe.Tag(), len(verrs))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Dispatcher returns the poller settings. r must have passed Validate.
func (r Reader) Dispatcher() pn532.Config {
	poll, _ := time.ParseDuration(r.PollInterval)
	removal, _ := time.ParseDuration(r.CardRemovalTimeout)
	return pn532.Config{
		PollInterval:       poll,
		CardRemovalTimeout: removal,
		MaxPollErrors:      r.MaxPollErrors,
	}
}

// ZerologLevel returns the configured level.
func (l Log) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
