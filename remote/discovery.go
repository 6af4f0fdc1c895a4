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

package remote

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
)

// ServiceType is the DNS-SD service type phones browse for.
const ServiceType = "_nfcmanager._tcp"

// ErrNoInterface means no network interface can carry mDNS.
var ErrNoInterface = errors.New("remote: no network interface suitable for mDNS")

// virtualPrefixes are interface names of containers, bridges and tunnels,
// which phones cannot reach.
var virtualPrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg",
}

func isVirtual(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range virtualPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// filterInterfaces keeps interfaces that are up, multicast capable, not
// loopback and not virtual.
func filterInterfaces(ifaces []net.Interface) []net.Interface {
	var out []net.Interface
	for _, iface := range ifaces {
		switch {
		case iface.Flags&net.FlagUp == 0,
			iface.Flags&net.FlagLoopback != 0,
			iface.Flags&net.FlagMulticast == 0,
			isVirtual(iface.Name):
			continue
		}
		out = append(out, iface)
	}
	return out
}

// Advertiser publishes the websocket endpoint over mDNS.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers instance on port with the endpoint path in a TXT
// record.
func Advertise(instance string, port int, logger zerolog.Logger) (*Advertiser, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list network interfaces: %w", err)
	}
	ifaces := filterInterfaces(all)
	if len(ifaces) == 0 {
		return nil, ErrNoInterface
	}

	names := make([]string, len(ifaces))
	for i, iface := range ifaces {
		names[i] = iface.Name
	}

	server, err := zeroconf.Register(instance, ServiceType, "local.", port, []string{"path=" + Path}, ifaces)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	logger.Info().
		Str("instance", instance).
		Int("port", port).
		Strs("interfaces", names).
		Msg("advertising phone endpoint")
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
}
