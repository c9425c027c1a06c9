/*
formdata - multipart/form-data part assembly for Go servers.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// Endpoint is a listen address of the upload endpoint: tcp://host:port or
// unix://path. Both scheme:// and scheme: forms are accepted.
type Endpoint struct {
	Original, Scheme, Host, Port, Path string
}

func (e Endpoint) String() string {
	switch {
	case e.Original != "":
		return e.Original
	case e.Scheme == "unix":
		return "unix://" + e.Path
	case e.Port == "":
		return ""
	}
	return "tcp://" + net.JoinHostPort(e.Host, e.Port)
}

func (e Endpoint) Network() string {
	if e.Scheme == "unix" {
		return "unix"
	}
	return "tcp"
}

func (e Endpoint) Address() string {
	if e.Scheme == "unix" {
		return e.Path
	}
	return net.JoinHostPort(e.Host, e.Port)
}

func cutScheme(s string) (scheme, rest string) {
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return "", s
	}
	scheme, rest = s[:i], s[i+1:]
	return scheme, strings.TrimPrefix(rest, "//")
}

// ParseEndpoint parses a listen address. Relative unix socket paths are
// resolved against RuntimeDirectory.
func ParseEndpoint(s string) (Endpoint, error) {
	scheme, rest := cutScheme(s)
	switch scheme {
	case "unix":
		if rest == "" {
			return Endpoint{}, fmt.Errorf("config: socket path is required: %s", s)
		}
		path := rest
		if !filepath.IsAbs(path) {
			path = filepath.Join(RuntimeDirectory, path)
		}
		return Endpoint{Original: s, Scheme: scheme, Path: path}, nil
	case "tcp":
		host, port, err := net.SplitHostPort(rest)
		if err != nil {
			return Endpoint{}, fmt.Errorf("config: malformed tcp endpoint %s: %w", s, err)
		}
		if port == "" {
			return Endpoint{}, fmt.Errorf("config: endpoint port is required: %s", s)
		}
		return Endpoint{Original: s, Scheme: scheme, Host: host, Port: port}, nil
	case "":
		return Endpoint{}, fmt.Errorf("config: endpoint scheme is required: %s", s)
	default:
		return Endpoint{}, fmt.Errorf("config: unsupported endpoint scheme: %s", s)
	}
}
