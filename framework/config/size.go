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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Unlimited is the data size value that disables a limit.
const Unlimited int64 = -1

// ParseDataSize parses the data size string. Number should be followed by a
// unit suffix (G, M, K, B) and multiple number+suffix pairs separated by
// spaces are added together, "1M 512K". Unit can be omitted only for 0.
//
// "unlimited" and "-1" map to Unlimited.
func ParseDataSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return 0, errors.New("missing a number")
	}
	if s == "unlimited" || s == "-1" {
		return Unlimited, nil
	}

	// ' ' terminates the number+suffix pair.
	s = s + " "

	var total int64
	currentDigit := ""
	suffix := ""
	for _, ch := range s {
		if unicode.IsDigit(ch) {
			if suffix != "" {
				return 0, errors.New("unexpected digit after a suffix")
			}
			currentDigit += string(ch)
			continue
		}
		if ch != ' ' {
			suffix += string(ch)
			continue
		}
		if currentDigit == "" && suffix == "" {
			// Repeated space.
			continue
		}

		num, err := strconv.ParseInt(currentDigit, 10, 64)
		if err != nil {
			return 0, err
		}

		switch suffix {
		case "G":
			total += num * 1024 * 1024 * 1024
		case "M":
			total += num * 1024 * 1024
		case "K":
			total += num * 1024
		case "B", "b":
			total += num
		default:
			if num != 0 || suffix != "" {
				return 0, errors.New("unknown unit suffix: " + suffix)
			}
		}

		suffix = ""
		currentDigit = ""
	}

	return total, nil
}

// DataSize is a data size value in the configuration file. It is written
// either as a plain number of bytes or as a string accepted by
// ParseDataSize.
type DataSize int64

func (ds *DataSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: data size should be a scalar", value.Line)
	}
	if n, err := strconv.ParseInt(value.Value, 10, 64); err == nil && n >= Unlimited {
		*ds = DataSize(n)
		return nil
	}
	n, err := ParseDataSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid data size %q: %w", value.Line, value.Value, err)
	}
	*ds = DataSize(n)
	return nil
}

func (ds DataSize) String() string {
	if int64(ds) < 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(ds))
}
