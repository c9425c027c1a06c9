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

package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// addPairs stores key-value pairs into m. A non-string key is kept under a
// positional name so the value is not lost.
func addPairs(m map[string]interface{}, pairs []interface{}) {
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			key = fmt.Sprint("field", i)
		}
		if i+1 < len(pairs) {
			m[key] = pairs[i+1]
		} else {
			m[key] = nil
		}
	}
}

func pairsToMap(pairs []interface{}) map[string]interface{} {
	if len(pairs) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(pairs)/2)
	addPairs(m, pairs)
	return m
}

func fieldValue(v interface{}) interface{} {
	switch v := v.(type) {
	case time.Time:
		return v.UTC().Format("2006-01-02T15:04:05.000Z")
	case time.Duration:
		return v.String()
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	return v
}

// encodeFields writes m as a JSON object with keys in sorted order.
func encodeFields(b *strings.Builder, m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		val, err := json.Marshal(fieldValue(m[k]))
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		if i != 0 {
			b.WriteByte(',')
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return nil
}
