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

package formdata

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is used to decode parts that do not specify a charset.
const DefaultCharset = "utf-8"

// lookupCharset resolves a charset label the same way text decoding does
// and returns its canonical name.
func lookupCharset(label string) (string, encoding.Encoding, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", nil, unknownCharset(label, nil)
	}

	enc, err := ianaindex.MIME.Encoding(label)
	if enc == nil {
		enc, err = htmlindex.Get(label)
	}
	if err != nil {
		return "", nil, unknownCharset(label, err)
	}
	if enc == nil {
		return "", nil, unknownCharset(label, nil)
	}

	name, err := ianaindex.MIME.Name(enc)
	if err != nil || name == "" {
		name = strings.ToLower(label)
	}
	return strings.ToLower(name), enc, nil
}

// LookupCharset returns the canonical name of the charset label or
// ErrUnknownCharset if the charset is not supported.
func LookupCharset(label string) (string, error) {
	name, _, err := lookupCharset(label)
	return name, err
}

func isUTF8(cs string) bool {
	return cs == DefaultCharset
}

func decodeText(cs string, blob []byte) (string, error) {
	if isUTF8(cs) {
		return string(blob), nil
	}
	if _, enc, err := lookupCharset(cs); err == nil && enc == unicode.UTF8 {
		return string(blob), nil
	}

	r, err := charset.Reader(cs, bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("formdata: charset %q: %w", cs, err)
	}
	return string(text), nil
}
