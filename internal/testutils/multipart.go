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

package testutils

import (
	"bytes"
	"io"
	"testing"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
)

const Boundary = "formdata-test-boundary"

// FormPart describes a single part of the test request body.
type FormPart struct {
	Name     string
	Filename string

	// ContentType is sent only if not empty.
	ContentType string
	Charset     string

	// Extra header fields.
	Header map[string]string

	Body []byte
}

// MultipartBody encodes parts as a multipart/form-data body delimited by
// Boundary.
func MultipartBody(t testing.TB, parts ...FormPart) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := textproto.NewMultipartWriter(&buf)
	if err := w.SetBoundary(Boundary); err != nil {
		t.Fatal(err)
	}

	for _, p := range parts {
		var h message.Header
		params := map[string]string{"name": p.Name}
		if p.Filename != "" {
			params["filename"] = p.Filename
		}
		h.SetContentDisposition("form-data", params)
		if p.ContentType != "" {
			ctParams := map[string]string{}
			if p.Charset != "" {
				ctParams["charset"] = p.Charset
			}
			h.SetContentType(p.ContentType, ctParams)
		}
		for k, v := range p.Header {
			h.Set(k, v)
		}

		pw, err := w.CreatePart(h.Header)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := pw.Write(p.Body); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// ContentType returns the request Content-Type value for bodies created by
// MultipartBody.
func ContentType() string {
	return "multipart/form-data; boundary=" + Boundary
}

type errorReader struct {
	r   io.Reader
	err error
}

func (r *errorReader) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	if err == io.EOF {
		return n, r.err
	}
	return n, err
}

// FailingReader returns blob and then err instead of io.EOF.
func FailingReader(blob []byte, err error) io.Reader {
	return &errorReader{r: bytes.NewReader(blob), err: err}
}
