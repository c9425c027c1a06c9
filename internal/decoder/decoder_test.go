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

package decoder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/foxcpp/formdata/framework/exterrors"
	"github.com/foxcpp/formdata/framework/formdata"
	"github.com/foxcpp/formdata/internal/testutils"
)

func testDecoder(t *testing.T, maxSize int64, cfg Config) *Decoder {
	t.Helper()
	f, err := formdata.NewFactory(formdata.Config{
		MaxSize:         maxSize,
		MemoryThreshold: 16 * 1024,
		TempDir:         t.TempDir(),
		Storage:         formdata.StorageMixed,
		Log:             testutils.Logger(t, "formdata"),
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg.Log = testutils.Logger(t, "decoder")
	return New(f, cfg)
}

func TestDecode(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{ChunkSize: 1024})
	upload := bytes.Repeat([]byte("0123456789abcdef"), 2048)

	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "title", Body: []byte("hello")},
		testutils.FormPart{Name: "doc", Filename: "doc.bin", ContentType: "application/pdf", Body: upload},
		testutils.FormPart{Name: "tag", Body: []byte("a")},
		testutils.FormPart{Name: "tag", Body: []byte("b")},
	)

	form, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary)
	if err != nil {
		t.Fatal(err)
	}
	defer form.Release()

	if len(form.Parts()) != 4 {
		t.Fatal("wrong parts count:", len(form.Parts()))
	}

	title, err := form.Value("title")
	if err != nil {
		t.Fatal(err)
	}
	if title != "hello" {
		t.Errorf("wrong title: %q", title)
	}

	doc := form.File("doc")
	if doc == nil {
		t.Fatal("upload is missing")
	}
	if doc.Filename() != "doc.bin" || doc.ContentType() != "application/pdf" {
		t.Errorf("wrong upload metadata: %v", doc)
	}
	if !doc.IsCompleted() {
		t.Error("upload is not completed")
	}
	if doc.IsInMemory() {
		t.Error("32 KiB upload is expected to be on disk")
	}
	content, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, upload) {
		t.Error("upload content differs")
	}

	tags := form.Get("tag")
	if len(tags) != 2 {
		t.Fatal("wrong tag count:", len(tags))
	}
	for i, want := range []string{"a", "b"} {
		text, err := tags[i].Text()
		if err != nil {
			t.Fatal(err)
		}
		if text != want {
			t.Errorf("tag %d: want %q, got %q", i, want, text)
		}
	}
	if len(form.Files()) != 1 {
		t.Error("wrong files count:", len(form.Files()))
	}
}

func TestDecode_ReleaseRemovesFiles(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{})
	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "doc", Filename: "doc.bin", Body: make([]byte, 64*1024)},
	)

	form, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary)
	if err != nil {
		t.Fatal(err)
	}
	path, err := form.File("doc").Path()
	if err != nil {
		t.Fatal(err)
	}
	if form.File("doc").ContentType() != "application/octet-stream" {
		t.Error("default content type is not set:", form.File("doc").ContentType())
	}

	form.Release()

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("temporary file is not removed:", err)
	}
	if len(d.Factory().Tracked(form.ID())) != 0 {
		t.Error("released parts are still tracked")
	}
}

func TestDecode_RetainedPartOutlivesForm(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{})
	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "doc", Filename: "doc.bin", Body: []byte("kept")},
	)

	form, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary)
	if err != nil {
		t.Fatal(err)
	}
	doc := form.File("doc").Retain()
	form.Release()

	text, err := doc.Text()
	if err != nil {
		t.Fatal(err)
	}
	if text != "kept" {
		t.Errorf("wrong content: %q", text)
	}
	if freed, err := doc.Release(); err != nil || !freed {
		t.Error("last release did not free the part:", freed, err)
	}
}

func TestDecode_SizeLimit(t *testing.T) {
	d := testDecoder(t, 10, Config{ChunkSize: 4})
	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "small", Body: []byte("ok")},
		testutils.FormPart{Name: "big", Filename: "big.txt", Body: []byte("this is way too long")},
	)

	_, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary)
	if !errors.Is(err, formdata.ErrSizeLimitExceeded) {
		t.Fatal("expected size limit error, got", err)
	}
	if exterrors.IsTemporary(err) {
		t.Error("size limit error is marked as temporary")
	}

	var limitErr *formdata.SizeLimitError
	if !errors.As(err, &limitErr) {
		t.Fatal("error is not *SizeLimitError")
	}
	if limitErr.Part != "big" || limitErr.Limit != 10 {
		t.Errorf("wrong error details: %+v", limitErr)
	}

	reqID, _ := exterrors.Fields(err)["request"].(string)
	if reqID == "" {
		t.Fatal("request id is not attached to the error")
	}
	if len(d.Factory().Tracked(reqID)) != 0 {
		t.Error("parts of the failed request are still tracked")
	}
}

func TestDecode_SkipOversized(t *testing.T) {
	d := testDecoder(t, 10, Config{ChunkSize: 4, SkipOversized: true})
	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "big", Filename: "big.txt", Body: []byte("this is way too long")},
		testutils.FormPart{Name: "small", Body: []byte("ok")},
	)

	form, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary)
	if err != nil {
		t.Fatal(err)
	}
	defer form.Release()

	if len(form.Parts()) != 1 || form.Parts()[0].Name() != "small" {
		t.Errorf("wrong parts: %v", form.Parts())
	}
	if len(form.Skipped()) != 1 || form.Skipped()[0] != "big" {
		t.Errorf("wrong skipped parts: %v", form.Skipped())
	}
}

func TestDecode_Cancel(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{ChunkSize: 1024})
	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "first", Filename: "a.bin", Body: make([]byte, 64*1024)},
		testutils.FormPart{Name: "second", Filename: "b.bin", Body: make([]byte, 64*1024)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tmpFiles []string
	r := &cancelReader{r: bytes.NewReader(body), after: len(body) / 2, cancel: func() {
		// Collect temporary files created so far to verify they are gone
		// after the decoding is aborted.
		entries, _ := os.ReadDir(d.Factory().Config().TempDir)
		for _, e := range entries {
			tmpFiles = append(tmpFiles, e.Name())
		}
		cancel()
	}}

	_, err := d.Decode(ctx, r, testutils.Boundary)
	if !errors.Is(err, context.Canceled) {
		t.Fatal("expected context.Canceled, got", err)
	}
	if len(tmpFiles) == 0 {
		t.Fatal("no temporary files were created before cancellation")
	}

	entries, err := os.ReadDir(d.Factory().Config().TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temporary files left after cancellation: %v", entries)
	}
}

type cancelReader struct {
	r      io.Reader
	read   int
	after  int
	cancel func()
}

func (r *cancelReader) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	r.read += n
	if r.cancel != nil && r.read >= r.after {
		r.cancel()
		r.cancel = nil
	}
	return n, err
}

func TestDecode_Charset(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{})
	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "before", Body: []byte{'c', 'a', 'f', 0xe9}},
		testutils.FormPart{Name: CharsetField, Body: []byte("iso-8859-1")},
		testutils.FormPart{Name: "after", Body: []byte{0xe9, 't', 0xe9}},
		testutils.FormPart{Name: "explicit", ContentType: "text/plain", Charset: "utf-8", Body: []byte("été")},
	)

	form, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary)
	if err != nil {
		t.Fatal(err)
	}
	defer form.Release()

	for name, want := range map[string]string{
		"before":   "café",
		"after":    "été",
		"explicit": "été",
	} {
		got, err := form.Value(name)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%s: want %q, got %q", name, want, got)
		}
	}
}

func TestDecode_TransferEncoding(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{})
	body := testutils.MultipartBody(t,
		testutils.FormPart{
			Name:   "b64",
			Header: map[string]string{"Content-Transfer-Encoding": "base64"},
			Body:   []byte("aGVsbG8g\r\nd29ybGQ="),
		},
		testutils.FormPart{
			Name:   "qp",
			Header: map[string]string{"Content-Transfer-Encoding": "quoted-printable"},
			Body:   []byte("caf=C3=A9"),
		},
	)

	form, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary)
	if err != nil {
		t.Fatal(err)
	}
	defer form.Release()

	if v, _ := form.Value("b64"); v != "hello world" {
		t.Errorf("wrong base64 value: %q", v)
	}
	if v, _ := form.Value("qp"); v != "café" {
		t.Errorf("wrong quoted-printable value: %q", v)
	}

	body = testutils.MultipartBody(t, testutils.FormPart{
		Name:   "x",
		Header: map[string]string{"Content-Transfer-Encoding": "x-uuencode"},
		Body:   []byte("x"),
	})
	if _, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary); !errors.Is(err, ErrMalformed) {
		t.Error("expected ErrMalformed for unknown encoding, got", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{})

	cases := map[string]struct {
		body string
		err  error
	}{
		"empty name": {
			body: "--" + testutils.Boundary + "\r\n" +
				"Content-Disposition: form-data; name=\"   \"\r\n\r\nvalue\r\n" +
				"--" + testutils.Boundary + "--\r\n",
			err: formdata.ErrInvalidName,
		},
		"not form-data": {
			body: "--" + testutils.Boundary + "\r\n" +
				"Content-Disposition: attachment; filename=a.txt\r\n\r\nvalue\r\n" +
				"--" + testutils.Boundary + "--\r\n",
			err: ErrMalformed,
		},
		"unknown field charset": {
			body: "--" + testutils.Boundary + "\r\n" +
				"Content-Disposition: form-data; name=a\r\n" +
				"Content-Type: text/plain; charset=no-such-charset\r\n\r\nvalue\r\n" +
				"--" + testutils.Boundary + "--\r\n",
			err: ErrMalformed,
		},
		"unknown file charset": {
			body: "--" + testutils.Boundary + "\r\n" +
				"Content-Disposition: form-data; name=f; filename=a.txt\r\n" +
				"Content-Type: text/plain; charset=no-such-charset\r\n\r\nvalue\r\n" +
				"--" + testutils.Boundary + "--\r\n",
			err: ErrMalformed,
		},
		"unknown form charset": {
			body: "--" + testutils.Boundary + "\r\n" +
				"Content-Disposition: form-data; name=_charset_\r\n\r\nno-such-charset\r\n" +
				"--" + testutils.Boundary + "--\r\n",
			err: ErrMalformed,
		},
		"truncated": {
			body: "--" + testutils.Boundary + "\r\n" +
				"Content-Disposition: form-data; name=a\r\n\r\nvalue",
			err: ErrMalformed,
		},
	}
	for name, c := range cases {
		c := c
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(context.Background(), strings.NewReader(c.body), testutils.Boundary)
			if !errors.Is(err, c.err) {
				t.Errorf("expected %v, got %v", c.err, err)
			}
		})
	}
}

func TestDecode_TooManyParts(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{MaxParts: 2})
	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "a", Body: []byte("1")},
		testutils.FormPart{Name: "b", Body: []byte("2")},
		testutils.FormPart{Name: "c", Body: []byte("3")},
	)
	if _, err := d.Decode(context.Background(), bytes.NewReader(body), testutils.Boundary); !errors.Is(err, ErrTooManyParts) {
		t.Error("expected ErrTooManyParts, got", err)
	}
}

func TestDecodeRequest(t *testing.T) {
	d := testDecoder(t, formdata.NoLimit, Config{})
	body := testutils.MultipartBody(t, testutils.FormPart{Name: "a", Body: []byte("1")})

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", testutils.ContentType())
	form, err := d.DecodeRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := form.Value("a"); v != "1" {
		t.Errorf("wrong value: %q", v)
	}
	form.Release()

	req = httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if _, err := d.DecodeRequest(req); !errors.Is(err, ErrNotMultipart) {
		t.Error("expected ErrNotMultipart, got", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data")
	if _, err := d.DecodeRequest(req); !errors.Is(err, ErrNoBoundary) {
		t.Error("expected ErrNoBoundary, got", err)
	}
}
