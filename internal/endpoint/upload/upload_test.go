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

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/foxcpp/formdata/framework/formdata"
	"github.com/foxcpp/formdata/framework/module"
	"github.com/foxcpp/formdata/internal/decoder"
	"github.com/foxcpp/formdata/internal/storage/blob/fs"
	"github.com/foxcpp/formdata/internal/testutils"
)

func testEndpoint(t *testing.T, maxSize int64, store module.BlobStore) *Endpoint {
	t.Helper()
	f, err := formdata.NewFactory(formdata.Config{
		MaxSize: maxSize,
		TempDir: t.TempDir(),
		Log:     testutils.Logger(t, "formdata"),
	})
	if err != nil {
		t.Fatal(err)
	}
	dec := decoder.New(f, decoder.Config{Log: testutils.Logger(t, "decoder")})
	return New(dec, store, testutils.Logger(t, "upload"))
}

func post(t *testing.T, h http.Handler, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUpload(t *testing.T) {
	store, err := fs.New(t.TempDir(), testutils.Logger(t, "fs"))
	if err != nil {
		t.Fatal(err)
	}
	e := testEndpoint(t, formdata.NoLimit, store)

	report := bytes.Repeat([]byte("report "), 10000)
	body := testutils.MultipartBody(t,
		testutils.FormPart{Name: "title", Body: []byte("Quarterly")},
		testutils.FormPart{Name: "report", Filename: "report.txt", ContentType: "text/plain", Body: report},
		testutils.FormPart{Name: "logo", Filename: "logo.png", ContentType: "image/png", Body: []byte("\x89PNG")},
	)

	rec := post(t, e.Handler(), testutils.ContentType(), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Request == "" {
		t.Error("request id is missing")
	}
	if len(resp.Fields["title"]) != 1 || resp.Fields["title"][0] != "Quarterly" {
		t.Errorf("wrong fields: %v", resp.Fields)
	}
	if len(resp.Files) != 2 {
		t.Fatalf("wrong files: %+v", resp.Files)
	}
	if resp.Files[0].Filename != "report.txt" || resp.Files[0].Size != int64(len(report)) {
		t.Errorf("wrong file info: %+v", resp.Files[0])
	}

	r, err := store.Open(context.Background(), resp.Files[0].Key)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	stored, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(stored, report) {
		t.Error("stored content differs")
	}
}

func TestUpload_Errors(t *testing.T) {
	e := testEndpoint(t, 16, nil)

	rec := post(t, e.Handler(), testutils.ContentType(), testutils.MultipartBody(t,
		testutils.FormPart{Name: "big", Filename: "big.bin", Body: make([]byte, 17)},
	))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("size limit: unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var errResp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Request == "" || errResp.Error == "" {
		t.Errorf("wrong error response: %+v", errResp)
	}

	rec = post(t, e.Handler(), "application/json", []byte("{}"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("wrong content type: unexpected status %d", rec.Code)
	}

	rec = post(t, e.Handler(), testutils.ContentType(), []byte("--"+testutils.Boundary+"\r\nContent-Disposition: form-data\r\n\r\nx\r\n--"+testutils.Boundary+"--\r\n"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	for _, part := range []testutils.FormPart{
		{Name: "field", ContentType: "text/plain", Charset: "no-such-charset", Body: []byte("x")},
		{Name: "file", Filename: "a.txt", ContentType: "text/plain", Charset: "no-such-charset", Body: []byte("x")},
	} {
		rec = post(t, e.Handler(), testutils.ContentType(), testutils.MultipartBody(t, part))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("unknown charset on %s: unexpected status %d: %s", part.Name, rec.Code, rec.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	getRec := httptest.NewRecorder()
	e.Handler().ServeHTTP(getRec, req)
	if getRec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: unexpected status %d", getRec.Code)
	}
}

type failingStore struct {
	module.BlobStore
	deleted []string
}

func (s *failingStore) Create(context.Context, string, int64) (module.Blob, error) {
	return nil, errors.New("disk full")
}

func (s *failingStore) Delete(_ context.Context, keys []string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}

func TestUpload_PersistFailure(t *testing.T) {
	store := &failingStore{}
	e := testEndpoint(t, formdata.NoLimit, store)

	rec := post(t, e.Handler(), testutils.ContentType(), testutils.MultipartBody(t,
		testutils.FormPart{Name: "a", Filename: "a.bin", Body: []byte("a")},
		testutils.FormPart{Name: "b", Filename: "b.bin", Body: []byte("b")},
	))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.deleted) != 2 {
		t.Error("written blobs are not cleaned up:", store.deleted)
	}
}

func TestMetrics(t *testing.T) {
	e := testEndpoint(t, formdata.NoLimit, nil)
	post(t, e.Handler(), testutils.ContentType(), testutils.MultipartBody(t,
		testutils.FormPart{Name: "a", Body: []byte("1")},
	))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatal("unexpected status", rec.Code)
	}
	for _, name := range []string{"formdata_parts_created", "formdata_upload_requests", "formdata_decoder_bodies"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("metric %s is missing", name)
		}
	}
}
