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

package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/foxcpp/formdata/framework/module"
)

// TestStore runs the common BlobStore behavior checks against the store
// returned by newStore. A new store is created for each subtest and passed
// to cleanStore once the subtest is done.
func TestStore(t *testing.T, newStore func() module.BlobStore, cleanStore func(module.BlobStore)) {
	run := func(name string, f func(t *testing.T, store module.BlobStore)) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer cleanStore(store)
			f(t, store)
		})
	}

	write := func(t *testing.T, store module.BlobStore, key string, body []byte, size int64) {
		t.Helper()
		b, err := store.Create(context.Background(), key, size)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := b.Write(body); err != nil {
			b.Close()
			t.Fatal(err)
		}
		if err := b.Sync(); err != nil {
			b.Close()
			t.Fatal(err)
		}
		if err := b.Close(); err != nil {
			t.Fatal(err)
		}
	}

	read := func(t *testing.T, store module.BlobStore, key string) []byte {
		t.Helper()
		r, err := store.Open(context.Background(), key)
		if err != nil {
			t.Fatal(err)
		}
		defer r.Close()
		body, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		return body
	}

	run("Create_KnownSize", func(t *testing.T, store module.BlobStore) {
		body := []byte("field value")
		write(t, store, "known", body, int64(len(body)))
		if got := read(t, store, "known"); !bytes.Equal(got, body) {
			t.Errorf("wrong content: %q", got)
		}
	})

	run("Create_UnknownSize", func(t *testing.T, store module.BlobStore) {
		body := bytes.Repeat([]byte("0123456789abcdef"), 4096)
		write(t, store, "unknown", body, module.UnknownBlobSize)
		if got := read(t, store, "unknown"); !bytes.Equal(got, body) {
			t.Errorf("wrong content, got %d bytes", len(got))
		}
	})

	run("Create_Overwrite", func(t *testing.T, store module.BlobStore) {
		write(t, store, "key", []byte("first"), 5)
		write(t, store, "key", []byte("second"), 6)
		if got := read(t, store, "key"); string(got) != "second" {
			t.Errorf("wrong content: %q", got)
		}
	})

	run("Close_WithoutSync", func(t *testing.T, store module.BlobStore) {
		b, err := store.Create(context.Background(), "aborted", 6)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := b.Write([]byte("abo")); err != nil {
			t.Fatal(err)
		}
		b.Close()

		_, err = store.Open(context.Background(), "aborted")
		if !errors.Is(err, module.ErrNoSuchBlob) {
			t.Error("expected ErrNoSuchBlob for aborted blob, got", err)
		}
	})

	run("Open_Missing", func(t *testing.T, store module.BlobStore) {
		_, err := store.Open(context.Background(), "missing")
		if !errors.Is(err, module.ErrNoSuchBlob) {
			t.Error("expected ErrNoSuchBlob, got", err)
		}
	})

	run("Delete", func(t *testing.T, store module.BlobStore) {
		write(t, store, "a", []byte("a"), 1)
		write(t, store, "b", []byte("b"), 1)

		if err := store.Delete(context.Background(), []string{"a", "missing"}); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Open(context.Background(), "a"); !errors.Is(err, module.ErrNoSuchBlob) {
			t.Error("deleted blob is still present:", err)
		}
		if got := read(t, store, "b"); string(got) != "b" {
			t.Errorf("unrelated blob changed: %q", got)
		}
	})
}
