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

package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/foxcpp/formdata/framework/module"
	"github.com/foxcpp/formdata/internal/storage/blob"
	"github.com/foxcpp/formdata/internal/testutils"
)

func TestFS(t *testing.T) {
	blob.TestStore(t, func() module.BlobStore {
		store, err := New(t.TempDir(), testutils.Logger(t, "fs"))
		if err != nil {
			panic(err)
		}
		return store
	}, func(store module.BlobStore) {
		os.RemoveAll(store.(*FSStore).root)
	})
}

func TestFS_InvalidKey(t *testing.T) {
	store, err := New(t.TempDir(), testutils.Logger(t, "fs"))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "..", "a/b", "../escape"} {
		if _, err := store.Create(context.Background(), key, 0); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}

func TestFS_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, testutils.Logger(t, "fs"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := store.Create(context.Background(), "key", 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := b.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "key" {
		t.Errorf("unexpected directory content: %v", entries)
	}
	if _, err := os.Stat(filepath.Join(dir, "key")); err != nil {
		t.Error(err)
	}
}

func TestFS_Registry(t *testing.T) {
	store, err := module.NewBlobStore("fs", map[string]string{"root": t.TempDir()}, testutils.Logger(t, "blob"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*FSStore); !ok {
		t.Errorf("wrong store type: %T", store)
	}
}
