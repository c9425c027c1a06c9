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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/foxcpp/formdata/framework/buffer"
	"github.com/foxcpp/formdata/framework/log"
	"github.com/foxcpp/formdata/framework/module"
)

const modName = "fs"

// FSStore struct represents directory on FS used to store blobs.
type FSStore struct {
	root string
	log  log.Logger
}

// New creates the store rooted at dir. The directory is created if it does
// not exist.
func New(root string, logger log.Logger) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob_store.fs: directory not set")
	}
	if err := os.MkdirAll(root, os.ModeDir|os.ModePerm); err != nil {
		return nil, err
	}
	return &FSStore{root: root, log: logger}, nil
}

func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", fmt.Errorf("blob_store.fs: invalid key: %q", key)
	}
	return filepath.Join(s.root, key), nil
}

// fsBlob is written to a temporary file in the store directory and renamed
// to the final name by Sync.
type fsBlob struct {
	dest string
	f    *buffer.FileBuffer
}

func (b *fsBlob) Write(p []byte) (int, error) {
	return b.f.Write(p)
}

func (b *fsBlob) Sync() error {
	if err := b.f.Sync(); err != nil {
		return err
	}
	return b.f.Rename(b.dest)
}

// Close removes the temporary file unless Sync already moved it into place.
func (b *fsBlob) Close() error {
	return b.f.Remove()
}

func (s *FSStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, module.ErrNoSuchBlob
		}
		return nil, err
	}
	return f, nil
}

func (s *FSStore) Create(_ context.Context, key string, _ int64) (module.Blob, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := buffer.NewTempFile(s.root, ".blob-", ".tmp")
	if err != nil {
		return nil, err
	}
	return &fsBlob{dest: path, f: f}, nil
}

func (s *FSStore) Delete(_ context.Context, keys []string) error {
	for _, key := range keys {
		path, err := s.path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		s.log.DebugMsg("blob removed", "key", key)
	}
	return nil
}

func init() {
	var _ module.BlobStore = &FSStore{}
	module.RegisterBlobStore(modName, func(opts map[string]string, logger log.Logger) (module.BlobStore, error) {
		return New(opts["root"], logger)
	})
}
