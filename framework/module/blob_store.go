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

package module

import (
	"context"
	"errors"
	"io"
)

// Blob is an object being written to a BlobStore.
type Blob interface {
	Sync() error
	io.Writer
	io.Closer
}

var ErrNoSuchBlob = errors.New("blob_store: no such object")

const UnknownBlobSize int64 = -1

// BlobStore is the interface implemented by backends that keep completed
// parts after the request is done.
type BlobStore interface {
	// Create creates a new blob for writing.
	//
	// Sync will be called on the returned Blob object after all data has
	// been successfully written. Close without Sync means the write was
	// aborted and stored data can be discarded.
	//
	// blobSize is the exact amount of bytes that will be written or
	// UnknownBlobSize.
	//
	// Passed context covers the entire blob write operation.
	Create(ctx context.Context, key string, blobSize int64) (Blob, error)

	// Open returns the reader for the object specified by passed key.
	//
	// If no such object exists - ErrNoSuchBlob is returned.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a set of keys from store. Non-existent keys are ignored.
	Delete(ctx context.Context, keys []string) error
}
