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

// The buffer package provides storage for the content of a single form part
// while it is being assembled from network chunks.
package buffer

import (
	"errors"
	"io"
)

var (
	// ErrNotOnDisk is returned by Rename for buffers that keep their content
	// in memory.
	ErrNotOnDisk = errors.New("buffer: content is not stored in a file")

	// ErrRemoved is returned by any I/O method called after Remove.
	ErrRemoved = errors.New("buffer: buffer is removed")

	// ErrReadOnly is returned by Write for buffers wrapping a file they do
	// not own.
	ErrReadOnly = errors.New("buffer: buffer is read-only")
)

// Buffer interface represents storage for a single part content.
//
// Content is append-only: Write adds bytes to the end of the buffer and
// either stores all of them or none. A failed Write leaves Len and the
// stored bytes as they were before the call.
//
// Buffer is not goroutine-safe. It is assumed that a single goroutine writes
// to it and that readers are used only after writing is finished or by the
// same goroutine.
type Buffer interface {
	io.Writer
	io.ReaderAt

	// Open creates new Reader reading from the underlying storage.
	//
	// The reader sees the content as it was at the time of the call.
	Open() (io.ReadCloser, error)

	// Bytes returns the whole content. For file-backed buffers this reads
	// the file into memory.
	//
	// The returned slice must not be modified.
	Bytes() ([]byte, error)

	// Len reports the length of the stored blob.
	Len() int64

	// InMemory reports whether content is currently held in memory.
	InMemory() bool

	// Path returns the backing file path or empty string if content is in
	// memory.
	Path() string

	// Rename moves the backing file to dest. Once renamed, the file is
	// no longer owned by the buffer and Remove will not delete it.
	//
	// ErrNotOnDisk is returned for buffers that keep content in memory.
	Rename(dest string) error

	// Remove discards buffered content and releases all associated
	// resources. It is safe to call Remove multiple times.
	//
	// Missing backing file is not an error.
	Remove() error
}
