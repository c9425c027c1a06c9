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

package buffer

import (
	"bytes"
	"io"
)

// MemoryBuffer implements Buffer interface using byte slice.
type MemoryBuffer struct {
	Slice []byte

	removed bool
}

// NewMemoryBuffer creates an empty MemoryBuffer with capacity for sizeHint
// bytes. Negative sizeHint is ignored.
func NewMemoryBuffer(sizeHint int) *MemoryBuffer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &MemoryBuffer{Slice: make([]byte, 0, sizeHint)}
}

func (mb *MemoryBuffer) Write(p []byte) (int, error) {
	if mb.removed {
		return 0, ErrRemoved
	}
	mb.Slice = append(mb.Slice, p...)
	return len(p), nil
}

func (mb *MemoryBuffer) ReadAt(p []byte, off int64) (int, error) {
	if mb.removed {
		return 0, ErrRemoved
	}
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= int64(len(mb.Slice)) {
		return 0, io.EOF
	}
	n := copy(p, mb.Slice[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (mb *MemoryBuffer) Open() (io.ReadCloser, error) {
	if mb.removed {
		return nil, ErrRemoved
	}
	return io.NopCloser(bytes.NewReader(mb.Slice)), nil
}

func (mb *MemoryBuffer) Bytes() ([]byte, error) {
	if mb.removed {
		return nil, ErrRemoved
	}
	return mb.Slice, nil
}

func (mb *MemoryBuffer) Len() int64 {
	return int64(len(mb.Slice))
}

func (mb *MemoryBuffer) InMemory() bool {
	return true
}

func (mb *MemoryBuffer) Path() string {
	return ""
}

func (mb *MemoryBuffer) Rename(string) error {
	return ErrNotOnDisk
}

// Remove drops the reference to the slice. Slices previously returned by
// Bytes stay valid.
func (mb *MemoryBuffer) Remove() error {
	mb.Slice = nil
	mb.removed = true
	return nil
}

// BufferInMemory is a convenience function which creates MemoryBuffer with
// contents of the passed io.Reader.
func BufferInMemory(r io.Reader) (*MemoryBuffer, error) {
	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &MemoryBuffer{Slice: blob}, nil
}
