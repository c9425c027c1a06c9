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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileBuffer implements Buffer interface using file system.
type FileBuffer struct {
	path string
	f    *os.File
	size int64

	// owned is true for files created by the buffer. Only owned files are
	// deleted by Remove.
	owned    bool
	readOnly bool
	removed  bool
}

// NewTempFile creates FileBuffer with underlying file created in the
// specified directory with the random name.
func NewTempFile(dir, prefix, suffix string) (*FileBuffer, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, prefix+uuid.NewString()+suffix)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("buffer: failed to create file: %w", err)
	}
	return &FileBuffer{path: path, f: f, owned: true}, nil
}

// OpenFile creates read-only FileBuffer referring to an existing file.
//
// The file is not owned by the buffer: Remove closes it but leaves it in
// place.
func OpenFile(path string) (*FileBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("buffer: failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("buffer: failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("buffer: %s is not a regular file", path)
	}
	return &FileBuffer{path: path, f: f, size: info.Size(), readOnly: true}, nil
}

// Write appends p to the file. On a failed or short write, the file is
// truncated back to its previous length.
func (fb *FileBuffer) Write(p []byte) (int, error) {
	if fb.removed {
		return 0, ErrRemoved
	}
	if fb.readOnly {
		return 0, ErrReadOnly
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := fb.f.WriteAt(p, fb.size)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if truncErr := fb.f.Truncate(fb.size); truncErr != nil {
			return 0, fmt.Errorf("buffer: write failed: %w (truncate: %v)", err, truncErr)
		}
		return 0, fmt.Errorf("buffer: write failed: %w", err)
	}
	fb.size += int64(n)
	return n, nil
}

func (fb *FileBuffer) ReadAt(p []byte, off int64) (int, error) {
	if fb.removed {
		return 0, ErrRemoved
	}
	if off >= fb.size {
		return 0, io.EOF
	}
	if remaining := fb.size - off; int64(len(p)) > remaining {
		n, err := fb.f.ReadAt(p[:remaining], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return fb.f.ReadAt(p, off)
}

type fileReader struct {
	io.Reader
	io.Closer
}

func (fb *FileBuffer) Open() (io.ReadCloser, error) {
	if fb.removed {
		return nil, ErrRemoved
	}
	f, err := os.Open(fb.path)
	if err != nil {
		return nil, err
	}
	return fileReader{Reader: io.LimitReader(f, fb.size), Closer: f}, nil
}

func (fb *FileBuffer) Bytes() ([]byte, error) {
	if fb.removed {
		return nil, ErrRemoved
	}
	blob := make([]byte, fb.size)
	if _, err := io.ReadFull(io.NewSectionReader(fb.f, 0, fb.size), blob); err != nil {
		return nil, fmt.Errorf("buffer: failed to read file: %w", err)
	}
	return blob, nil
}

// Sync commits the file content to stable storage.
func (fb *FileBuffer) Sync() error {
	if fb.removed {
		return ErrRemoved
	}
	return fb.f.Sync()
}

func (fb *FileBuffer) Len() int64 {
	return fb.size
}

func (fb *FileBuffer) InMemory() bool {
	return false
}

func (fb *FileBuffer) Path() string {
	return fb.path
}

// Rename moves the file to dest. If the file cannot be renamed (e.g. dest
// is on another filesystem), it is copied and the original is removed.
func (fb *FileBuffer) Rename(dest string) error {
	if fb.removed {
		return ErrRemoved
	}
	if dest == fb.path {
		fb.owned = false
		return nil
	}

	if err := os.Rename(fb.path, dest); err == nil {
		fb.path = dest
		fb.owned = false
		return nil
	}

	if err := copyFile(dest, io.NewSectionReader(fb.f, 0, fb.size)); err != nil {
		return err
	}
	f, err := os.OpenFile(dest, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("buffer: failed to reopen file: %w", err)
	}
	old, oldPath, wasOwned := fb.f, fb.path, fb.owned
	fb.f, fb.path, fb.owned = f, dest, false
	old.Close()
	if wasOwned {
		if err := os.Remove(oldPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("buffer: file copied but the original was not removed: %w", err)
		}
	}
	return nil
}

func copyFile(dest string, r io.Reader) error {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("buffer: failed to create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("buffer: failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("buffer: failed to close file: %w", err)
	}
	return nil
}

func (fb *FileBuffer) Remove() error {
	if fb.removed {
		return nil
	}
	fb.removed = true

	closeErr := fb.f.Close()
	if !fb.owned {
		return nil
	}
	if err := os.Remove(fb.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("buffer: failed to remove file: %w", err)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return fmt.Errorf("buffer: failed to close file: %w", closeErr)
	}
	return nil
}

// BufferInFile is a convenience function which creates FileBuffer in dir
// with the contents of the passed io.Reader.
func BufferInFile(r io.Reader, dir, prefix, suffix string) (*FileBuffer, error) {
	fb, err := NewTempFile(dir, prefix, suffix)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fb, r); err != nil {
		fb.Remove()
		return nil, fmt.Errorf("buffer: failed to write file: %w", err)
	}
	return fb, nil
}
