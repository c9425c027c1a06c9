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
	"fmt"
	"io"
)

type hybridState int

const (
	hybridInMemory hybridState = iota
	hybridMigrating
	hybridOnDisk
)

func (s hybridState) String() string {
	switch s {
	case hybridInMemory:
		return "in-memory"
	case hybridMigrating:
		return "migrating"
	case hybridOnDisk:
		return "on-disk"
	}
	return fmt.Sprintf("hybridState(%d)", int(s))
}

// HybridBuffer keeps content in memory until its length reaches Threshold
// and then moves it to a temporary file.
//
// Migration happens at most once and is invisible to readers: the content
// observed before and after it is the same byte sequence.
type HybridBuffer struct {
	Threshold int64

	// Dir, Prefix and Suffix are passed to NewTempFile on migration.
	Dir    string
	Prefix string
	Suffix string

	// OnMigrate, if set, is called after the content was moved to the
	// file. size is the amount of bytes moved.
	OnMigrate func(path string, size int64)

	state hybridState
	mem   *MemoryBuffer
	file  *FileBuffer
}

func NewHybridBuffer(threshold int64, dir, prefix, suffix string) *HybridBuffer {
	return &HybridBuffer{
		Threshold: threshold,
		Dir:       dir,
		Prefix:    prefix,
		Suffix:    suffix,
		mem:       NewMemoryBuffer(0),
	}
}

func (hb *HybridBuffer) current() Buffer {
	if hb.state == hybridOnDisk {
		return hb.file
	}
	return hb.mem
}

// Write appends p. If the resulting length reaches Threshold, the buffered
// content is flushed to a new temporary file first. A failed migration
// removes the partially written file and keeps content in memory.
func (hb *HybridBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if hb.state == hybridOnDisk {
		return hb.file.Write(p)
	}
	if hb.mem.Len()+int64(len(p)) < hb.Threshold {
		return hb.mem.Write(p)
	}

	if err := hb.migrate(); err != nil {
		return 0, err
	}
	return hb.file.Write(p)
}

// Migrate moves the content to a temporary file regardless of its length.
// It is a no-op if the content is already on disk.
func (hb *HybridBuffer) Migrate() error {
	if hb.state == hybridOnDisk {
		return nil
	}
	return hb.migrate()
}

func (hb *HybridBuffer) migrate() error {
	if hb.mem.removed {
		return ErrRemoved
	}
	hb.state = hybridMigrating

	fb, err := NewTempFile(hb.Dir, hb.Prefix, hb.Suffix)
	if err != nil {
		hb.state = hybridInMemory
		return err
	}
	if _, err := fb.Write(hb.mem.Slice); err != nil {
		fb.Remove()
		hb.state = hybridInMemory
		return err
	}

	size := hb.mem.Len()
	hb.mem.Remove()
	hb.file = fb
	hb.state = hybridOnDisk

	if hb.OnMigrate != nil {
		hb.OnMigrate(fb.Path(), size)
	}
	return nil
}

func (hb *HybridBuffer) ReadAt(p []byte, off int64) (int, error) {
	return hb.current().ReadAt(p, off)
}

func (hb *HybridBuffer) Open() (io.ReadCloser, error) {
	return hb.current().Open()
}

func (hb *HybridBuffer) Bytes() ([]byte, error) {
	return hb.current().Bytes()
}

func (hb *HybridBuffer) Len() int64 {
	return hb.current().Len()
}

func (hb *HybridBuffer) InMemory() bool {
	return hb.state != hybridOnDisk
}

func (hb *HybridBuffer) Path() string {
	return hb.current().Path()
}

func (hb *HybridBuffer) Rename(dest string) error {
	return hb.current().Rename(dest)
}

func (hb *HybridBuffer) Remove() error {
	if hb.file != nil {
		return hb.file.Remove()
	}
	return hb.mem.Remove()
}
