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

package formdata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/foxcpp/formdata/framework/buffer"
	"github.com/foxcpp/formdata/framework/module"
)

// readChunkSize is the size of chunks used to drain readers passed to
// SetContentReader.
const readChunkSize = 32 * 1024

var readPool = buffer.NewPool(readChunkSize)

func (st *state) tempNames() (prefix, suffix string) {
	if st.kind == KindFileUpload {
		return "upload-", ".tmp"
	}
	return "attr-", ".att"
}

// newBuffer creates the storage for the part content. sizeHint is the
// expected content length or a negative value if it is not known.
func (st *state) newBuffer(sizeHint int64) (buffer.Buffer, error) {
	prefix, suffix := st.tempNames()

	switch st.storage {
	case StorageMemory:
		hint := 0
		if sizeHint > 0 && sizeHint <= readChunkSize {
			hint = int(sizeHint)
		}
		return buffer.NewMemoryBuffer(hint), nil
	case StorageDisk:
		return buffer.NewTempFile(st.tempDir, prefix, suffix)
	}

	hb := buffer.NewHybridBuffer(st.threshold, st.tempDir, prefix, suffix)
	hb.OnMigrate = func(path string, size int64) {
		spilledParts.WithLabelValues(st.kind.String()).Inc()
		st.log.DebugMsg("part content moved to disk", "part", st.name, "path", path, "size", size)
	}
	// Content that is declared to be large goes to the disk right away.
	if sizeHint >= 0 && sizeHint >= st.threshold {
		if err := hb.Migrate(); err != nil {
			return nil, err
		}
	}
	return hb, nil
}

func (st *state) ioErr(op, path string, err error) error {
	return &IOError{Op: op, Part: st.name, Path: path, Err: err}
}

// checkFresh is called with mu held by operations that replace the whole
// content.
func (p *Part) checkFresh() error {
	st := p.st
	if st.deleted {
		return illegalState(st.name, "part content is deleted")
	}
	if st.completed || st.size != 0 {
		return illegalState(st.name, "content replaced after assembly started")
	}
	return nil
}

// AddContent appends chunk to the part. If last is true, the part is marked
// as completed and no more content is accepted.
//
// The size limit is checked against the total length before anything is
// stored, a rejected chunk leaves the part unchanged.
func (p *Part) AddContent(chunk []byte, last bool) error {
	if err := p.use(); err != nil {
		return err
	}
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.deleted {
		return illegalState(st.name, "part content is deleted")
	}
	if st.completed {
		return illegalState(st.name, "content added to a completed part")
	}

	if len(chunk) != 0 {
		total := st.size + int64(len(chunk))
		if err := p.CheckSize(total); err != nil {
			rejectedChunks.WithLabelValues("size_limit").Inc()
			return err
		}

		if st.buf == nil {
			buf, err := st.newBuffer(st.definedSize)
			if err != nil {
				rejectedChunks.WithLabelValues("io").Inc()
				return st.ioErr("create", st.tempDir, err)
			}
			st.buf = buf
		}
		if _, err := st.buf.Write(chunk); err != nil {
			rejectedChunks.WithLabelValues("io").Inc()
			return st.ioErr("write", st.buf.Path(), err)
		}
		st.size = total
	}

	if last {
		st.completed = true
	}
	return nil
}

// AddChunk is AddContent for pooled chunks. The reference to c held by the
// caller is released regardless of the result.
func (p *Part) AddChunk(c *buffer.Chunk, last bool) error {
	defer c.Release()
	return p.AddContent(c.Bytes(), last)
}

// SetContent replaces the part content with blob and marks the part as
// completed. It can be used only before any content was added.
//
// The part keeps a copy of blob.
func (p *Part) SetContent(blob []byte) error {
	if err := p.use(); err != nil {
		return err
	}
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := p.checkFresh(); err != nil {
		return err
	}
	if err := p.CheckSize(int64(len(blob))); err != nil {
		rejectedChunks.WithLabelValues("size_limit").Inc()
		return err
	}

	buf, err := st.newBuffer(int64(len(blob)))
	if err != nil {
		return st.ioErr("create", st.tempDir, err)
	}
	if _, err := buf.Write(blob); err != nil {
		buf.Remove()
		return st.ioErr("write", buf.Path(), err)
	}

	st.buf = buf
	st.size = int64(len(blob))
	st.completed = true
	return nil
}

// SetContentFile uses the file at path as the part content and marks the
// part as completed.
//
// Disk parts and mixed parts with the file larger than the memory threshold
// read the file in place. The file is not owned by the part and is not
// removed by Delete. Memory parts read it into memory.
func (p *Part) SetContentFile(path string) error {
	if err := p.use(); err != nil {
		return err
	}
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := p.checkFresh(); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return st.ioErr("stat", path, err)
	}
	if err := p.CheckSize(info.Size()); err != nil {
		rejectedChunks.WithLabelValues("size_limit").Inc()
		return err
	}

	var buf buffer.Buffer
	if st.storage == StorageMemory || (st.storage == StorageMixed && info.Size() < st.threshold) {
		f, err := os.Open(path)
		if err != nil {
			return st.ioErr("open", path, err)
		}
		mb, err := buffer.BufferInMemory(f)
		f.Close()
		if err != nil {
			return st.ioErr("read", path, err)
		}
		buf = mb
	} else {
		fb, err := buffer.OpenFile(path)
		if err != nil {
			return st.ioErr("open", path, err)
		}
		buf = fb
		st.external = true
	}

	// The file might have changed since Stat.
	if err := p.CheckSize(buf.Len()); err != nil {
		buf.Remove()
		st.external = false
		return err
	}

	st.buf = buf
	st.size = buf.Len()
	st.completed = true
	return nil
}

// drain copies r into a new buffer. If checkSize is true, the limit is
// checked before each chunk is stored.
func (p *Part) drain(r io.Reader, checkSize bool) (buffer.Buffer, int64, error) {
	st := p.st
	buf, err := st.newBuffer(st.definedSize)
	if err != nil {
		return nil, 0, st.ioErr("create", st.tempDir, err)
	}

	c := readPool.Get()
	defer c.Release()

	var total int64
	for {
		c.Reset()
		n, rerr := c.Fill(r)
		if n > 0 {
			total += int64(n)
			if checkSize {
				if err := p.CheckSize(total); err != nil {
					buf.Remove()
					rejectedChunks.WithLabelValues("size_limit").Inc()
					return nil, 0, err
				}
			}
			if _, err := buf.Write(c.Bytes()); err != nil {
				buf.Remove()
				return nil, 0, st.ioErr("write", buf.Path(), err)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			buf.Remove()
			return nil, 0, st.ioErr("read", "", rerr)
		}
	}
	return buf, total, nil
}

// SetContentReader reads r until io.EOF and uses the result as the part
// content. The size limit is checked as data arrives. On failure the part is
// left unchanged.
func (p *Part) SetContentReader(r io.Reader) error {
	if err := p.use(); err != nil {
		return err
	}
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := p.checkFresh(); err != nil {
		return err
	}

	buf, total, err := p.drain(r, true)
	if err != nil {
		return err
	}
	st.buf = buf
	st.size = total
	st.completed = true
	return nil
}

// Bytes returns the whole content. Disk parts read the file.
//
// The returned slice must not be modified.
func (p *Part) Bytes() ([]byte, error) {
	if err := p.use(); err != nil {
		return nil, err
	}
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.deleted {
		return nil, illegalState(st.name, "part content is deleted")
	}
	if st.buf == nil {
		return []byte{}, nil
	}
	blob, err := st.buf.Bytes()
	if err != nil {
		return nil, st.ioErr("read", st.buf.Path(), err)
	}
	return blob, nil
}

// Chunk returns up to n next bytes of content, advancing the read cursor of
// this Part value. Once all content of a completed part has been returned,
// io.EOF is returned and the cursor is never rewound.
//
// For incomplete parts, an empty slice is returned when the cursor has
// caught up with the data received so far.
//
// The cursor is not shared with duplicates. It is not safe to call Chunk
// from multiple goroutines.
func (p *Part) Chunk(n int) ([]byte, error) {
	if err := p.use(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("formdata: invalid chunk length %d", n)
	}
	if p.exhausted {
		return nil, io.EOF
	}

	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.deleted {
		return nil, illegalState(st.name, "part content is deleted")
	}
	if p.cursor >= st.size {
		if st.completed {
			p.exhausted = true
			return nil, io.EOF
		}
		return []byte{}, nil
	}

	want := st.size - p.cursor
	if int64(n) < want {
		want = int64(n)
	}
	out := make([]byte, want)
	read, err := st.buf.ReadAt(out, p.cursor)
	if err != nil && !(err == io.EOF && int64(read) == want) {
		return nil, st.ioErr("read", st.buf.Path(), err)
	}
	p.cursor += want
	return out, nil
}

// Open returns a new reader over the content accepted so far. Readers are
// independent from the Chunk cursor and from each other.
func (p *Part) Open() (io.ReadCloser, error) {
	if err := p.use(); err != nil {
		return nil, err
	}
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.deleted {
		return nil, illegalState(st.name, "part content is deleted")
	}
	if st.buf == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	r, err := st.buf.Open()
	if err != nil {
		return nil, st.ioErr("open", st.buf.Path(), err)
	}
	return r, nil
}

// Text decodes the content using the part charset.
func (p *Part) Text() (string, error) {
	return p.TextAs(p.Charset())
}

// TextAs decodes the content using the specified charset.
func (p *Part) TextAs(charset string) (string, error) {
	blob, err := p.Bytes()
	if err != nil {
		return "", err
	}
	return decodeText(charset, blob)
}

// RenameTo moves the backing file of a completed part to dest. False is
// returned if the content is not in a file. On success, the part reads from
// dest and Delete no longer removes the file.
func (p *Part) RenameTo(dest string) (bool, error) {
	if err := p.use(); err != nil {
		return false, err
	}
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.deleted {
		return false, illegalState(st.name, "part content is deleted")
	}
	if !st.completed {
		return false, illegalState(st.name, "rename of an incomplete part")
	}
	if st.buf == nil || st.buf.InMemory() {
		return false, nil
	}

	orig := st.buf.Path()
	if err := st.buf.Rename(dest); err != nil {
		return false, st.ioErr("rename", orig, err)
	}
	st.renamed = true
	st.log.DebugMsg("part renamed", "part", st.name, "from", orig, "to", dest)
	return true, nil
}

// Path returns the file currently holding the content.
func (p *Part) Path() (string, error) {
	if err := p.use(); err != nil {
		return "", err
	}
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.buf == nil || st.buf.InMemory() {
		return "", fmt.Errorf("%w: part %q", ErrNotOnDisk, st.name)
	}
	return st.buf.Path(), nil
}

// Delete releases the content storage right away, removing the temporary
// file if there is one. It is safe to call Delete multiple times and from a
// goroutine other than the writer.
//
// Missing file is not an error. Other failures are logged and returned.
func (p *Part) Delete() error {
	st := p.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.deleted {
		return nil
	}
	st.deleted = true

	buf := st.buf
	st.buf = nil
	if buf == nil {
		return nil
	}

	onDisk := !buf.InMemory()
	path := buf.Path()
	if err := buf.Remove(); err != nil {
		ioErr := st.ioErr("delete", path, err)
		st.log.Error("part cleanup failed", ioErr)
		return ioErr
	}
	if onDisk && !st.renamed && !st.external {
		removedTempFiles.Inc()
		st.log.DebugMsg("temporary file removed", "part", st.name, "path", path)
	}
	return nil
}

// Persist copies the content of a completed part into store under key.
func (p *Part) Persist(ctx context.Context, store module.BlobStore, key string) error {
	if err := p.use(); err != nil {
		return err
	}
	if !p.IsCompleted() {
		return illegalState(p.st.name, "persist of an incomplete part")
	}

	r, err := p.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	blob, err := store.Create(ctx, key, p.Len())
	if err != nil {
		return p.st.ioErr("persist", key, err)
	}
	defer blob.Close()

	if _, err := io.Copy(blob, r); err != nil {
		return p.st.ioErr("persist", key, err)
	}
	if err := blob.Sync(); err != nil {
		return p.st.ioErr("persist", key, err)
	}
	return nil
}
