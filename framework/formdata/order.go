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
	"strings"

	"github.com/foxcpp/formdata/framework/buffer"
)

// Compare orders parts by name and then by creation order. Parts created by
// the same Factory never compare as equal unless they are duplicates.
func Compare(a, b *Part) int {
	if c := strings.Compare(a.st.name, b.st.name); c != 0 {
		return c
	}
	switch {
	case a.st.seq < b.st.seq:
		return -1
	case a.st.seq > b.st.seq:
		return 1
	}
	return 0
}

func (p *Part) Compare(other *Part) int {
	return Compare(p, other)
}

// Duplicate returns a view of the part. It shares the content and the
// reference count with p but has its own Chunk cursor, starting from the
// beginning.
func (p *Part) Duplicate() *Part {
	return &Part{st: p.st}
}

// RetainedDuplicate is Retain followed by Duplicate.
func (p *Part) RetainedDuplicate() *Part {
	return p.Retain().Duplicate()
}

func (st *state) cloneMeta() *state {
	cp := &state{
		name:             st.name,
		kind:             st.kind,
		seq:              st.seq,
		filename:         st.filename,
		contentType:      st.contentType,
		transferEncoding: st.transferEncoding,
		storage:          st.storage,
		threshold:        st.threshold,
		tempDir:          st.tempDir,
		charset:          st.charset,
		definedSize:      st.definedSize,
		maxSize:          st.maxSize,
		log:              st.log,
	}
	cp.refs.Store(1)
	return cp
}

// Replace returns a new completed in-memory part with the same name and
// metadata as p and blob as its content. The new part takes ownership of
// blob and has its own reference count.
//
// The size limit is not checked.
func (p *Part) Replace(blob []byte) (*Part, error) {
	if err := p.use(); err != nil {
		return nil, err
	}
	st := p.st.cloneMeta()
	st.storage = StorageMemory
	st.buf = &buffer.MemoryBuffer{Slice: blob}
	st.size = int64(len(blob))
	st.completed = true
	return &Part{st: st}, nil
}

// Copy returns a deep copy of p using the same storage mode. The copy has its
// own reference count and, for disk storage, its own temporary file.
func (p *Part) Copy() (*Part, error) {
	r, err := p.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	cp := &Part{st: p.st.cloneMeta()}
	buf, total, err := cp.drain(r, false)
	if err != nil {
		return nil, err
	}
	cp.st.buf = buf
	cp.st.size = total
	cp.st.completed = p.IsCompleted()
	return cp, nil
}
