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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/foxcpp/formdata/atomicbool"
	"github.com/foxcpp/formdata/framework/buffer"
	"github.com/foxcpp/formdata/framework/log"
)

// UnknownSize is the defined size of parts whose length was not declared.
const UnknownSize int64 = -1

// NoLimit disables the maximum size check.
const NoLimit int64 = -1

type Kind int

const (
	KindAttribute Kind = iota
	KindFileUpload
)

func (k Kind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindFileUpload:
		return "file_upload"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Storage selects where part content is kept.
type Storage int

const (
	// StorageMixed keeps content in memory until it reaches the memory
	// threshold and then moves it to a temporary file.
	StorageMixed Storage = iota
	StorageMemory
	StorageDisk
)

func (s Storage) String() string {
	switch s {
	case StorageMixed:
		return "mixed"
	case StorageMemory:
		return "memory"
	case StorageDisk:
		return "disk"
	}
	return fmt.Sprintf("Storage(%d)", int(s))
}

// ParseStorage parses the storage mode name as used in configuration.
func ParseStorage(s string) (Storage, error) {
	switch s {
	case "mixed", "auto":
		return StorageMixed, nil
	case "memory", "ram":
		return StorageMemory, nil
	case "disk", "fs":
		return StorageDisk, nil
	}
	return 0, fmt.Errorf("formdata: unknown storage mode: %s", s)
}

// state is shared by a part and all its duplicates.
type state struct {
	name string
	kind Kind
	seq  uint64

	filename         string
	contentType      string
	transferEncoding string

	storage   Storage
	threshold int64
	tempDir   string

	charset     string
	definedSize int64
	maxSize     int64

	// mu guards buf against Delete running on another goroutine as the
	// result of the final Release.
	mu        sync.Mutex
	buf       buffer.Buffer
	size      int64
	completed bool
	deleted   bool
	renamed   bool
	external  bool

	refs  atomic.Int32
	freed atomicbool.AtomicBool

	log log.Logger
}

// Part is a single form field or uploaded file.
//
// Part and its duplicates share content, size, completion status and the
// reference count. Each of them has its own read cursor used by Chunk.
type Part struct {
	st *state

	cursor    int64
	exhausted bool
}

type partOptions struct {
	kind             Kind
	seq              uint64
	filename         string
	contentType      string
	transferEncoding string
	charset          string
	definedSize      int64
	maxSize          int64
	storage          Storage
	threshold        int64
	tempDir          string
	log              log.Logger
}

func newPart(rawName string, opts partOptions) (*Part, error) {
	name, err := SanitizeName(rawName)
	if err != nil {
		return nil, err
	}

	cs := DefaultCharset
	if opts.charset != "" {
		cs, _, err = lookupCharset(opts.charset)
		if err != nil {
			return nil, err
		}
	}

	st := &state{
		name:             name,
		kind:             opts.kind,
		seq:              opts.seq,
		filename:         opts.filename,
		contentType:      opts.contentType,
		transferEncoding: opts.transferEncoding,
		storage:          opts.storage,
		threshold:        opts.threshold,
		tempDir:          opts.tempDir,
		charset:          cs,
		definedSize:      opts.definedSize,
		maxSize:          opts.maxSize,
		log:              opts.log,
	}
	st.refs.Store(1)

	partsCreated.WithLabelValues(opts.kind.String(), opts.storage.String()).Inc()

	return &Part{st: st}, nil
}

// NewAttribute creates a memory-only form field with the default limits.
// Parts created by a Factory should be preferred.
func NewAttribute(name string) (*Part, error) {
	return newPart(name, partOptions{
		kind:        KindAttribute,
		definedSize: UnknownSize,
		maxSize:     NoLimit,
		storage:     StorageMemory,
	})
}

func (p *Part) use() error {
	if p.st.refs.Load() <= 0 {
		return useAfterFree(p.st.name)
	}
	return nil
}

func (p *Part) Name() string {
	return p.st.name
}

func (p *Part) Kind() Kind {
	return p.st.kind
}

// Storage returns the configured storage mode. Use IsInMemory to find out
// where content is at the moment.
func (p *Part) Storage() Storage {
	return p.st.storage
}

// DefinedLen returns the size declared in the part metadata or UnknownSize.
// It is informational only.
func (p *Part) DefinedLen() int64 {
	return p.st.definedSize
}

// Len returns the amount of bytes accepted so far.
func (p *Part) Len() int64 {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	return p.st.size
}

func (p *Part) IsCompleted() bool {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	return p.st.completed
}

func (p *Part) Charset() string {
	return p.st.charset
}

// SetCharset changes the charset used by Text. Unknown charsets are
// rejected.
func (p *Part) SetCharset(label string) error {
	if err := p.use(); err != nil {
		return err
	}
	cs, _, err := lookupCharset(label)
	if err != nil {
		return err
	}
	p.st.charset = cs
	return nil
}

func (p *Part) MaxSize() int64 {
	return p.st.maxSize
}

// SetMaxSize changes the maximum size of the part. NoLimit (or any negative
// value) disables the check. The limit can be changed only before any
// content is accepted.
func (p *Part) SetMaxSize(maxSize int64) error {
	if err := p.use(); err != nil {
		return err
	}
	if maxSize < 0 {
		maxSize = NoLimit
	}
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	if p.st.size != 0 || p.st.completed {
		return illegalState(p.st.name, "max size changed after content was accepted")
	}
	p.st.maxSize = maxSize
	return nil
}

// CheckSize returns *SizeLimitError if the part cannot grow to total bytes.
func (p *Part) CheckSize(total int64) error {
	if p.st.maxSize >= 0 && total > p.st.maxSize {
		return &SizeLimitError{
			Part:      p.st.name,
			Limit:     p.st.maxSize,
			Attempted: total,
		}
	}
	return nil
}

// Filename returns the client-supplied file name of an upload.
func (p *Part) Filename() string {
	return p.st.filename
}

func (p *Part) SetFilename(filename string) {
	p.st.filename = filename
}

func (p *Part) ContentType() string {
	return p.st.contentType
}

func (p *Part) SetContentType(contentType string) {
	p.st.contentType = contentType
}

func (p *Part) ContentTransferEncoding() string {
	return p.st.transferEncoding
}

func (p *Part) SetContentTransferEncoding(cte string) {
	p.st.transferEncoding = cte
}

// inMemory is called with mu held. Before any content is stored, it
// reports where streamed content will be placed: mixed parts with a declared
// size at or above the threshold go to disk with the first chunk.
func (st *state) inMemory() bool {
	if st.buf != nil {
		return st.buf.InMemory()
	}
	switch st.storage {
	case StorageDisk:
		return false
	case StorageMixed:
		return st.definedSize < 0 || st.definedSize < st.threshold
	}
	return true
}

// IsInMemory reports whether the content is held in memory.
func (p *Part) IsInMemory() bool {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	return p.st.inMemory()
}

func (p *Part) String() string {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()

	where := "memory"
	if !p.st.inMemory() {
		where = "disk"
		if p.st.buf != nil {
			where = p.st.buf.Path()
		}
	}
	if p.st.kind == KindFileUpload {
		return fmt.Sprintf("%s %q (filename=%q, content-type=%q, size=%d, %s)",
			p.st.kind, p.st.name, p.st.filename, p.st.contentType, p.st.size, where)
	}
	return fmt.Sprintf("%s %q (size=%d, %s)", p.st.kind, p.st.name, p.st.size, where)
}
