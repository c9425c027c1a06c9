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
	"os"
	"sync"
	"sync/atomic"

	"github.com/foxcpp/formdata/framework/log"
)

const (
	// DefaultMemoryThreshold is the size starting from which mixed parts
	// are moved to disk.
	DefaultMemoryThreshold int64 = 16 * 1024
)

// Config holds the defaults applied to parts created by a Factory.
type Config struct {
	// MaxSize is the maximum size of each part, NoLimit disables the
	// check.
	MaxSize int64

	// MemoryThreshold is used by StorageMixed.
	MemoryThreshold int64

	// Charset is the charset of attributes that do not specify one.
	Charset string

	// TempDir is the directory for temporary files. os.TempDir() is used
	// if it is empty.
	TempDir string

	Storage Storage

	Log log.Logger
}

// DefaultConfig returns the configuration with no size limit, 16 KiB memory
// threshold and UTF-8 charset.
func DefaultConfig() Config {
	return Config{
		MaxSize:         NoLimit,
		MemoryThreshold: DefaultMemoryThreshold,
		Charset:         DefaultCharset,
		TempDir:         os.TempDir(),
		Storage:         StorageMixed,
		Log:             log.Logger{Name: "formdata"},
	}
}

// Factory creates parts using the configured defaults and remembers parts
// created for each request so they can be deleted together.
type Factory struct {
	cfg Config
	seq atomic.Uint64

	trackedLck sync.Mutex
	tracked    map[string][]*Part
}

// NewFactory creates a Factory. Empty Charset and TempDir and non-positive
// MemoryThreshold are replaced with defaults.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.Charset == "" {
		cfg.Charset = DefaultCharset
	}
	cs, _, err := lookupCharset(cfg.Charset)
	if err != nil {
		return nil, err
	}
	cfg.Charset = cs
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.MaxSize < 0 {
		cfg.MaxSize = NoLimit
	}
	if cfg.MemoryThreshold <= 0 {
		cfg.MemoryThreshold = DefaultMemoryThreshold
	}

	return &Factory{
		cfg:     cfg,
		tracked: make(map[string][]*Part),
	}, nil
}

func (f *Factory) Config() Config {
	return f.cfg
}

func (f *Factory) options(kind Kind, definedSize int64) partOptions {
	return partOptions{
		kind:        kind,
		seq:         f.seq.Add(1),
		charset:     f.cfg.Charset,
		definedSize: definedSize,
		maxSize:     f.cfg.MaxSize,
		storage:     f.cfg.Storage,
		threshold:   f.cfg.MemoryThreshold,
		tempDir:     f.cfg.TempDir,
		log:         f.cfg.Log,
	}
}

// NewAttribute creates a form field part for the request req.
func (f *Factory) NewAttribute(req, name string, definedSize int64) (*Part, error) {
	p, err := newPart(name, f.options(KindAttribute, definedSize))
	if err != nil {
		return nil, err
	}
	f.track(req, p)
	return p, nil
}

// NewUpload creates a file upload part for the request req. Empty charset
// means the factory default.
func (f *Factory) NewUpload(req, name, filename, contentType, transferEncoding, charset string, size int64) (*Part, error) {
	opts := f.options(KindFileUpload, size)
	opts.filename = filename
	opts.contentType = contentType
	opts.transferEncoding = transferEncoding
	if charset != "" {
		opts.charset = charset
	}

	p, err := newPart(name, opts)
	if err != nil {
		return nil, err
	}
	f.track(req, p)
	return p, nil
}

func (f *Factory) track(req string, p *Part) {
	f.trackedLck.Lock()
	defer f.trackedLck.Unlock()
	f.tracked[req] = append(f.tracked[req], p)
}

// Forget stops tracking the part. Use it when the part is handed over to
// code that manages its lifetime separately.
func (f *Factory) Forget(req string, p *Part) {
	f.trackedLck.Lock()
	defer f.trackedLck.Unlock()

	parts := f.tracked[req]
	for i, tracked := range parts {
		if tracked.st == p.st {
			parts = append(parts[:i], parts[i+1:]...)
			break
		}
	}
	if len(parts) == 0 {
		delete(f.tracked, req)
		return
	}
	f.tracked[req] = parts
}

// Tracked returns the parts created for req and not forgotten yet.
func (f *Factory) Tracked(req string) []*Part {
	f.trackedLck.Lock()
	defer f.trackedLck.Unlock()

	parts := make([]*Part, len(f.tracked[req]))
	copy(parts, f.tracked[req])
	return parts
}

// CleanRequest deletes the content of every part created for req, complete
// or not, and stops tracking them.
func (f *Factory) CleanRequest(req string) {
	f.trackedLck.Lock()
	parts := f.tracked[req]
	delete(f.tracked, req)
	f.trackedLck.Unlock()

	for _, p := range parts {
		// Errors are logged by Delete.
		_ = p.Delete()
	}
}

// CleanAll deletes the content of all tracked parts.
func (f *Factory) CleanAll() {
	f.trackedLck.Lock()
	tracked := f.tracked
	f.tracked = make(map[string][]*Part)
	f.trackedLck.Unlock()

	for _, parts := range tracked {
		for _, p := range parts {
			_ = p.Delete()
		}
	}
}
