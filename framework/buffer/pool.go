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
	"sync"
	"sync/atomic"
)

// DefaultChunkSize is the chunk size used by pools created with non-positive
// size.
const DefaultChunkSize = 8 * 1024

// Pool hands out fixed-size reference-counted chunks used to read part
// content from the network.
type Pool struct {
	size int
	p    sync.Pool
}

func NewPool(chunkSize int) *Pool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	pool := &Pool{size: chunkSize}
	pool.p.New = func() interface{} {
		return make([]byte, chunkSize)
	}
	return pool
}

// ChunkSize returns the capacity of chunks returned by Get.
func (p *Pool) ChunkSize() int {
	return p.size
}

// Get returns an empty chunk with reference count of 1.
func (p *Pool) Get() *Chunk {
	c := &Chunk{buf: p.p.Get().([]byte), pool: p}
	c.refs.Store(1)
	return c
}

// Chunk is a pooled byte slice shared by reference counting. The last
// Release returns the memory to the pool, after that the chunk must not be
// used.
type Chunk struct {
	buf  []byte
	n    int
	refs atomic.Int32
	pool *Pool
}

// NewChunk wraps b into a chunk that does not belong to any pool.
func NewChunk(b []byte) *Chunk {
	c := &Chunk{buf: b, n: len(b)}
	c.refs.Store(1)
	return c
}

// Bytes returns the filled part of the chunk.
func (c *Chunk) Bytes() []byte {
	return c.buf[:c.n]
}

// Reset empties the chunk so it can be filled again.
func (c *Chunk) Reset() {
	c.n = 0
}

func (c *Chunk) Len() int {
	return c.n
}

// Fill reads from r until the chunk is full or r returns an error. io.EOF
// is returned only if r reached the end, possibly together with some data.
func (c *Chunk) Fill(r io.Reader) (int, error) {
	start := c.n
	for c.n < len(c.buf) {
		n, err := r.Read(c.buf[c.n:])
		c.n += n
		if err != nil {
			return c.n - start, err
		}
	}
	return c.n - start, nil
}

func (c *Chunk) RefCount() int32 {
	return c.refs.Load()
}

// Retain increments the reference count.
func (c *Chunk) Retain() *Chunk {
	if c.refs.Add(1) <= 1 {
		panic("buffer: retain of a released chunk")
	}
	return c
}

// Release decrements the reference count and reports whether the chunk was
// returned to the pool.
func (c *Chunk) Release() bool {
	refs := c.refs.Add(-1)
	switch {
	case refs > 0:
		return false
	case refs < 0:
		panic(fmt.Sprintf("buffer: chunk released too many times (%d)", refs))
	}

	if c.pool != nil && cap(c.buf) == c.pool.size {
		c.pool.p.Put(c.buf[:c.pool.size])
	}
	c.buf = nil
	c.n = 0
	return true
}
