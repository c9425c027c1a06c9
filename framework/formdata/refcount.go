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
	"math"
)

// RefCount returns the current reference count.
func (p *Part) RefCount() int32 {
	return p.st.refs.Load()
}

// Retain increments the reference count by one and returns p.
func (p *Part) Retain() *Part {
	return p.RetainN(1)
}

// RetainN increments the reference count by n and returns p.
//
// Retaining a released part is a programming error and panics, the same way
// a negative sync.WaitGroup counter does.
func (p *Part) RetainN(n int) *Part {
	if n <= 0 || n > math.MaxInt32 {
		panic(fmt.Sprintf("formdata: invalid retain increment: %d", n))
	}
	inc := int32(n)
	for {
		refs := p.st.refs.Load()
		if refs <= 0 {
			panic(useAfterFree(p.st.name))
		}
		if refs > math.MaxInt32-inc {
			panic(fmt.Sprintf("formdata: reference count overflow for part %q", p.st.name))
		}
		if p.st.refs.CompareAndSwap(refs, refs+inc) {
			return p
		}
	}
}

// Release decrements the reference count by one. See ReleaseN.
func (p *Part) Release() (bool, error) {
	return p.ReleaseN(1)
}

// ReleaseN decrements the reference count by n and reports whether the part
// was deallocated as a result. Deallocation deletes the content and happens
// exactly once, on the goroutine that brings the count to zero.
//
// Releasing more references than held fails with ErrUseAfterFree and does
// not change the count.
func (p *Part) ReleaseN(n int) (bool, error) {
	if n <= 0 || n > math.MaxInt32 {
		return false, fmt.Errorf("formdata: invalid release decrement: %d", n)
	}
	dec := int32(n)
	for {
		refs := p.st.refs.Load()
		if refs < dec {
			return false, fmt.Errorf("%w (refcount: %d, decrement: %d)", useAfterFree(p.st.name), refs, dec)
		}
		if p.st.refs.CompareAndSwap(refs, refs-dec) {
			if refs == dec {
				p.deallocate()
				return true, nil
			}
			return false, nil
		}
	}
}

func (p *Part) deallocate() {
	if !p.st.freed.SetOnce() {
		return
	}
	// Delete logs its own failures.
	_ = p.Delete()
}
