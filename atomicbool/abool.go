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

// Package atomicbool implements a boolean flag that can be set from
// multiple goroutines.
package atomicbool

import (
	"sync/atomic"
)

// AtomicBool is a boolean flag safe for concurrent use. Zero value is
// false.
type AtomicBool uint32

func (b *AtomicBool) IsSet() bool {
	return atomic.LoadUint32((*uint32)(b)) == 1
}

func (b *AtomicBool) Set(val bool) {
	var i uint32
	if val {
		i = 1
	}
	atomic.StoreUint32((*uint32)(b), i)
}

// SetOnce changes the flag from false to true and reports whether this call
// did the change. Only one of concurrent callers gets true.
func (b *AtomicBool) SetOnce() bool {
	return atomic.CompareAndSwapUint32((*uint32)(b), 0, 1)
}
