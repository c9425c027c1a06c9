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

package atomicbool

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestAtomicBool_SetOnce(t *testing.T) {
	var (
		b    AtomicBool
		wins int32
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.SetOnce() {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatal("SetOnce succeeded", wins, "times")
	}
	if !b.IsSet() {
		t.Fatal("Flag is not set")
	}

	b.Set(false)
	if b.IsSet() {
		t.Fatal("Flag is still set")
	}
}
