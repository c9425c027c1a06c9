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

package hooks

import (
	"reflect"
	"testing"
)

func TestRunHooks(t *testing.T) {
	defer RemoveHooks(EventShutdown)

	var order []int
	AddHook(EventShutdown, func() { order = append(order, 1) })
	AddHook(EventShutdown, func() { order = append(order, 2) })
	other := Event(100)
	AddHook(other, func() { t.Error("hook of another event is called") })
	defer RemoveHooks(other)

	RunHooks(EventShutdown)
	if !reflect.DeepEqual(order, []int{2, 1}) {
		t.Error("wrong hooks order:", order)
	}

	RunHooks(EventShutdown)
	if len(order) != 2 {
		t.Error("hooks are called twice")
	}
}

func TestRemoveHooks(t *testing.T) {
	called := false
	AddHook(EventShutdown, func() { called = true })
	RemoveHooks(EventShutdown)
	RunHooks(EventShutdown)
	if called {
		t.Error("removed hook is called")
	}
}

func TestRunHooks_Reentrant(t *testing.T) {
	defer RemoveHooks(EventShutdown)

	calls := 0
	AddHook(EventShutdown, func() {
		calls++
		AddHook(EventShutdown, func() { calls++ })
	})

	RunHooks(EventShutdown)
	if calls != 1 {
		t.Fatal("hook installed during the run is called in the same run")
	}
	RunHooks(EventShutdown)
	if calls != 2 {
		t.Error("hook installed during the run is lost")
	}
}
