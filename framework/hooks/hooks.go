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

// Package hooks runs cleanup callbacks on process-wide events.
package hooks

import "sync"

type Event int

const (
	// EventShutdown is triggered when the process is about to stop. Temporary
	// files of parts still in flight are removed by hooks of this event.
	EventShutdown Event = iota
)

var (
	lck        sync.Mutex
	registered = make(map[Event][]func())
)

// AddHook installs f to be called when ev is triggered.
func AddHook(ev Event, f func()) {
	lck.Lock()
	defer lck.Unlock()
	registered[ev] = append(registered[ev], f)
}

// RunHooks calls hooks of ev, latest installed first, and uninstalls them.
// Hooks run without the lock held and may install new hooks.
func RunHooks(ev Event) {
	lck.Lock()
	fs := registered[ev]
	delete(registered, ev)
	lck.Unlock()

	for i := len(fs) - 1; i >= 0; i-- {
		fs[i]()
	}
}

// RemoveHooks uninstalls hooks of ev without calling them.
func RemoveHooks(ev Event) {
	lck.Lock()
	defer lck.Unlock()
	delete(registered, ev)
}
