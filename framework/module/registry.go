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

package module

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/foxcpp/formdata/framework/log"
)

var ErrUnknownBackend = errors.New("blob_store: unknown backend")

// BlobStoreFactory creates a BlobStore from backend-specific options.
type BlobStoreFactory func(opts map[string]string, logger log.Logger) (BlobStore, error)

var (
	backendsLck sync.RWMutex
	backends    = map[string]BlobStoreFactory{}
)

// RegisterBlobStore adds the backend factory to the global registry.
//
// It is meant to be called from init() of the package implementing the
// backend. Duplicate names cause a panic.
func RegisterBlobStore(name string, factory BlobStoreFactory) {
	backendsLck.Lock()
	defer backendsLck.Unlock()

	if _, ok := backends[name]; ok {
		panic("blob_store: backend registered twice: " + name)
	}
	backends[name] = factory
}

// NewBlobStore creates a BlobStore using the registered backend.
func NewBlobStore(name string, opts map[string]string, logger log.Logger) (BlobStore, error) {
	backendsLck.RLock()
	factory, ok := backends[name]
	backendsLck.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}

	logger.DebugMsg("blob store init", "backend", name)
	return factory(opts, logger.Sublogger(name))
}

// BlobStores returns names of registered backends.
func BlobStores() []string {
	backendsLck.RLock()
	defer backendsLck.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
