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

// Package formdata implements storage for the parts of a multipart/form-data
// payload.
//
// A Part is created by a Factory when the multipart scanner finds a new part
// header. The scanner then appends content chunk by chunk using AddContent
// until the chunk marked as last. Depending on the storage mode, content is
// kept in memory, written to a temporary file, or kept in memory until it
// grows past a threshold and then moved to a file.
//
// Parts are reference counted. A new part has the reference count of 1, the
// owner calls Release when done with it, and whoever needs the part past
// that point calls Retain first. The storage (memory or temporary file) is
// released when the count reaches zero.
//
// Assembly is expected to happen on a single goroutine. Retain and Release
// can be called from any goroutine.
package formdata
