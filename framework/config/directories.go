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

package config

import "os"

var (
	// RuntimeDirectory is used to resolve relative unix socket paths.
	// Defaults to $RUNTIME_DIRECTORY set by systemd, if any.
	RuntimeDirectory = os.Getenv("RUNTIME_DIRECTORY")

	// TempDirectory is the default directory for temporary files holding
	// part content. os.TempDir() is used if it is empty.
	TempDirectory = os.Getenv("FORMDATA_TEMP_DIR")
)
