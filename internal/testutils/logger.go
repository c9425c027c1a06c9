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

package testutils

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/foxcpp/formdata/framework/log"
)

var (
	debugLog  = flag.Bool("test.debuglog", false, "(formdata) Turn on debug log messages")
	directLog = flag.Bool("test.directlog", false, "(formdata) Log to stderr instead of test log")
)

// Logger returns a Logger that writes into the test log, so output of
// passing tests stays hidden.
func Logger(t testing.TB, name string) log.Logger {
	l := log.Logger{Name: name, Debug: *debugLog}
	if *directLog {
		l.Out = log.WriterOutput(os.Stderr, true)
		return l
	}

	l.Out = log.FuncOutput(func(_ time.Time, debug bool, msg string) {
		t.Helper()
		if debug {
			t.Log("[debug]", msg)
			return
		}
		t.Log(msg)
	})
	return l
}
