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

package log

import (
	"io"
	"sync"
	"time"
)

// Output receives formatted records.
type Output interface {
	Write(stamp time.Time, debug bool, msg string)
}

type writerOutput struct {
	lck        sync.Mutex
	w          io.Writer
	timestamps bool
}

func (o *writerOutput) Write(stamp time.Time, debug bool, msg string) {
	line := make([]byte, 0, len(msg)+40)
	if o.timestamps {
		line = stamp.UTC().AppendFormat(line, "2006-01-02T15:04:05.000Z ")
	}
	if debug {
		line = append(line, "[debug] "...)
	}
	line = append(line, msg...)
	line = append(line, '\n')

	o.lck.Lock()
	defer o.lck.Unlock()
	// Nowhere to report a failure of the log itself.
	_, _ = o.w.Write(line)
}

// WriterOutput writes one line per record into w. Writes are serialized.
func WriterOutput(w io.Writer, timestamps bool) Output {
	return &writerOutput{w: w, timestamps: timestamps}
}

type funcOutput func(time.Time, bool, string)

func (f funcOutput) Write(stamp time.Time, debug bool, msg string) {
	f(stamp, debug, msg)
}

// FuncOutput passes every record to f.
func FuncOutput(f func(stamp time.Time, debug bool, msg string)) Output {
	return funcOutput(f)
}

type NopOutput struct{}

func (NopOutput) Write(time.Time, bool, string) {}
