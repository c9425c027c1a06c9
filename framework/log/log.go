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

// Package log is a small leveled logger that writes a message followed by
// a JSON object of sorted fields:
//
//	formdata/decoder: part rejected	{"part":"avatar","reason":"size limit exceeded"}
//
// Loggers are plain values and cheap to copy. Sublogger and With return
// modified copies, the Output is shared between them.
package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/foxcpp/formdata/framework/exterrors"
	"go.uber.org/zap"
)

type Logger struct {
	// Out receives formatted messages. If nil, DefaultLogger.Out is used.
	Out   Output
	Name  string
	Debug bool

	// Fields are attached to every Msg, Error and DebugMsg record.
	Fields map[string]interface{}
}

// Sublogger returns a copy of l with name appended to the logger name.
func (l Logger) Sublogger(name string) Logger {
	if l.Name != "" {
		name = l.Name + "/" + name
	}
	l.Name = name
	return l
}

// With returns a copy of l that adds the key-value pairs to every record.
func (l Logger) With(fields ...interface{}) Logger {
	merged := make(map[string]interface{}, len(l.Fields)+len(fields)/2)
	for k, v := range l.Fields {
		merged[k] = v
	}
	addPairs(merged, fields)
	l.Fields = merged
	return l
}

// Zap returns a zap.Logger writing into l.
func (l Logger) Zap() *zap.Logger {
	return zap.New(zapCore{l: l})
}

func (l Logger) Printf(format string, val ...interface{}) {
	l.write(false, fmt.Sprintf(format, val...), nil)
}

func (l Logger) Println(val ...interface{}) {
	l.write(false, strings.TrimSuffix(fmt.Sprintln(val...), "\n"), nil)
}

func (l Logger) Debugf(format string, val ...interface{}) {
	if l.Debug {
		l.write(true, fmt.Sprintf(format, val...), nil)
	}
}

// Msg writes a record with key-value pairs, e.g.
//
//	l.Msg("upload received", "files", 2, "size", "1.2 MiB")
func (l Logger) Msg(msg string, fields ...interface{}) {
	l.write(false, msg, pairsToMap(fields))
}

func (l Logger) DebugMsg(msg string, fields ...interface{}) {
	if l.Debug {
		l.write(true, msg, pairsToMap(fields))
	}
}

// Error writes a record describing err. msg names the place where the
// error is handled. Fields attached via exterrors.WithFields are included,
// err text goes into "reason" unless err provides its own.
func (l Logger) Error(msg string, err error, fields ...interface{}) {
	if err == nil {
		return
	}

	m := make(map[string]interface{}, len(fields)/2+4)
	for k, v := range exterrors.Fields(err) {
		m[k] = v
	}
	if _, ok := m["reason"]; !ok {
		m["reason"] = err.Error()
	}
	addPairs(m, fields)
	l.write(false, msg, m)
}

func (l Logger) write(debug bool, msg string, fields map[string]interface{}) {
	out := l.Out
	if out == nil {
		out = DefaultLogger.Out
	}
	if out == nil {
		return
	}

	var b strings.Builder
	if l.Name != "" {
		b.WriteString(l.Name)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	if len(fields)+len(l.Fields) != 0 {
		if fields == nil {
			fields = make(map[string]interface{}, len(l.Fields))
		}
		for k, v := range l.Fields {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
		b.WriteByte('\t')
		if err := encodeFields(&b, fields); err != nil {
			b.Reset()
			fmt.Fprintf(&b, "%s: %s [unencodable fields: %v] %+v", l.Name, msg, err, fields)
		}
	}

	out.Write(time.Now(), debug, b.String())
}

// DefaultLogger is used by package-level functions and by Loggers without
// Out.
var DefaultLogger = Logger{Out: WriterOutput(os.Stderr, false)}

func Printf(format string, val ...interface{}) { DefaultLogger.Printf(format, val...) }
func Println(val ...interface{})               { DefaultLogger.Println(val...) }
func Debugf(format string, val ...interface{}) { DefaultLogger.Debugf(format, val...) }
