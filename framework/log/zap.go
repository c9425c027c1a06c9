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
	"go.uber.org/zap/zapcore"
)

// zapCore routes zap records into a Logger. Zap debug level maps to
// Logger.Debug, every other level is written as a regular record.
type zapCore struct {
	l Logger
}

func encodeZapFields(fields []zapcore.Field) map[string]interface{} {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return enc.Fields
}

func (c zapCore) Enabled(level zapcore.Level) bool {
	return c.l.Debug || level > zapcore.DebugLevel
}

func (c zapCore) With(fields []zapcore.Field) zapcore.Core {
	for k, v := range encodeZapFields(fields) {
		c.l = c.l.With(k, v)
	}
	return c
}

func (c zapCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return ce.AddCore(entry, c)
}

func (c zapCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	l := c.l
	if entry.LoggerName != "" {
		l = l.Sublogger(entry.LoggerName)
	}
	m := encodeZapFields(fields)
	if len(m) == 0 {
		m = nil
	}
	l.write(entry.Level == zapcore.DebugLevel, entry.Message, m)
	return nil
}

func (zapCore) Sync() error { return nil }
