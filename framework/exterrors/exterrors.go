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

// Package exterrors attaches machine-readable context to errors: log fields
// and whether the failed operation may succeed if retried.
//
// The logger puts the fields into error records, the upload endpoint uses
// them to choose the response status and to report the request id.
package exterrors

import "errors"

// TemporaryErr is implemented by errors that know whether retrying the
// failed operation can succeed.
type TemporaryErr interface {
	Temporary() bool
}

type fieldsErr interface {
	Fields() map[string]interface{}
}

type fieldsWrap struct {
	error
	fields map[string]interface{}
}

func (w fieldsWrap) Unwrap() error                  { return w.error }
func (w fieldsWrap) Fields() map[string]interface{} { return w.fields }

type temporaryWrap struct {
	error
	temp bool
}

func (w temporaryWrap) Unwrap() error   { return w.error }
func (w temporaryWrap) Temporary() bool { return w.temp }

// WithFields attaches fields to err. errors.Is and errors.As see through the
// returned wrapper.
func WithFields(err error, fields map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return fieldsWrap{err, fields}
}

// WithTemporary marks err as temporary or permanent, overriding what the
// wrapped errors say.
func WithTemporary(err error, temporary bool) error {
	if err == nil {
		return nil
	}
	return temporaryWrap{err, temporary}
}

// Fields collects values attached to err and all errors it wraps. Outer
// errors win on conflicting keys.
func Fields(err error) map[string]interface{} {
	fields := make(map[string]interface{})
	for ; err != nil; err = errors.Unwrap(err) {
		fe, ok := err.(fieldsErr)
		if !ok {
			continue
		}
		for k, v := range fe.Fields() {
			if _, ok := fields[k]; !ok {
				fields[k] = v
			}
		}
	}
	return fields
}

func temporary(err error) (temp, known bool) {
	var te TemporaryErr
	if !errors.As(err, &te) {
		return false, false
	}
	return te.Temporary(), true
}

// IsTemporary reports whether err is explicitly marked as temporary.
func IsTemporary(err error) bool {
	temp, _ := temporary(err)
	return temp
}

// IsTemporaryOrUnspec is like IsTemporary, but errors without the mark are
// assumed to be temporary.
func IsTemporaryOrUnspec(err error) bool {
	temp, known := temporary(err)
	return temp || !known
}
