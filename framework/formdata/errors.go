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

package formdata

import (
	"errors"
	"fmt"

	"github.com/foxcpp/formdata/framework/exterrors"
)

var (
	// ErrInvalidName is returned by part constructors when the sanitized
	// name is empty.
	ErrInvalidName = errors.New("formdata: empty part name")

	// ErrSizeLimitExceeded matches every *SizeLimitError.
	ErrSizeLimitExceeded = errors.New("formdata: size exceeds allowed maximum capacity")

	// ErrIllegalState is returned when an operation is used in the wrong
	// phase of the part lifecycle.
	ErrIllegalState = errors.New("formdata: illegal part state")

	// ErrUseAfterFree is returned by operations on a part whose reference
	// count has reached zero.
	ErrUseAfterFree = errors.New("formdata: part is released")

	// ErrNotOnDisk is returned by Path for parts that keep content in
	// memory.
	ErrNotOnDisk = errors.New("formdata: part content is not stored in a file")

	// ErrUnknownCharset is returned for empty or unsupported charset labels.
	// It is a permanent error.
	ErrUnknownCharset = errors.New("formdata: unknown charset")
)

func unknownCharset(label string, reason error) error {
	err := fmt.Errorf("%w %q", ErrUnknownCharset, label)
	if reason != nil {
		err = fmt.Errorf("%w %q: %v", ErrUnknownCharset, label, reason)
	}
	return exterrors.WithTemporary(err, false)
}


// SizeLimitError is returned when accepting more content would make the part
// larger than its maximum size. The part is left unchanged.
type SizeLimitError struct {
	Part      string
	Limit     int64
	Attempted int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("formdata: part %q: size %d exceeds allowed maximum capacity %d", e.Part, e.Attempted, e.Limit)
}

func (e *SizeLimitError) Is(target error) bool {
	return target == ErrSizeLimitExceeded
}

func (e *SizeLimitError) Fields() map[string]interface{} {
	return map[string]interface{}{
		"part":       e.Part,
		"max_size":   e.Limit,
		"size":       e.Attempted,
		"reason":     "size limit exceeded",
		"part_error": "size_limit",
	}
}

// Temporary returns false: sending the same content again will fail again.
func (e *SizeLimitError) Temporary() bool {
	return false
}

// IOError reports a storage failure. Part content stays as it was before
// the failed operation.
type IOError struct {
	Op   string
	Part string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("formdata: part %q: %s %s: %v", e.Part, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("formdata: part %q: %s: %v", e.Part, e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"part":       e.Part,
		"op":         e.Op,
		"part_error": "io",
	}
	if e.Path != "" {
		fields["path"] = e.Path
	}
	return fields
}

func (e *IOError) Temporary() bool {
	return true
}

func invalidName(raw string) error {
	return exterrors.WithTemporary(exterrors.WithFields(ErrInvalidName, map[string]interface{}{
		"raw_name":   raw,
		"part_error": "invalid_name",
	}), false)
}

func illegalState(name, format string, args ...interface{}) error {
	return exterrors.WithFields(
		fmt.Errorf("%w: part %q: %s", ErrIllegalState, name, fmt.Sprintf(format, args...)),
		map[string]interface{}{
			"part":       name,
			"part_error": "illegal_state",
		},
	)
}

func useAfterFree(name string) error {
	return exterrors.WithFields(
		fmt.Errorf("%w: part %q", ErrUseAfterFree, name),
		map[string]interface{}{
			"part":       name,
			"part_error": "use_after_free",
		},
	)
}
