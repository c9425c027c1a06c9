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

package decoder

import (
	"fmt"
	"sort"

	"github.com/foxcpp/formdata/framework/formdata"
)

// Form is the result of decoding a multipart body.
//
// Form holds one reference to each part. Release drops them, parts that
// were retained by the caller stay valid until their last Release.
type Form struct {
	id      string
	factory *formdata.Factory
	parts   []*formdata.Part
	skipped []string
}

// ID returns the request key used to track the parts in the factory.
func (f *Form) ID() string {
	return f.id
}

// Parts returns all parts in arrival order.
func (f *Form) Parts() []*formdata.Part {
	return f.parts
}

// Skipped returns names of parts dropped because they exceeded the size
// limit.
func (f *Form) Skipped() []string {
	return f.skipped
}

// Get returns the parts with the specified name in creation order.
func (f *Form) Get(name string) []*formdata.Part {
	var res []*formdata.Part
	for _, p := range f.parts {
		if p.Name() == name {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return formdata.Compare(res[i], res[j]) < 0
	})
	return res
}

// Value returns the decoded text of the first attribute with the specified
// name.
func (f *Form) Value(name string) (string, error) {
	for _, p := range f.Get(name) {
		if p.Kind() == formdata.KindAttribute {
			return p.Text()
		}
	}
	return "", fmt.Errorf("decoder: no field named %q", name)
}

// File returns the first file upload with the specified name or nil.
func (f *Form) File(name string) *formdata.Part {
	for _, p := range f.Get(name) {
		if p.Kind() == formdata.KindFileUpload {
			return p
		}
	}
	return nil
}

// Files returns all file uploads in arrival order.
func (f *Form) Files() []*formdata.Part {
	var res []*formdata.Part
	for _, p := range f.parts {
		if p.Kind() == formdata.KindFileUpload {
			res = append(res, p)
		}
	}
	return res
}

// Release drops the references held by the form and stops tracking its
// parts in the factory.
func (f *Form) Release() {
	for _, p := range f.parts {
		f.factory.Forget(f.id, p)
		// Error means the caller released the form reference already.
		_, _ = p.Release()
	}
	f.parts = nil
}
