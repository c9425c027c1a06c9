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
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestRefCount_Balance(t *testing.T) {
	f := testFactory(t, StorageDisk, NoLimit)
	p, err := f.NewAttribute("req", "field", UnknownSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.AddContent([]byte("value"), true); err != nil {
		t.Fatal(err)
	}
	if p.RefCount() != 1 {
		t.Fatal("wrong initial reference count:", p.RefCount())
	}

	p.Retain().RetainN(2)
	if p.RefCount() != 4 {
		t.Fatal("wrong reference count:", p.RefCount())
	}

	if freed, err := p.ReleaseN(3); err != nil || freed {
		t.Fatal("ReleaseN(3):", freed, err)
	}
	if _, err := p.Bytes(); err != nil {
		t.Fatal("part is not usable while referenced:", err)
	}
	if len(tempFiles(t, f)) != 1 {
		t.Fatal("temporary file is removed while referenced")
	}

	freed, err := p.Release()
	if err != nil || !freed {
		t.Fatal("last Release did not free the part:", freed, err)
	}
	if len(tempFiles(t, f)) != 0 {
		t.Error("temporary file is not removed")
	}
	if _, err := p.Bytes(); !errors.Is(err, ErrUseAfterFree) {
		t.Error("expected ErrUseAfterFree, got", err)
	}
	if err := p.AddContent([]byte("x"), false); !errors.Is(err, ErrUseAfterFree) {
		t.Error("expected ErrUseAfterFree, got", err)
	}
}

func TestRefCount_OverRelease(t *testing.T) {
	p, err := NewAttribute("field")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.ReleaseN(2); !errors.Is(err, ErrUseAfterFree) {
		t.Fatal("expected ErrUseAfterFree, got", err)
	}
	if p.RefCount() != 1 {
		t.Fatal("failed release changed the count:", p.RefCount())
	}

	if freed, err := p.Release(); err != nil || !freed {
		t.Fatal("Release:", freed, err)
	}
	if _, err := p.Release(); !errors.Is(err, ErrUseAfterFree) {
		t.Error("expected ErrUseAfterFree, got", err)
	}
	if p.RefCount() != 0 {
		t.Error("failed release changed the count:", p.RefCount())
	}
	if _, err := p.ReleaseN(0); err == nil {
		t.Error("zero decrement accepted")
	}
}

func TestRefCount_RetainFreed(t *testing.T) {
	p, err := NewAttribute("field")
	if err != nil {
		t.Fatal(err)
	}
	p.Release()

	defer func() {
		if recover() == nil {
			t.Error("Retain of a freed part did not panic")
		}
	}()
	p.Retain()
}

func TestRefCount_ConcurrentRelease(t *testing.T) {
	const holders = 64

	f := testFactory(t, StorageDisk, NoLimit)
	p, err := f.NewUpload("req", "file", "a.bin", "application/octet-stream", "", "", UnknownSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.AddContent([]byte("shared"), true); err != nil {
		t.Fatal(err)
	}
	p.RetainN(holders - 1)

	var freed atomic.Int32
	var g errgroup.Group
	for i := 0; i < holders; i++ {
		dup := p.Duplicate()
		g.Go(func() error {
			if _, err := dup.Bytes(); err != nil {
				return err
			}
			ok, err := dup.Release()
			if ok {
				freed.Add(1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if freed.Load() != 1 {
		t.Error("part is freed", freed.Load(), "times")
	}
	if p.RefCount() != 0 {
		t.Error("wrong final reference count:", p.RefCount())
	}
	if files := tempFiles(t, f); len(files) != 0 {
		t.Error("temporary file is not removed:", files)
	}
}

func TestRetainedDuplicate(t *testing.T) {
	p, err := NewAttribute("field")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetContent([]byte("value")); err != nil {
		t.Fatal(err)
	}

	dup := p.RetainedDuplicate()
	if p.RefCount() != 2 || dup.RefCount() != 2 {
		t.Fatal("reference count is not shared:", p.RefCount(), dup.RefCount())
	}
	if freed, _ := p.Release(); freed {
		t.Fatal("part is freed while the duplicate holds a reference")
	}
	text, err := dup.Text()
	if err != nil {
		t.Fatal(err)
	}
	if text != "value" {
		t.Errorf("wrong text: %q", text)
	}
	if freed, _ := dup.Release(); !freed {
		t.Error("last Release did not free the part")
	}
}
