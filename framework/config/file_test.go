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

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDataSize(t *testing.T) {
	check := func(s string, ok bool, expected int64) {
		t.Helper()
		val, err := ParseDataSize(s)
		if err != nil && ok {
			t.Errorf("unexpected ParseDataSize('%s') fail: %v", s, err)
			return
		}
		if err == nil && !ok {
			t.Errorf("unexpected ParseDataSize('%s') success, got %d", s, val)
			return
		}
		if val != expected {
			t.Errorf("ParseDataSize('%s') != %d", s, expected)
		}
	}

	check("1M", true, 1024*1024)
	check("1K", true, 1024)
	check("16K", true, 16*1024)
	check("1b", true, 1)
	check("1M 5b", true, 1024*1024+5)
	check("1M 5K 5b", true, 1024*1024+5*1024+5)
	check("4G", true, 4*1024*1024*1024)
	check("0", true, 0)
	check("unlimited", true, Unlimited)
	check("-1", true, Unlimited)
	check("1", false, 0)
	check("1d", false, 0)
	check("d", false, 0)
	check("unrelated", false, 0)
	check("1M5b", false, 0)
	check("", false, 0)
	check("-5M", false, 0)
}

func TestRead(t *testing.T) {
	f, err := Read(strings.NewReader(`
max_size: 10M
memory_threshold: 32K
chunk_size: 4096
storage: disk
listen: unix:///run/formdata.sock
blob:
  backend: fs
  options:
    root: /var/lib/formdata
`))
	if err != nil {
		t.Fatal(err)
	}
	if f.MaxSize != 10*1024*1024 || f.MemoryThreshold != 32*1024 || f.ChunkSize != 4096 {
		t.Errorf("wrong sizes: %v %v %v", f.MaxSize, f.MemoryThreshold, f.ChunkSize)
	}
	if f.Storage != "disk" || f.Charset != "utf-8" {
		t.Errorf("wrong values: %+v", f)
	}
	if f.Blob.Backend != "fs" || f.Blob.Options["root"] != "/var/lib/formdata" {
		t.Errorf("wrong blob config: %+v", f.Blob)
	}
	if f.MaxSize.String() != "10 MiB" {
		t.Error("wrong size formatting:", f.MaxSize.String())
	}
}

func TestRead_Defaults(t *testing.T) {
	f, err := Read(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if f.MaxSize != DataSize(Unlimited) || f.MaxSize.String() != "unlimited" {
		t.Error("wrong default max_size:", f.MaxSize)
	}
	if f.MemoryThreshold != DefaultMemoryThreshold || f.Listen != DefaultListen {
		t.Errorf("wrong defaults: %+v", f)
	}
}

func TestRead_Invalid(t *testing.T) {
	for _, cfg := range []string{
		"max_size: 10X",
		"unknown_key: 1",
		"memory_threshold: 0",
		"listen: http://127.0.0.1:80",
		"max_parts: -1",
		"max_size: [1, 2]",
	} {
		if _, err := Read(strings.NewReader(cfg)); err == nil {
			t.Errorf("%q: expected failure", cfg)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formdata.yml")
	if err := os.WriteFile(path, []byte("charset: iso-8859-1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Charset != "iso-8859-1" {
		t.Error("wrong charset:", f.Charset)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("missing file accepted")
	}
}
