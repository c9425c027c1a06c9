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
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMemoryThreshold = 16 * 1024
	DefaultChunkSize       = 8 * 1024
	DefaultListen          = "tcp://127.0.0.1:8080"
)

// Blob selects the backend used to persist completed uploads. Options are
// passed to the backend as is.
type Blob struct {
	Backend string            `yaml:"backend"`
	Options map[string]string `yaml:"options"`
}

// File is the configuration file structure.
type File struct {
	MaxSize         DataSize `yaml:"max_size"`
	MemoryThreshold DataSize `yaml:"memory_threshold"`
	Charset         string   `yaml:"charset"`
	TempDir         string   `yaml:"temp_dir"`
	Storage         string   `yaml:"storage"`

	ChunkSize     DataSize `yaml:"chunk_size"`
	MaxParts      int      `yaml:"max_parts"`
	SkipOversized bool     `yaml:"skip_oversized"`

	Listen string `yaml:"listen"`
	Debug  bool   `yaml:"debug"`

	Blob Blob `yaml:"blob"`
}

// Default returns the configuration used when there is no configuration
// file.
func Default() File {
	tempDir := TempDirectory
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return File{
		MaxSize:         DataSize(Unlimited),
		MemoryThreshold: DefaultMemoryThreshold,
		Charset:         "utf-8",
		TempDir:         tempDir,
		Storage:         "mixed",
		ChunkSize:       DefaultChunkSize,
		Listen:          DefaultListen,
	}
}

// Read parses the configuration from r. Values missing from r are taken from
// Default. Unknown keys are rejected.
func Read(r io.Reader) (File, error) {
	f := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Load reads the configuration file at path.
func Load(path string) (File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("config: %w", err)
	}
	defer fd.Close()

	f, err := Read(fd)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f File) Validate() error {
	if f.MemoryThreshold <= 0 {
		return errors.New("config: memory_threshold should be positive")
	}
	if f.ChunkSize <= 0 {
		return errors.New("config: chunk_size should be positive")
	}
	if f.MaxParts < 0 {
		return errors.New("config: max_parts should not be negative")
	}
	if _, err := ParseEndpoint(f.Listen); err != nil {
		return err
	}
	return nil
}
