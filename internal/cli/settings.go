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

package formdatacli

import (
	"fmt"

	"github.com/foxcpp/formdata/framework/config"
	"github.com/foxcpp/formdata/framework/formdata"
	"github.com/foxcpp/formdata/framework/log"
	"github.com/foxcpp/formdata/internal/decoder"
	"github.com/urfave/cli/v2"
)

// LoadConfig reads the configuration file specified by the --config flag,
// if any, and applies the global flags on top of it.
func LoadConfig(ctx *cli.Context) (config.File, error) {
	cfg := config.Default()
	if path := ctx.Path("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.File{}, cli.Exit(fmt.Sprintf("Error: %v", err), 2)
		}
	}

	sizeFlag := func(name string, dst *config.DataSize) error {
		if !ctx.IsSet(name) {
			return nil
		}
		size, err := config.ParseDataSize(ctx.String(name))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: --%s: %v", name, err), 2)
		}
		*dst = config.DataSize(size)
		return nil
	}
	if err := sizeFlag("max-size", &cfg.MaxSize); err != nil {
		return config.File{}, err
	}
	if err := sizeFlag("memory-threshold", &cfg.MemoryThreshold); err != nil {
		return config.File{}, err
	}
	if ctx.IsSet("temp-dir") {
		cfg.TempDir = ctx.Path("temp-dir")
	}
	if ctx.IsSet("charset") {
		cfg.Charset = ctx.String("charset")
	}
	if ctx.IsSet("storage") {
		cfg.Storage = ctx.String("storage")
	}
	if ctx.IsSet("debug") {
		cfg.Debug = ctx.Bool("debug")
	}

	if err := cfg.Validate(); err != nil {
		return config.File{}, cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}
	log.DefaultLogger.Debug = cfg.Debug
	return cfg, nil
}

// NewDecoder creates the part factory and the decoder configured by cfg.
func NewDecoder(cfg config.File) (*decoder.Decoder, error) {
	storage, err := formdata.ParseStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	logger := log.DefaultLogger.Sublogger("formdata")
	factory, err := formdata.NewFactory(formdata.Config{
		MaxSize:         int64(cfg.MaxSize),
		MemoryThreshold: int64(cfg.MemoryThreshold),
		Charset:         cfg.Charset,
		TempDir:         cfg.TempDir,
		Storage:         storage,
		Log:             logger,
	})
	if err != nil {
		return nil, err
	}

	return decoder.New(factory, decoder.Config{
		ChunkSize:     int(cfg.ChunkSize),
		MaxParts:      cfg.MaxParts,
		SkipOversized: cfg.SkipOversized,
		Log:           logger,
	}), nil
}
