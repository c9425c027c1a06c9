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

package ctl

import (
	"context"
	"fmt"
	"time"

	"github.com/foxcpp/formdata/framework/hooks"
	"github.com/foxcpp/formdata/framework/log"
	"github.com/foxcpp/formdata/framework/module"
	formdatacli "github.com/foxcpp/formdata/internal/cli"
	"github.com/foxcpp/formdata/internal/endpoint/upload"
	"github.com/urfave/cli/v2"

	_ "github.com/foxcpp/formdata/internal/storage/blob/s3"
)

func init() {
	formdatacli.AddSubcommand(
		&cli.Command{
			Name:   "serve",
			Usage:  "Accept uploads over HTTP",
			Action: serveCommand,
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:    "listen",
					Aliases: []string{"l"},
					Usage:   "Listen on `ENDPOINT` (tcp://host:port or unix://path)",
					EnvVars: []string{"FORMDATA_LISTEN"},
				},
				&cli.DurationFlag{
					Name:  "shutdown-timeout",
					Usage: "Time to wait for requests in flight on shutdown",
					Value: 30 * time.Second,
				},
			},
		})
}

func serveCommand(ctx *cli.Context) error {
	cfg, err := formdatacli.LoadConfig(ctx)
	if err != nil {
		return err
	}
	dec, err := formdatacli.NewDecoder(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	var store module.BlobStore
	if cfg.Blob.Backend != "" {
		store, err = module.NewBlobStore(cfg.Blob.Backend, cfg.Blob.Options, log.DefaultLogger.Sublogger("blob"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
		}
	} else {
		log.Println("blob store is not configured, uploads will not be persisted")
	}

	endp := upload.New(dec, store, log.DefaultLogger.Sublogger("upload"))
	hooks.AddHook(hooks.EventShutdown, dec.Factory().CleanAll)

	addrs := ctx.StringSlice("listen")
	if len(addrs) == 0 {
		addrs = []string{cfg.Listen}
	}
	if err := endp.Listen(addrs...); err != nil {
		endp.Close()
		return err
	}

	waitForSignal()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ctx.Duration("shutdown-timeout"))
	defer cancel()
	if err := endp.Shutdown(shutdownCtx); err != nil {
		log.DefaultLogger.Error("graceful shutdown failed", err)
		endp.Close()
	}

	hooks.RunHooks(hooks.EventShutdown)
	return nil
}
