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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/foxcpp/formdata/framework/formdata"
	"github.com/foxcpp/formdata/framework/log"
	"github.com/foxcpp/formdata/framework/module"
	formdatacli "github.com/foxcpp/formdata/internal/cli"
	"github.com/foxcpp/formdata/internal/cli/clitools"
	"github.com/foxcpp/formdata/internal/decoder"
	"github.com/foxcpp/formdata/internal/storage/blob/fs"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func init() {
	formdatacli.AddSubcommand(
		&cli.Command{
			Name:      "decode",
			Usage:     "Decode a multipart/form-data body and list its parts",
			ArgsUsage: "FILE|-",
			Action:    decodeCommand,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "boundary",
					Aliases:  []string{"b"},
					Usage:    "Multipart `BOUNDARY` without the leading dashes",
					Required: true,
				},
				&cli.PathFlag{
					Name:    "out",
					Aliases: []string{"o"},
					Usage:   "Save uploaded files into `DIR`",
				},
				&cli.BoolFlag{
					Name:  "persist",
					Usage: "Save uploaded files into the blob store from the configuration file",
				},
				&cli.BoolFlag{
					Name:    "yes",
					Aliases: []string{"y"},
					Usage:   "Overwrite existing files without asking",
				},
			},
		})
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func decodeCommand(ctx *cli.Context) error {
	if ctx.NArg() > 1 {
		return cli.Exit("Error: too many arguments", 2)
	}

	cfg, err := formdatacli.LoadConfig(ctx)
	if err != nil {
		return err
	}
	dec, err := formdatacli.NewDecoder(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	var store module.BlobStore
	switch {
	case ctx.IsSet("out"):
		store, err = fs.New(ctx.Path("out"), log.DefaultLogger.Sublogger("fs"))
	case ctx.Bool("persist"):
		if cfg.Blob.Backend == "" {
			return cli.Exit("Error: blob store is not configured", 2)
		}
		store, err = module.NewBlobStore(cfg.Blob.Backend, cfg.Blob.Options, log.DefaultLogger.Sublogger("blob"))
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	in, err := openInput(ctx.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}
	defer in.Close()

	form, err := dec.Decode(ctx.Context, in, ctx.String("boundary"))
	if err != nil {
		return err
	}
	defer form.Release()

	for _, p := range form.Parts() {
		printPart(ctx.App.Writer, p)
	}
	for _, name := range form.Skipped() {
		fmt.Fprintf(ctx.App.Writer, "%s: skipped, exceeds %s\n", name, cfg.MaxSize)
	}

	if store == nil {
		return nil
	}
	return saveFiles(ctx.Context, ctx.App.Writer, store, form, ctx.Bool("yes"))
}

func printPart(w io.Writer, p *formdata.Part) {
	where := "memory"
	if path, err := p.Path(); err == nil {
		where = path
	}

	if p.Kind() == formdata.KindFileUpload {
		fmt.Fprintf(w, "%s: file %q, %s, %s (%s)\n", p.Name(), p.Filename(), p.ContentType(),
			humanize.IBytes(uint64(p.Len())), where)
		return
	}

	text, err := p.Text()
	if err != nil {
		fmt.Fprintf(w, "%s: <%v>\n", p.Name(), err)
		return
	}
	fmt.Fprintf(w, "%s: %q (%s, %s)\n", p.Name(), text, p.Charset(), humanize.IBytes(uint64(p.Len())))
}

// saveFiles persists uploads under their base file names.
func saveFiles(ctx context.Context, w io.Writer, store module.BlobStore, form *decoder.Form, overwrite bool) error {
	var files []*formdata.Part
	seen := make(map[string]bool)
	for _, p := range form.Files() {
		key := filepath.Base(p.Filename())
		if key == "." || key == string(filepath.Separator) || seen[key] {
			fmt.Fprintf(w, "%s: file %q is not saved, invalid or duplicate name\n", p.Name(), p.Filename())
			continue
		}
		seen[key] = true

		if !overwrite {
			r, err := store.Open(ctx, key)
			if err == nil {
				r.Close()
				if !clitools.Confirmation(fmt.Sprintf("%s exists, overwrite?", key), false) {
					continue
				}
			} else if !errors.Is(err, module.ErrNoSuchBlob) {
				return err
			}
		}
		files = append(files, p)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range files {
		p := p
		g.Go(func() error {
			return p.Persist(gCtx, store, filepath.Base(p.Filename()))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range files {
		fmt.Fprintf(w, "saved %s (%s)\n", filepath.Base(p.Filename()), humanize.IBytes(uint64(p.Len())))
	}
	return nil
}
