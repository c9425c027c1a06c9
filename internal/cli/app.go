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
	"os"

	"github.com/foxcpp/formdata/framework/log"
	"github.com/urfave/cli/v2"
)

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Name = "formdata"
	app.Usage = "multipart/form-data decoder and upload server"
	app.Description = `formdata decodes multipart/form-data payloads, keeping small parts in memory
and moving large ones to temporary files.

It can decode a captured request body ('decode') or run an HTTP endpoint
accepting uploads and persisting them to a blob store ('serve').
`
	app.ExitErrHandler = func(c *cli.Context, err error) {
		cli.HandleExitCoder(err)
		if err != nil {
			log.Println(err)
			cli.OsExiter(1)
		}
	}
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.PathFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Read configuration from `FILE`",
			EnvVars: []string{"FORMDATA_CONFIG"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			EnvVars: []string{"FORMDATA_DEBUG"},
		},
		&cli.StringFlag{
			Name:    "max-size",
			Usage:   "Maximum size of a single part (e.g. 10M, unlimited)",
			EnvVars: []string{"FORMDATA_MAX_SIZE"},
		},
		&cli.StringFlag{
			Name:    "memory-threshold",
			Usage:   "Size after which mixed storage moves part content to disk",
			EnvVars: []string{"FORMDATA_MEMORY_THRESHOLD"},
		},
		&cli.PathFlag{
			Name:    "temp-dir",
			Usage:   "Directory for temporary files",
			EnvVars: []string{"FORMDATA_TEMP_DIR"},
		},
		&cli.StringFlag{
			Name:    "charset",
			Usage:   "Default charset of form fields",
			EnvVars: []string{"FORMDATA_CHARSET"},
		},
		&cli.StringFlag{
			Name:    "storage",
			Usage:   "Part storage: mixed, memory or disk",
			EnvVars: []string{"FORMDATA_STORAGE"},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "generate-man",
			Hidden: true,
			Action: func(c *cli.Context) error {
				man, err := app.ToMan()
				if err != nil {
					return err
				}
				fmt.Println(man)
				return nil
			},
		},
		{
			Name:   "generate-fish-completion",
			Hidden: true,
			Action: func(c *cli.Context) error {
				cp, err := app.ToFishCompletion()
				if err != nil {
					return err
				}
				fmt.Println(cp)
				return nil
			},
		},
	}
}

func AddSubcommand(cmd *cli.Command) {
	app.Commands = append(app.Commands, cmd)
}

func Run() {
	// Subcommands are registered by internal/cli/ctl.
	if err := app.Run(os.Args); err != nil {
		log.DefaultLogger.Error("app.Run failed", err)
	}
}
