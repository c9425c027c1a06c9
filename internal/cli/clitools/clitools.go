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

package clitools

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

var stdinScanner = bufio.NewScanner(os.Stdin)

// Confirmation asks a yes/no question on stderr and reads the answer from
// stdin. def is returned for an empty or unrecognized answer.
func Confirmation(prompt string, def bool) bool {
	return confirm(os.Stderr, stdinScanner, prompt, def)
}

func confirm(out io.Writer, in *bufio.Scanner, prompt string, def bool) bool {
	selection := "y/N"
	if def {
		selection = "Y/n"
	}

	fmt.Fprintf(out, "%s [%s]: ", prompt, selection)
	if !in.Scan() {
		fmt.Fprintln(out, in.Err())
		return false
	}

	switch in.Text() {
	case "Y", "y", "yes":
		return true
	case "N", "n", "no":
		return false
	default:
		return def
	}
}
