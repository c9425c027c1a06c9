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

import "github.com/prometheus/client_golang/prometheus"

var (
	partsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formdata",
			Subsystem: "parts",
			Name:      "created",
			Help:      "Amount of form parts created",
		},
		[]string{"kind", "storage"},
	)
	spilledParts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formdata",
			Subsystem: "parts",
			Name:      "spilled_to_disk",
			Help:      "Parts moved from memory to a temporary file after reaching the memory threshold",
		},
		[]string{"kind"},
	)
	rejectedChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formdata",
			Subsystem: "parts",
			Name:      "rejected_chunks",
			Help:      "Content chunks that were not accepted",
		},
		[]string{"reason"},
	)
	removedTempFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "formdata",
			Subsystem: "parts",
			Name:      "removed_temp_files",
			Help:      "Temporary files removed on part deletion",
		},
	)
)

func init() {
	prometheus.MustRegister(partsCreated)
	prometheus.MustRegister(spilledParts)
	prometheus.MustRegister(rejectedChunks)
	prometheus.MustRegister(removedTempFiles)
}
