/*
Copyright © 2019 the gridcollect authors.
This file is part of gridcollect.

gridcollect is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridcollect is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridcollect.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package gridcollect reassembles per-cell simulation results, delivered out
// of order by a pool of workers, into ESRI ASCII grid files. Rows are written
// incrementally as soon as every expected cell of a row has arrived, so a
// grid never has to be held in memory as a whole.
package gridcollect

import "math"

// Version gives the version number.
const Version = "1.2.0"

// NoData is the value that marks a missing cell, both in inbound results and
// in the grid files that are written.
const NoData = -9999.

// isNoData reports whether v is missing. Missing values are carried as NaN
// once they have been normalized.
func isNoData(v float64) bool {
	return math.IsNaN(v) || v == NoData
}
