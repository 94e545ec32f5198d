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

package gridcollect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GridKey identifies an output grid: one variable for one cycle in one year.
type GridKey struct {
	Variable int // index into Variables
	Crop     string
	Year     int
	CycleID  int
}

// GridRow is one row of values for one output grid. Missing cells are NaN.
type GridRow struct {
	Key    GridKey
	Values []float64
}

// Column is the set of records that arrived for one column of a row.
type Column struct {
	Col     int
	Records []CycleRecord
}

// RowResult is a completed and aggregated row.
type RowResult struct {
	Row int

	// NoData is true if no cell in the row holds a value for any
	// variable in any cycle.
	NoData bool

	// Grids holds the row of each output grid that the row has
	// data for, ordered by variable, crop, year and cycle.
	Grids []GridRow

	// Columns holds the populated columns in ascending order.
	Columns []Column
}

type cycleYear struct{ cycle, year int }

// Aggregate folds the records of a completed row into one value per output
// grid and column. A value is the mean of all records for the same cycle,
// year and column that hold the variable, or NaN if there are none.
// The crop label of a cycle is taken from the first record seen for it.
func Aggregate(b *rowBuffer, ncols int, vars Variables) *RowResult {
	r := &RowResult{Row: b.row}

	cols := make([]int, 0, len(b.cols))
	for c, cl := range b.cols {
		if c < 0 || c >= ncols || len(cl.records) == 0 {
			continue
		}
		cols = append(cols, c)
	}
	sort.Ints(cols)

	crops := make(map[int]string)
	grouped := make(map[cycleYear][][]CycleRecord) // key -> column -> records
	var keys []cycleYear
	for _, c := range cols {
		recs := b.cols[c].records
		r.Columns = append(r.Columns, Column{Col: c, Records: recs})
		for _, rec := range recs {
			if _, ok := crops[rec.CycleID]; !ok {
				crops[rec.CycleID] = SanitizeCrop(rec.Crop)
			}
			k := cycleYear{cycle: rec.CycleID, year: rec.Year}
			g, ok := grouped[k]
			if !ok {
				g = make([][]CycleRecord, ncols)
				grouped[k] = g
				keys = append(keys, k)
			}
			g[c] = append(g[c], rec)
		}
	}

	var vals []float64
	for _, k := range keys {
		g := grouped[k]
		for vi := range vars {
			row := make([]float64, ncols)
			for c := range row {
				vals = vals[:0]
				for _, rec := range g[c] {
					if x := rec.Values[vi]; !isNoData(x) {
						vals = append(vals, x)
					}
				}
				if len(vals) == 0 {
					row[c] = math.NaN()
				} else {
					row[c] = stat.Mean(vals, nil)
				}
			}
			r.Grids = append(r.Grids, GridRow{
				Key:    GridKey{Variable: vi, Crop: crops[k.cycle], Year: k.year, CycleID: k.cycle},
				Values: row,
			})
		}
	}
	sort.Slice(r.Grids, func(i, j int) bool {
		a, b := r.Grids[i].Key, r.Grids[j].Key
		switch {
		case a.Variable != b.Variable:
			return a.Variable < b.Variable
		case a.Crop != b.Crop:
			return a.Crop < b.Crop
		case a.Year != b.Year:
			return a.Year < b.Year
		default:
			return a.CycleID < b.CycleID
		}
	})

	r.NoData = true
	for _, g := range r.Grids {
		if floats.Count(func(x float64) bool { return !math.IsNaN(x) }, g.Values) > 0 {
			r.NoData = false
			break
		}
	}
	return r
}
