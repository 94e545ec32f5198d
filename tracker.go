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

import "sort"

// cell holds what arrived for one column of a pending row. A cell with no
// records is a no-data cell.
type cell struct {
	records []CycleRecord
}

// rowBuffer collects the cells of one row until the row can be flushed.
type rowBuffer struct {
	row       int
	remaining int // expected cells that have not arrived yet
	cols      map[int]*cell
	absent    bool
}

func (b *rowBuffer) ready() bool { return b.remaining == 0 || b.absent }

// RowTracker keeps the rows of a setup that have received results but have
// not been flushed, and decides when a row is complete.
type RowTracker struct {
	expected func(row int) int
	rows     map[int]*rowBuffer
}

// NewRowTracker returns a tracker where expected gives the number of cells
// that must arrive before a row is complete.
func NewRowTracker(expected func(row int) int) *RowTracker {
	return &RowTracker{
		expected: expected,
		rows:     make(map[int]*rowBuffer),
	}
}

func (t *RowTracker) buffer(row int) *rowBuffer {
	b, ok := t.rows[row]
	if !ok {
		b = &rowBuffer{
			row:       row,
			remaining: t.expected(row),
			cols:      make(map[int]*cell),
		}
		t.rows[row] = b
	}
	return b
}

// Add adds a contribution to its row. The row's outstanding-cell count is
// decremented the first time a column arrives; later arrivals for the same
// column are kept and averaged with the first. Add reports whether the column
// had already arrived.
func (t *RowTracker) Add(c *Contribution) (duplicate bool) {
	b := t.buffer(c.Row)
	cl, ok := b.cols[c.Col]
	if !ok {
		cl = new(cell)
		b.cols[c.Col] = cl
		if b.remaining > 0 {
			b.remaining--
		}
	}
	cl.records = append(cl.records, c.Records...)
	return ok
}

// MarkAbsent marks row as known to hold no data. It is complete from then on.
func (t *RowTracker) MarkAbsent(row int) {
	t.buffer(row).absent = true
}

// Force makes row complete whether or not all of its cells arrived.
func (t *RowTracker) Force(row int) {
	t.buffer(row).remaining = 0
}

// Ready reports whether row is complete and can be flushed.
func (t *RowTracker) Ready(row int) bool {
	if b, ok := t.rows[row]; ok {
		return b.ready()
	}
	return t.expected(row) == 0
}

// Take removes row from the tracker and returns its buffer. The row must be
// ready. Rows that never received anything come back empty.
func (t *RowTracker) Take(row int) *rowBuffer {
	b := t.buffer(row)
	delete(t.rows, row)
	return b
}

// Remaining returns the number of cells row is still waiting for.
func (t *RowTracker) Remaining(row int) int {
	if b, ok := t.rows[row]; ok {
		if b.absent {
			return 0
		}
		return b.remaining
	}
	return t.expected(row)
}

// Arrived returns the number of distinct columns of row that have arrived.
func (t *RowTracker) Arrived(row int) int {
	if b, ok := t.rows[row]; ok {
		return len(b.cols)
	}
	return 0
}

// InFlight returns the rows currently buffered, in ascending order.
func (t *RowTracker) InFlight() []int {
	o := make([]int, 0, len(t.rows))
	for r := range t.rows {
		o = append(o, r)
	}
	sort.Ints(o)
	return o
}
