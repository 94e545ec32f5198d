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
	"reflect"
	"testing"
)

func contrib(row, col int, vals ...float64) *Contribution {
	c := &Contribution{Row: row, Col: col}
	for _, v := range vals {
		c.Records = append(c.Records, CycleRecord{CycleID: 1, Year: 2000, Crop: "crop", Values: []float64{v}})
	}
	return c
}

func TestRowTracker(t *testing.T) {
	tr := NewRowTracker(func(int) int { return 2 })
	if tr.Ready(0) {
		t.Fatal("empty row should not be ready")
	}
	if dup := tr.Add(contrib(0, 1, 1)); dup {
		t.Error("first arrival reported as duplicate")
	}
	if dup := tr.Add(contrib(0, 1, 3)); !dup {
		t.Error("second arrival not reported as duplicate")
	}
	if tr.Ready(0) {
		t.Fatal("row with one of two columns should not be ready")
	}
	if r := tr.Remaining(0); r != 1 {
		t.Errorf("remaining = %d, want 1", r)
	}
	tr.Add(contrib(0, 0))
	if !tr.Ready(0) {
		t.Fatal("row should be ready")
	}
	if !reflect.DeepEqual(tr.InFlight(), []int{0}) {
		t.Errorf("in flight = %v", tr.InFlight())
	}
	b := tr.Take(0)
	if len(b.cols) != 2 || len(b.cols[1].records) != 2 || len(b.cols[0].records) != 0 {
		t.Errorf("buffer = %+v", b.cols)
	}
	if len(tr.InFlight()) != 0 {
		t.Errorf("row still in flight after Take")
	}
}

func TestRowTrackerAbsentAndForce(t *testing.T) {
	tr := NewRowTracker(func(row int) int { return row })
	if !tr.Ready(0) {
		t.Error("row expecting no cells should be ready")
	}
	tr.MarkAbsent(3)
	if !tr.Ready(3) || tr.Remaining(3) != 0 {
		t.Error("absent row should be ready")
	}
	tr.Add(contrib(4, 0, 1))
	if tr.Ready(4) {
		t.Error("row 4 should not be ready")
	}
	if tr.Arrived(4) != 1 {
		t.Errorf("arrived = %d, want 1", tr.Arrived(4))
	}
	tr.Force(4)
	if !tr.Ready(4) {
		t.Error("forced row should be ready")
	}
	if !reflect.DeepEqual(tr.InFlight(), []int{3, 4}) {
		t.Errorf("in flight = %v", tr.InFlight())
	}
}
