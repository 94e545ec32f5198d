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
	"path/filepath"
	"testing"
)

func TestAuditLog(t *testing.T) {
	vars := Variables{{Name: "A", Digits: 2}, {Name: "B", Kind: Int}}
	path := filepath.Join(t.TempDir(), "setup-1.csv")
	a := NewAuditLog(path, vars)
	if a.Path() != path {
		t.Errorf("path = %s", a.Path())
	}
	if err := a.WriteRow(&RowResult{Row: 0, NoData: true}); err != nil {
		t.Fatal(err)
	}
	rows := []*RowResult{
		{Row: 1, Columns: []Column{
			{Col: 0, Records: []CycleRecord{{CycleID: 1, Year: 2000, Crop: "winter wheat", Values: []float64{1.5, 3}}}},
			{Col: 2, Records: []CycleRecord{{CycleID: 1, Year: 2000, Crop: "rye", Values: []float64{math.NaN(), 4}}}},
		}},
		{Row: 2, Columns: []Column{
			{Col: 1, Records: []CycleRecord{{CycleID: 2, Year: 2001, Crop: "maize, silage", Values: []float64{0, 0}}}},
		}},
	}
	for _, r := range rows {
		if err := a.WriteRow(r); err != nil {
			t.Fatal(err)
		}
	}
	want := `cycle_id,row,col,crop_label,year,A,B
1,1,0,winter wheat,2000,1.50,3
1,1,2,rye,2000,-9999,4
2,2,1,"maize, silage",2001,0.00,0
`
	if got := readFile(t, path); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}
