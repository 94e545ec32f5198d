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
	"io/ioutil"
	"math"
	"path/filepath"
	"testing"
)

func intp(i int) *int { return &i }

// result returns a result message for one cycle of one cell.
func result(setup, row, col, cycle, year int, crop string, vals map[string]float64) *Message {
	return &Message{
		Type:     TypeResult,
		CustomID: &CustomID{SetupID: intp(setup), Row: intp(row), Col: intp(col)},
		Data: []CycleData{{
			CycleID: intp(cycle),
			Year:    intp(year),
			Crop:    crop,
			Values:  vals,
		}},
	}
}

// failed returns a result message for a cell whose run failed.
func failed(setup, row, col int) *Message {
	return &Message{
		Type:     TypeResult,
		CustomID: &CustomID{SetupID: intp(setup), Row: intp(row), Col: intp(col)},
		Data:     []CycleData{{RunFailed: true, Error: "soil data missing"}},
	}
}

func testVars() Variables {
	return Variables{{Name: "V", Kind: Float, Digits: 1}}
}

func testHeader(nrows, ncols int) Header {
	return Header{Ncols: ncols, Nrows: nrows, Cellsize: 1000}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func different(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) != math.IsNaN(b)
	}
	return math.Abs(a-b) > 1e-10
}

func testSetup(t *testing.T, id, nrows, ncols int) SetupConfig {
	dir := t.TempDir()
	return SetupConfig{
		ID:        id,
		Header:    testHeader(nrows, ncols),
		EndRow:    -1,
		OutputDir: filepath.Join(dir, "out"),
		AuditDir:  filepath.Join(dir, "csv"),
	}
}
