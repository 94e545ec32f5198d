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

package hash

import "testing"

type grid struct {
	Ncols, Nrows int
	Cells        []int
}

func TestHash(t *testing.T) {
	a := Hash([]grid{{Ncols: 2, Nrows: 3}, {Ncols: 2, Nrows: 2, Cells: []int{1, 0}}})
	b := Hash([]grid{{Ncols: 2, Nrows: 3}, {Ncols: 2, Nrows: 2, Cells: []int{1, 0}}})
	c := Hash([]grid{{Ncols: 2, Nrows: 3}, {Ncols: 2, Nrows: 2, Cells: []int{0, 1}}})
	if a != b {
		t.Errorf("equal values hash differently: %s != %s", a, b)
	}
	if a == c {
		t.Error("different values hash the same")
	}
	if len(a) != 16 {
		t.Errorf("hash %q has length %d", a, len(a))
	}
}

func TestHashUnencodable(t *testing.T) {
	// gob refuses interface values of unregistered types.
	type withAny struct {
		Name string
		V    interface{}
	}
	a := Hash(withAny{Name: "a", V: grid{Ncols: 1}})
	if a != Hash(withAny{Name: "a", V: grid{Ncols: 1}}) {
		t.Error("hash isn't deterministic")
	}
	if a == Hash(withAny{Name: "a", V: grid{Ncols: 2}}) {
		t.Error("different values hash the same")
	}
}
