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

package ledger

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	old, err := Open(path, "old-run", "1.1.0", "a1")
	if err != nil {
		t.Fatal(err)
	}
	if err := old.RowFlushed(1, 0, false); err != nil {
		t.Fatal(err)
	}
	old.Close()

	id := NewRunID()
	l, err := Open(path, id, "1.2.0", "b2")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if l.RunID() != id {
		t.Errorf("run ID = %s", l.RunID())
	}
	for _, r := range []struct {
		setup, row int
		noData     bool
	}{{1, 0, true}, {1, 1, false}, {1, 2, true}, {2, 5, false}, {1, 1, false}} {
		if err := l.RowFlushed(r.setup, r.row, r.noData); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.SetupCompleted(1, []string{"out/a.asc", "out/b.asc"}); err != nil {
		t.Fatal(err)
	}

	s, err := l.Status("")
	if err != nil {
		t.Fatal(err)
	}
	if s.RunID != id || s.Version != "1.2.0" || s.Config != "b2" || s.Started.IsZero() {
		t.Errorf("run = %s %s %s %v", s.RunID, s.Version, s.Config, s.Started)
	}
	want := []SetupProgress{
		{SetupID: 1, Rows: 3, NoDataRows: 2, LastRow: 2, Complete: true, Files: []string{"out/a.asc", "out/b.asc"}},
		{SetupID: 2, Rows: 1, LastRow: 5},
	}
	if !reflect.DeepEqual(s.Setups, want) {
		t.Errorf("setups = %+v, want %+v", s.Setups, want)
	}

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()
	s, err = ro.Status("old-run")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Setups) != 1 || s.Setups[0].Rows != 1 {
		t.Errorf("old run = %+v", s.Setups)
	}
	if _, err := ro.Status("missing"); err == nil {
		t.Error("expected an error for an unknown run")
	}
}
