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
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// AuditLog appends one CSV line per cycle record of every flushed data row
// to a per-setup file. The file and its header line are created on first use.
type AuditLog struct {
	path    string
	vars    Variables
	created bool
}

// NewAuditLog returns an AuditLog writing to path.
func NewAuditLog(path string, vars Variables) *AuditLog {
	return &AuditLog{path: path, vars: vars}
}

// Path returns the location of the log file.
func (a *AuditLog) Path() string { return a.path }

// WriteRow appends the records of r. No-data rows are skipped.
func (a *AuditLog) WriteRow(r *RowResult) error {
	if r.NoData || len(r.Columns) == 0 {
		return nil
	}
	flag := os.O_APPEND | os.O_WRONLY
	if !a.created {
		flag = os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	}
	f, err := os.OpenFile(a.path, flag, 0644)
	if err != nil {
		return fmt.Errorf("gridcollect: opening audit log: %w", err)
	}
	w := csv.NewWriter(f)
	if !a.created {
		w.Write(append([]string{"cycle_id", "row", "col", "crop_label", "year"}, a.vars.Names()...))
	}
	line := make([]string, 5+len(a.vars))
	for _, c := range r.Columns {
		for _, rec := range c.Records {
			line[0] = strconv.Itoa(rec.CycleID)
			line[1] = strconv.Itoa(r.Row)
			line[2] = strconv.Itoa(c.Col)
			line[3] = rec.Crop
			line[4] = strconv.Itoa(rec.Year)
			for i, v := range a.vars {
				line[5+i] = v.Format(rec.Values[i])
			}
			w.Write(line)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("gridcollect: writing audit log %s: %w", a.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("gridcollect: closing audit log %s: %w", a.path, err)
	}
	a.created = true
	return nil
}
