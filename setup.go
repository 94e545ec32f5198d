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
	"fmt"
	"path/filepath"
)

// SetupConfig describes one setup: an independent simulation whose results
// make up their own set of output grids.
type SetupConfig struct {
	ID int

	// Header describes the full grid the setup's cells belong to.
	Header Header

	// StartRow and EndRow restrict collection to a band of rows, both
	// inclusive. EndRow < 0 means the last row of the grid.
	StartRow, EndRow int

	// ExpectedCells optionally gives, per grid row, the number of cells
	// results will arrive for. If it is nil, every row expects Ncols
	// cells. A row that expects no cells is complete without any results.
	ExpectedCells []int

	// OutputDir is where the grid files are written.
	OutputDir string

	// AuditDir is where the CSV audit log is written. No audit log
	// is kept if it is empty.
	AuditDir string
}

// LastRow returns the index of the last row that is collected.
func (s *SetupConfig) LastRow() int {
	if s.EndRow < 0 || s.EndRow >= s.Header.Nrows {
		return s.Header.Nrows - 1
	}
	return s.EndRow
}

func (s *SetupConfig) check() error {
	if err := s.Header.check(); err != nil {
		return fmt.Errorf("setup %d: %v", s.ID, err)
	}
	if s.StartRow < 0 || s.StartRow > s.LastRow() {
		return fmt.Errorf("gridcollect: setup %d: start row %d is outside rows 0-%d", s.ID, s.StartRow, s.LastRow())
	}
	if s.ExpectedCells != nil && len(s.ExpectedCells) != s.Header.Nrows {
		return fmt.Errorf("gridcollect: setup %d: expected cell counts for %d rows, grid has %d",
			s.ID, len(s.ExpectedCells), s.Header.Nrows)
	}
	if s.OutputDir == "" {
		return fmt.Errorf("gridcollect: setup %d: no output directory", s.ID)
	}
	return nil
}

func (s *SetupConfig) expected(row int) int {
	if s.ExpectedCells == nil {
		return s.Header.Ncols
	}
	return s.ExpectedCells[row]
}

// setup is the collection state of one setup. It exists from the first
// message referencing the setup until its last row has been flushed.
type setup struct {
	cfg     SetupConfig
	tracker *RowTracker
	grids   *GridSet
	audit   *AuditLog

	next        int // next row to flush
	provisioned bool
	forced      bool
}

func newSetup(cfg SetupConfig, vars Variables) *setup {
	s := &setup{
		cfg:     cfg,
		tracker: NewRowTracker(cfg.expected),
		grids:   NewGridSet(cfg.OutputDir, cfg.Header.Rows(cfg.StartRow, cfg.LastRow()), cfg.StartRow, vars),
		next:    cfg.StartRow,
	}
	if cfg.AuditDir != "" {
		s.audit = NewAuditLog(filepath.Join(cfg.AuditDir, fmt.Sprintf("setup-%d.csv", cfg.ID)), vars)
	}
	return s
}

func (s *setup) done() bool { return s.next > s.cfg.LastRow() }

func (s *setup) ready() bool {
	return !s.done() && (s.forced || s.tracker.Ready(s.next))
}
