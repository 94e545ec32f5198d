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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// gridFile is the state of one output grid on disk.
type gridFile struct {
	path string
	rows int // rows written after the header
}

// GridSet owns the output grids of one setup. Rows are appended to the files
// in strictly increasing order, each append opening and closing the file so
// that a file is valid up to its last complete row if the process dies.
type GridSet struct {
	dir    string
	header Header
	vars   Variables

	// first is the row index of the first row of every file.
	first int

	files map[GridKey]*gridFile
	order []GridKey

	// owed counts the no-data rows immediately before the next row
	// that have not been written to any file yet.
	owed int

	Log logrus.FieldLogger
}

// NewGridSet returns a GridSet writing into dir. header is written at the top
// of each file and its Nrows is the number of rows every file has once
// Finish is called; first is the row index of the first file row.
func NewGridSet(dir string, header Header, first int, vars Variables) *GridSet {
	return &GridSet{
		dir:    dir,
		header: header,
		vars:   vars,
		first:  first,
		files:  make(map[GridKey]*gridFile),
		Log:    logrus.StandardLogger(),
	}
}

// FileName returns the name of the file holding the grid with key k:
// <crop>_<variable>_<year>_<cycle>.asc.
func (g *GridSet) FileName(k GridKey) string {
	return fmt.Sprintf("%s_%s_%d_%d.asc", k.Crop, g.vars[k.Variable].Name, k.Year, k.CycleID)
}

// Owed returns the number of no-data rows that have been flushed but not yet
// written to any file.
func (g *GridSet) Owed() int { return g.owed }

// Files returns the paths of all files created so far, in creation order.
func (g *GridSet) Files() []string {
	o := make([]string, len(g.order))
	for i, k := range g.order {
		o[i] = g.files[k].path
	}
	return o
}

// WriteRow writes a completed row. A no-data row is not written anywhere;
// it is owed to the files until the next data row or Finish. A data row is
// appended to the file of each of its grids, creating files as needed and
// writing any no-data rows the file is missing first.
func (g *GridSet) WriteRow(r *RowResult) error {
	if r.NoData {
		g.owed++
		return nil
	}
	idx := r.Row - g.first
	for _, gr := range r.Grids {
		f, err := g.file(gr.Key)
		if err != nil {
			return err
		}
		if idx < f.rows {
			return fmt.Errorf("gridcollect: row %d already written to %s", r.Row, f.path)
		}
		v := g.vars[gr.Key.Variable]
		line := formatRow(gr.Values, v)
		if err := g.appendRows(f, idx-f.rows, line); err != nil {
			return err
		}
	}
	g.owed = 0
	return nil
}

// Finish pads every file created so far with no-data rows until it holds
// header.Nrows rows, and clears the owed count.
func (g *GridSet) Finish() error {
	for _, k := range g.order {
		f := g.files[k]
		if n := g.header.Nrows - f.rows; n > 0 {
			if err := g.appendRows(f, n, ""); err != nil {
				return err
			}
		}
	}
	if g.owed > 0 {
		g.Log.WithFields(logrus.Fields{
			"dir":  g.dir,
			"rows": g.owed,
		}).Debug("wrote trailing no-data rows")
	}
	g.owed = 0
	return nil
}

// file returns the state of the file for k, creating the file and writing
// its header if this is the first time k is seen.
func (g *GridSet) file(k GridKey) (*gridFile, error) {
	if f, ok := g.files[k]; ok {
		return f, nil
	}
	path := filepath.Join(g.dir, g.FileName(k))
	w, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("gridcollect: creating grid file: %w", err)
	}
	if _, err := w.WriteString(g.header.String()); err != nil {
		w.Close()
		return nil, fmt.Errorf("gridcollect: writing header to %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gridcollect: closing %s: %w", path, err)
	}
	f := &gridFile{path: path}
	g.files[k] = f
	g.order = append(g.order, k)
	g.Log.WithField("file", path).Debug("created grid file")
	return f, nil
}

// appendRows appends nodata no-data rows to f, followed by line if it is
// not empty.
func (g *GridSet) appendRows(f *gridFile, nodata int, line string) error {
	w, err := os.OpenFile(f.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("gridcollect: opening grid file: %w", err)
	}
	b := bufio.NewWriter(w)
	if nodata > 0 {
		empty := noDataRow(g.header.Ncols)
		for i := 0; i < nodata; i++ {
			b.WriteString(empty)
		}
	}
	if line != "" {
		b.WriteString(line)
	}
	if err := b.Flush(); err != nil {
		w.Close()
		return fmt.Errorf("gridcollect: appending to %s: %w", f.path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gridcollect: closing %s: %w", f.path, err)
	}
	f.rows += nodata
	if line != "" {
		f.rows++
	}
	return nil
}

func formatRow(vals []float64, v *Variable) string {
	var sb strings.Builder
	for i, x := range vals {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(v.Format(x))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func noDataRow(ncols int) string {
	tok := strconv.Itoa(int(NoData))
	return strings.TrimSuffix(strings.Repeat(tok+" ", ncols), " ") + "\n"
}
