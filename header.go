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
	"io"
	"os"
	"strconv"
	"strings"
)

// Header is the 6-line header of an ESRI ASCII grid.
type Header struct {
	Ncols, Nrows int
	Xllcorner    float64
	Yllcorner    float64
	Cellsize     float64
}

// String renders the header, including the trailing newline.
func (h Header) String() string {
	return fmt.Sprintf("ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\ncellsize %s\nNODATA_value %d\n",
		h.Ncols, h.Nrows,
		strconv.FormatFloat(h.Xllcorner, 'f', -1, 64),
		strconv.FormatFloat(h.Yllcorner, 'f', -1, 64),
		strconv.FormatFloat(h.Cellsize, 'f', -1, 64),
		int(NoData))
}

// Rows returns the header of the sub-grid that holds only rows first through
// last (inclusive, counted from the top). The lower-left corner is moved so
// that the rows keep their position.
func (h Header) Rows(first, last int) Header {
	o := h
	o.Nrows = last - first + 1
	o.Yllcorner = h.Yllcorner + float64(h.Nrows-1-last)*h.Cellsize
	return o
}

func (h Header) check() error {
	if h.Ncols <= 0 || h.Nrows <= 0 {
		return fmt.Errorf("gridcollect: grid header needs ncols>0 and nrows>0, got %dx%d", h.Nrows, h.Ncols)
	}
	if !(h.Cellsize > 0) {
		return fmt.Errorf("gridcollect: grid header needs cellsize>0, got %g", h.Cellsize)
	}
	return nil
}

// readHeader reads the first 6 lines of an ASCII grid. The remaining rows
// can be read from the returned scanner.
func readHeader(r io.Reader) (Header, *bufio.Scanner, error) {
	var h Header
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for i := 0; i < 6; i++ {
		if !s.Scan() {
			if err := s.Err(); err != nil {
				return h, nil, err
			}
			return h, nil, fmt.Errorf("gridcollect: grid header has %d lines, needs 6", i)
		}
		f := strings.Fields(s.Text())
		if len(f) < 2 {
			return h, nil, fmt.Errorf("gridcollect: invalid grid header line %q", s.Text())
		}
		v, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return h, nil, fmt.Errorf("gridcollect: grid header %s: %v", f[0], err)
		}
		switch strings.ToLower(f[0]) {
		case "ncols":
			h.Ncols = int(v)
		case "nrows":
			h.Nrows = int(v)
		case "xllcorner", "xllcenter":
			h.Xllcorner = v
		case "yllcorner", "yllcenter":
			h.Yllcorner = v
		case "cellsize":
			h.Cellsize = v
		case "nodata_value":
		default:
			return h, nil, fmt.Errorf("gridcollect: unknown grid header field %q", f[0])
		}
	}
	return h, s, nil
}

// ReadHeader reads the header of the ASCII grid file at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("gridcollect: opening grid header: %w", err)
	}
	defer f.Close()
	h, _, err := readHeader(f)
	if err != nil {
		return h, fmt.Errorf("gridcollect: reading %s: %w", path, err)
	}
	return h, nil
}

// ReadMask reads an ASCII grid and returns, for every row, the number of
// cells that hold data. Those are the cells workers are expected to
// report results for.
func ReadMask(path string) (Header, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("gridcollect: opening mask: %w", err)
	}
	defer f.Close()
	h, s, err := readHeader(f)
	if err != nil {
		return h, nil, fmt.Errorf("gridcollect: reading mask %s: %w", path, err)
	}
	counts := make([]int, 0, h.Nrows)
	for s.Scan() {
		f := strings.Fields(s.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) != h.Ncols {
			return h, nil, fmt.Errorf("gridcollect: mask %s row %d has %d columns, needs %d", path, len(counts), len(f), h.Ncols)
		}
		n := 0
		for _, tok := range f {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return h, nil, fmt.Errorf("gridcollect: mask %s row %d: %v", path, len(counts), err)
			}
			if v != NoData {
				n++
			}
		}
		counts = append(counts, n)
	}
	if err := s.Err(); err != nil {
		return h, nil, err
	}
	if len(counts) != h.Nrows {
		return h, nil, fmt.Errorf("gridcollect: mask %s has %d rows, needs %d", path, len(counts), h.Nrows)
	}
	return h, counts, nil
}

// CheckGrid verifies that the ASCII grid at path is complete: that it has a
// valid header followed by exactly nrows rows of ncols numbers each.
func CheckGrid(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	h, s, err := readHeader(f)
	if err != nil {
		return h, fmt.Errorf("gridcollect: %s: %w", path, err)
	}
	if err := h.check(); err != nil {
		return h, fmt.Errorf("gridcollect: %s: %w", path, err)
	}
	rows := 0
	for s.Scan() {
		f := strings.Fields(s.Text())
		if len(f) != h.Ncols {
			return h, fmt.Errorf("gridcollect: %s: row %d has %d columns, needs %d", path, rows, len(f), h.Ncols)
		}
		for _, tok := range f {
			if _, err := strconv.ParseFloat(tok, 64); err != nil {
				return h, fmt.Errorf("gridcollect: %s: row %d: %v", path, rows, err)
			}
		}
		rows++
	}
	if err := s.Err(); err != nil {
		return h, err
	}
	if rows != h.Nrows {
		return h, fmt.Errorf("gridcollect: %s has %d rows, header says %d", path, rows, h.Nrows)
	}
	return h, nil
}
