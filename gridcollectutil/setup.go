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

package gridcollectutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/gridcollect"
)

// SetupFile is the contents of a setup file.
type SetupFile struct {
	Setup    []SetupEntry
	Variable []VariableEntry
}

// SetupEntry describes one setup in a setup file.
type SetupEntry struct {
	ID int

	// The grid can be described by the header fields, read from the
	// header of the ASCII grid in HeaderFile, or both, in which case
	// fields that are set override the file.
	Ncols, Nrows         int
	Xllcorner, Yllcorner float64
	Cellsize             float64
	HeaderFile           string

	// MaskFile is an optional ASCII grid with the same extent as the setup.
	// Results are only expected for its cells that hold data.
	MaskFile string

	StartRow int
	EndRow   *int

	OutputDir, AuditDir string
}

// VariableEntry describes one output variable in a setup file.
type VariableEntry struct {
	Name   string
	Kind   string
	Digits int
	Expr   string
}

// ReadSetupFile reads and decodes the setup file at path.
func ReadSetupFile(path string) (*SetupFile, error) {
	f := new(SetupFile)
	if _, err := toml.DecodeFile(path, f); err != nil {
		return nil, fmt.Errorf("gridcollect: reading setup file: %v", err)
	}
	if len(f.Setup) == 0 {
		return nil, fmt.Errorf("gridcollect: setup file %s doesn't specify any setups", path)
	}
	return f, nil
}

// Variables returns the variables the file specifies, or the default
// variables if it specifies none.
func (f *SetupFile) Variables() (gridcollect.Variables, error) {
	if len(f.Variable) == 0 {
		return gridcollect.DefaultVariables(), nil
	}
	vs := make(gridcollect.Variables, len(f.Variable))
	for i, v := range f.Variable {
		k, err := gridcollect.ParseKind(v.Kind)
		if err != nil {
			return nil, fmt.Errorf("gridcollect: variable %s: %v", v.Name, err)
		}
		vs[i] = &gridcollect.Variable{Name: v.Name, Kind: k, Digits: v.Digits, Expr: v.Expr}
	}
	return vs, nil
}

// Setups returns the configurations of the setups in the file. Setups
// without their own directories write into a subdirectory of outputDir and
// auditDir named after their ID; if auditDir is empty they don't keep an
// audit log.
func (f *SetupFile) Setups(outputDir, auditDir string) ([]gridcollect.SetupConfig, error) {
	o := make([]gridcollect.SetupConfig, len(f.Setup))
	for i, e := range f.Setup {
		c, err := e.config(outputDir, auditDir)
		if err != nil {
			return nil, err
		}
		o[i] = c
	}
	return o, nil
}

func (e *SetupEntry) config(outputDir, auditDir string) (gridcollect.SetupConfig, error) {
	c := gridcollect.SetupConfig{
		ID:        e.ID,
		StartRow:  e.StartRow,
		EndRow:    -1,
		OutputDir: os.ExpandEnv(e.OutputDir),
		AuditDir:  os.ExpandEnv(e.AuditDir),
	}
	if e.EndRow != nil {
		c.EndRow = *e.EndRow
	}
	id := strconv.Itoa(e.ID)
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(outputDir, id)
	}
	if c.AuditDir == "" && auditDir != "" {
		c.AuditDir = filepath.Join(auditDir, id)
	}

	var (
		err  error
		mask gridcollect.Header
	)
	h := &c.Header
	if e.HeaderFile != "" {
		if *h, err = gridcollect.ReadHeader(os.ExpandEnv(e.HeaderFile)); err != nil {
			return c, fmt.Errorf("gridcollect: setup %d: %v", e.ID, err)
		}
	}
	if e.MaskFile != "" {
		if mask, c.ExpectedCells, err = gridcollect.ReadMask(os.ExpandEnv(e.MaskFile)); err != nil {
			return c, fmt.Errorf("gridcollect: setup %d: %v", e.ID, err)
		}
		if e.HeaderFile == "" {
			*h = mask
		}
	}
	if e.Ncols != 0 {
		h.Ncols = e.Ncols
	}
	if e.Nrows != 0 {
		h.Nrows = e.Nrows
	}
	if e.Xllcorner != 0 {
		h.Xllcorner = e.Xllcorner
	}
	if e.Yllcorner != 0 {
		h.Yllcorner = e.Yllcorner
	}
	if e.Cellsize != 0 {
		h.Cellsize = e.Cellsize
	}
	if e.MaskFile != "" && (mask.Nrows != h.Nrows || mask.Ncols != h.Ncols) {
		return c, fmt.Errorf("gridcollect: setup %d: mask is %dx%d but the grid is %dx%d",
			e.ID, mask.Nrows, mask.Ncols, h.Nrows, h.Ncols)
	}
	return c, nil
}
