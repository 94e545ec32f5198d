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
	"path/filepath"
	"sort"
	"time"

	"github.com/spatialmodel/gridcollect"
	"github.com/spatialmodel/gridcollect/internal/ledger"
	"github.com/spf13/cobra"
)

// check runs the check command.
func (cfg *Cfg) check(cmd *cobra.Command, args []string) error {
	var dirs []string
	if len(args) == 1 {
		dirs = args
	} else {
		setups, _, err := cfg.loadSetups()
		if err != nil {
			return err
		}
		for _, s := range setups {
			dirs = append(dirs, s.OutputDir)
		}
	}
	w := cmd.OutOrStdout()
	var files, bad int
	for _, dir := range dirs {
		paths, err := filepath.Glob(filepath.Join(dir, "*.asc"))
		if err != nil {
			return err
		}
		sort.Strings(paths)
		for _, path := range paths {
			files++
			h, err := gridcollect.CheckGrid(path)
			if err != nil {
				bad++
				fmt.Fprintf(w, "FAIL %v\n", err)
				continue
			}
			cfg.Log.WithField("file", path).Debugf("%d rows, %d columns", h.Nrows, h.Ncols)
		}
	}
	fmt.Fprintf(w, "checked %d grid files, %d incomplete\n", files, bad)
	if bad > 0 {
		return fmt.Errorf("gridcollect: %d incomplete grid files", bad)
	}
	return nil
}

// status runs the status command.
func (cfg *Cfg) status(cmd *cobra.Command) error {
	path := cfg.expand("LedgerFile")
	if path == "" {
		return fmt.Errorf("gridcollect: LedgerFile is not specified")
	}
	l, err := ledger.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer l.Close()
	s, err := l.Status(cfg.GetString("RunID"))
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s (gridcollect v%s, setups %s), started %s\n",
		s.RunID, s.Version, s.Config, s.Started.Local().Format(time.RFC1123))
	for _, p := range s.Setups {
		state := "collecting"
		if p.Complete {
			state = fmt.Sprintf("complete, %d files", len(p.Files))
		}
		fmt.Fprintf(w, "setup %d: %s; %d rows written (%d no-data), last row %d\n",
			p.SetupID, state, p.Rows, p.NoDataRows, p.LastRow)
	}
	return nil
}
