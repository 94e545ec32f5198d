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
	"os"
)

// Provisioner makes sure an output directory exists.
type Provisioner interface {
	Provision(dir string) error
}

// DirProvisioner creates directories on the local file system.
type DirProvisioner struct{}

// Provision creates dir and its parents if they don't exist.
func (DirProvisioner) Provision(dir string) error {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("gridcollect: %s exists and is not a directory", dir)
		}
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("gridcollect: couldn't create directory: %w", err)
	}
	return nil
}

// ProvisionFunc adapts a function to the Provisioner interface.
type ProvisionFunc func(dir string) error

// Provision calls f(dir).
func (f ProvisionFunc) Provision(dir string) error { return f(dir) }
