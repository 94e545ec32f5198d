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

// Package hash computes fingerprints of configuration values, so that runs
// recorded with different settings can be told apart.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a hex fingerprint of v. Values gob can't encode are
// fingerprinted from a deterministic dump of their contents instead.
func Hash(v interface{}) string {
	h := fnv.New64a()
	if err := gob.NewEncoder(h).Encode(v); err != nil {
		h.Reset()
		dump := spew.ConfigState{
			SortKeys:                true,
			DisableMethods:          true,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
		}
		dump.Fprintf(h, "%#v", v)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
