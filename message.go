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
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Message types.
const (
	TypeResult    = "result"
	TypeFinish    = "finish"
	TypeAbsentRow = "absent-row"
)

// Message is one inbound message from a worker, as decoded from JSON.
type Message struct {
	Type     string      `json:"type"`
	CustomID *CustomID   `json:"customId,omitempty"`
	Data     []CycleData `json:"data,omitempty"`
}

// CustomID locates a result in a setup's grid. Fields are pointers so that
// missing fields can be told apart from zero values.
type CustomID struct {
	SetupID *int `json:"setup_id"`
	Row     *int `json:"row"`
	Col     *int `json:"col"`
}

// CycleData holds the outcome of one simulated cycle for a cell.
type CycleData struct {
	CycleID   *int               `json:"cycle_id"`
	Year      *int               `json:"year"`
	Crop      string             `json:"crop_label"`
	RunFailed bool               `json:"runFailed"`
	Error     string             `json:"errors,omitempty"`
	Values    map[string]float64 `json:"values"`
}

// UnmarshalJSON decodes d, reading null values as missing.
func (d *CycleData) UnmarshalJSON(b []byte) error {
	type plain CycleData
	var aux struct {
		plain
		Values map[string]*float64 `json:"values"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*d = CycleData(aux.plain)
	d.Values = nil
	if aux.Values != nil {
		d.Values = make(map[string]float64, len(aux.Values))
		for k, v := range aux.Values {
			if v == nil {
				d.Values[k] = math.NaN()
			} else {
				d.Values[k] = *v
			}
		}
	}
	return nil
}

// CycleRecord is a normalized CycleData: its values are indexed like the
// Variables of the Collector, and missing values are NaN.
type CycleRecord struct {
	CycleID int
	Year    int
	Crop    string
	Values  []float64
}

// Contribution is the normalized content of one result message for one cell.
type Contribution struct {
	SetupID, Row, Col int

	// Records are the usable cycle records. It is empty if the
	// run for the cell failed.
	Records []CycleRecord

	// Failures holds the reasons given for failed runs.
	Failures []string
}

// NoData reports whether the contribution carries no usable records.
func (c *Contribution) NoData() bool { return len(c.Records) == 0 }

// MalformedError reports a message that lacks required fields.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "gridcollect: malformed message: " + e.Reason
}

func malformed(format string, args ...interface{}) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// Normalize converts a result message into a Contribution. Records whose
// run failed are dropped and their reasons kept in Failures. Values of
// unknown variables are ignored. An error is returned for messages that are
// not results or that lack required fields.
func (vs Variables) Normalize(m *Message) (*Contribution, error) {
	if m == nil {
		return nil, malformed("empty message")
	}
	if m.Type != TypeResult {
		return nil, malformed("message type %q is not %q", m.Type, TypeResult)
	}
	id := m.CustomID
	switch {
	case id == nil:
		return nil, malformed("missing customId")
	case id.SetupID == nil:
		return nil, malformed("missing customId.setup_id")
	case id.Row == nil:
		return nil, malformed("missing customId.row")
	case id.Col == nil:
		return nil, malformed("missing customId.col")
	case *id.Row < 0 || *id.Col < 0:
		return nil, malformed("negative cell index row=%d col=%d", *id.Row, *id.Col)
	}
	c := &Contribution{SetupID: *id.SetupID, Row: *id.Row, Col: *id.Col}
	for i, d := range m.Data {
		if d.RunFailed {
			reason := strings.TrimSpace(d.Error)
			if reason == "" {
				reason = "no reason given"
			}
			c.Failures = append(c.Failures, reason)
			continue
		}
		if d.CycleID == nil {
			return nil, malformed("data[%d]: missing cycle_id", i)
		}
		if d.Year == nil {
			return nil, malformed("data[%d]: missing year", i)
		}
		r := CycleRecord{
			CycleID: *d.CycleID,
			Year:    *d.Year,
			Crop:    d.Crop,
			Values:  make([]float64, len(vs)),
		}
		for j, v := range vs {
			x, ok := d.Values[v.Name]
			if !ok || v.Expr != "" || isNoData(x) {
				x = math.NaN()
			}
			r.Values[j] = x
		}
		if err := vs.derive(r.Values); err != nil {
			return nil, malformed("data[%d]: %v", i, err)
		}
		c.Records = append(c.Records, r)
	}
	return c, nil
}

// SanitizeCrop removes the characters from a crop label that are not
// allowed in output file names.
func SanitizeCrop(crop string) string {
	return strings.NewReplacer("/", "", "\\", "", " ", "").Replace(crop)
}
