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
	"math"
	"testing"
)

func TestVariableFormat(t *testing.T) {
	tests := []struct {
		v    Variable
		x    float64
		want string
	}{
		{Variable{Kind: Float, Digits: 1}, 4, "4.0"},
		{Variable{Kind: Float, Digits: 1}, 3.26, "3.3"},
		{Variable{Kind: Float, Digits: 3}, 0.12345, "0.123"},
		{Variable{Kind: Int}, 12.9, "12"},
		{Variable{Kind: Int}, -3.5, "-3"},
		{Variable{Kind: Int}, math.NaN(), "-9999"},
		{Variable{Kind: Float, Digits: 2}, math.NaN(), "-9999"},
		{Variable{Kind: Float, Digits: 2}, NoData, "-9999"},
		{Variable{Kind: Float, Digits: 1}, 0, "0.0"},
	}
	for _, test := range tests {
		if got := test.v.Format(test.x); got != test.want {
			t.Errorf("%v.Format(%g) = %q, want %q", test.v.Kind, test.x, got, test.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	for s, want := range map[string]Kind{"int": Int, "Float": Float, "": Float, "integer": Int} {
		k, err := ParseKind(s)
		if err != nil {
			t.Errorf("%q: %v", s, err)
		}
		if k != want {
			t.Errorf("%q: got %v, want %v", s, k, want)
		}
	}
	if _, err := ParseKind("complex"); err == nil {
		t.Error("expected an error for an invalid kind")
	}
}

func TestVariablesInit(t *testing.T) {
	if err := DefaultVariables().Init(); err != nil {
		t.Fatal(err)
	}
	bad := []Variables{
		{},
		{{Name: ""}},
		{{Name: "a b"}},
		{{Name: "a/b"}},
		{{Name: "a"}, {Name: "a"}},
		{{Name: "a", Digits: -1}},
		{{Name: "a", Expr: "b * 2"}},
		{{Name: "a"}, {Name: "b", Expr: "a *"}},
		{{Name: "a"}, {Name: "b", Expr: "a * 2"}, {Name: "c", Expr: "b * 2"}},
	}
	for i, vs := range bad {
		if err := vs.Init(); err == nil {
			t.Errorf("case %d: expected an error", i)
		}
	}
}

func TestDerivedVariable(t *testing.T) {
	vs := Variables{
		{Name: "Yield-last", Kind: Float, Digits: 1},
		{Name: "Yield-t", Kind: Float, Digits: 2, Expr: "[Yield-last] / 1000"},
	}
	if err := vs.Init(); err != nil {
		t.Fatal(err)
	}
	c, err := vs.Normalize(result(1, 0, 0, 1, 2000, "wheat", map[string]float64{"Yield-last": 5500, "Yield-t": 99}))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Records[0].Values[1]; different(got, 5.5) {
		t.Errorf("derived value = %g, want 5.5", got)
	}

	c, err = vs.Normalize(result(1, 0, 0, 1, 2000, "wheat", map[string]float64{}))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Records[0].Values[1]; !math.IsNaN(got) {
		t.Errorf("derived value with missing input = %g, want NaN", got)
	}
}
