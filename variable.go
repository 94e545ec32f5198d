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
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// Kind is the numeric kind of an output variable.
type Kind int

// Variable kinds.
const (
	Float Kind = iota
	Int
)

// ParseKind converts "int" or "float" into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "float", "float64":
		return Float, nil
	case "int", "integer":
		return Int, nil
	default:
		return Float, fmt.Errorf("gridcollect: invalid variable kind %q", s)
	}
}

func (k Kind) String() string {
	if k == Int {
		return "int"
	}
	return "float"
}

// Variable describes one output variable.
type Variable struct {
	// Name is the key of the variable in inbound result values and the
	// variable part of the output file names.
	Name string

	Kind Kind

	// Digits is the number of decimal places float variables are rounded to.
	Digits int

	// Expr optionally defines the variable in terms of other variables,
	// e.g. "[Yield-last] / 1000". Variables with an expression are computed
	// for each cycle record after its raw values have been read.
	Expr string

	expr *govaluate.EvaluableExpression
}

// Format renders v for an output grid or audit line.
func (v *Variable) Format(x float64) string {
	if isNoData(x) {
		return "-9999"
	}
	if v.Kind == Int {
		return strconv.FormatInt(int64(x), 10)
	}
	return strconv.FormatFloat(x, 'f', v.Digits, 64)
}

// Variables is the fixed set of variables tracked by a Collector. The
// position of a variable in the set is its index in CycleRecord.Values.
type Variables []*Variable

// DefaultVariables returns the output variables of the crop model
// runs this program was first written for.
func DefaultVariables() Variables {
	return Variables{
		{Name: "Globrad-sum", Kind: Float, Digits: 1},
		{Name: "Tavg", Kind: Float, Digits: 1},
		{Name: "Precip-sum", Kind: Int},
		{Name: "LAI-max", Kind: Float, Digits: 1},
		{Name: "Yield-last", Kind: Float, Digits: 1},
		{Name: "GPP-sum", Kind: Float, Digits: 1},
		{Name: "NPP-sum", Kind: Float, Digits: 1},
		{Name: "NEP-sum", Kind: Int},
		{Name: "Ra-sum", Kind: Float, Digits: 1},
		{Name: "Rh-sum", Kind: Float, Digits: 1},
		{Name: "G-iso", Kind: Float, Digits: 1},
		{Name: "G-mono", Kind: Float, Digits: 1},
		{Name: "Cycle-length", Kind: Int},
	}
}

// Init checks the variable set and compiles any expressions. It must be
// called before the set is used; NewCollector does so.
func (vs Variables) Init() error {
	if len(vs) == 0 {
		return fmt.Errorf("gridcollect: no output variables specified")
	}
	names := make(map[string]bool, len(vs))
	for _, v := range vs {
		if v.Name == "" {
			return fmt.Errorf("gridcollect: output variable with empty name")
		}
		if strings.ContainsAny(v.Name, `/\ `) {
			return fmt.Errorf("gridcollect: output variable name %q contains a path separator or space", v.Name)
		}
		if names[v.Name] {
			return fmt.Errorf("gridcollect: output variable %q specified more than once", v.Name)
		}
		if v.Digits < 0 {
			return fmt.Errorf("gridcollect: output variable %q: negative number of digits", v.Name)
		}
		names[v.Name] = true
	}
	for _, v := range vs {
		if v.Expr == "" {
			continue
		}
		e, err := govaluate.NewEvaluableExpressionWithFunctions(v.Expr, exprFuncs)
		if err != nil {
			return fmt.Errorf("gridcollect: output variable %q: %v", v.Name, err)
		}
		for _, name := range e.Vars() {
			if !names[name] {
				return fmt.Errorf("gridcollect: output variable %q refers to unknown variable %q", v.Name, name)
			}
			if vs[vs.Index(name)].Expr != "" {
				return fmt.Errorf("gridcollect: output variable %q refers to derived variable %q", v.Name, name)
			}
		}
		v.expr = e
	}
	return nil
}

// Index returns the position of the named variable, or -1.
func (vs Variables) Index(name string) int {
	for i, v := range vs {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the variable names in order.
func (vs Variables) Names() []string {
	o := make([]string, len(vs))
	for i, v := range vs {
		o[i] = v.Name
	}
	return o
}

var exprFuncs = map[string]govaluate.ExpressionFunction{
	"exp": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("gridcollect: got %d arguments for function 'exp', but needs 1", len(arg))
		}
		return math.Exp(arg[0].(float64)), nil
	},
	"log": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("gridcollect: got %d arguments for function 'log', but needs 1", len(arg))
		}
		return math.Log(arg[0].(float64)), nil
	},
}

// derive fills in the derived variables of vals. A derived value is missing
// if any of its inputs is.
func (vs Variables) derive(vals []float64) error {
	for i, v := range vs {
		if v.expr == nil {
			continue
		}
		params := make(map[string]interface{})
		missing := false
		for _, name := range v.expr.Vars() {
			x := vals[vs.Index(name)]
			if isNoData(x) {
				missing = true
				break
			}
			params[name] = x
		}
		if missing {
			vals[i] = math.NaN()
			continue
		}
		r, err := v.expr.Evaluate(params)
		if err != nil {
			return fmt.Errorf("gridcollect: evaluating %q: %v", v.Name, err)
		}
		f, ok := r.(float64)
		if !ok {
			return fmt.Errorf("gridcollect: variable %q evaluated to %T, not a number", v.Name, r)
		}
		vals[i] = f
	}
	return nil
}
