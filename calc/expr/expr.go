/*
Copyright © 2020 the xoce authors.
This file is part of xoce.

xoce is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xoce is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xoce.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package expr defines derived variables with arithmetic expressions
// such as "thetao + 273.15" or "sqrt(uo**2 + vo**2)". Expressions are
// evaluated element-wise after broadcasting their variables against
// each other.
package expr

import (
	"fmt"
	"math"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/oceandiag/xoce/array"
	"github.com/oceandiag/xoce/calc"
)

// Functions are available to every expression.
var Functions = map[string]govaluate.ExpressionFunction{
	"exp":  unary("exp", math.Exp),
	"log":  unary("log", math.Log),
	"sqrt": unary("sqrt", math.Sqrt),
	"abs":  unary("abs", math.Abs),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expr: got %d arguments for function 'pow', but needs 2", len(args))
		}
		x, ok1 := args[0].(float64)
		y, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("expr: function 'pow' needs numeric arguments")
		}
		return math.Pow(x, y), nil
	},
}

func unary(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expr: got %d arguments for function '%s', but needs 1", len(args), name)
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("expr: function '%s' needs a numeric argument", name)
		}
		return f(x), nil
	}
}

// Compile returns a formula computing name from expression. The
// variables of the expression become the requirements of the formula.
func Compile(name, expression string) (calc.Formula, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expression, Functions)
	if err != nil {
		return calc.Formula{}, fmt.Errorf("expr: %s: %v", name, err)
	}
	vars := removeDuplicates(e.Vars())
	if len(vars) == 0 {
		return calc.Formula{}, fmt.Errorf("expr: %s: expression %q uses no variables", name, expression)
	}
	for _, v := range vars {
		if v == name {
			return calc.Formula{}, fmt.Errorf("expr: %s: expression refers to itself", name)
		}
	}
	// Check the result type once with placeholder values.
	params := make(map[string]interface{}, len(vars))
	for _, v := range vars {
		params[v] = 1.
	}
	r, err := e.Evaluate(params)
	if err != nil {
		return calc.Formula{}, fmt.Errorf("expr: %s: %v", name, err)
	}
	if _, err := toFloat(r); err != nil {
		return calc.Formula{}, fmt.Errorf("expr: %s: %v", name, err)
	}
	return calc.Formula{
		Name:     name,
		Requires: vars,
		LongName: expression,
		Func: func(in calc.Inputs) (*array.DataArray, error) {
			arrays := make([]*array.DataArray, len(vars))
			for i, v := range vars {
				arrays[i] = in[v]
			}
			params := make(map[string]interface{}, len(vars))
			return array.CombineN(arrays, func(x []float64) float64 {
				for i, v := range vars {
					params[v] = x[i]
				}
				r, err := e.Evaluate(params)
				if err != nil {
					return math.NaN()
				}
				f, err := toFloat(r)
				if err != nil {
					return math.NaN()
				}
				return f
			})
		},
	}, nil
}

// Register compiles every expression in exprs, keyed by variable name,
// and adds the resulting formulas to reg.
func Register(reg *calc.Registry, exprs map[string]string) error {
	names := make([]string, 0, len(exprs))
	for n := range exprs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		f, err := Compile(n, exprs[n])
		if err != nil {
			return err
		}
		if err := reg.Register(f); err != nil {
			return err
		}
	}
	return nil
}

func toFloat(r interface{}) (float64, error) {
	switch v := r.(type) {
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expression result has type %T, not a number", r)
	}
}

// removeDuplicates returns s without repeated strings, keeping the
// first occurrence of each.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]bool)
	for _, v := range s {
		if !seen[v] {
			result = append(result, v)
			seen[v] = true
		}
	}
	return result
}
