/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package jitter

import (
	"fmt"
	"math"
	"slices"

	"github.com/Knetic/govaluate"
)

// CheckHelp is a help message used by flags in main
const CheckHelp = `Expression must evaluate to true for the run to pass, for example 'max < 200 && stddev < 20'.
evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  min, max, mean (interval deviation from period, in us)
  variance (in us^2)
  stddev (in us)
  min_pct, max_pct (min and max relative to period, in %)
  total_error_pct (total deviation relative to expected duration, in %)
  period_us (requested period, in us)
  rate_hz (requested wakeup rate)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1`

var checkVariables = []string{
	"min",
	"max",
	"mean",
	"variance",
	"stddev",
	"min_pct",
	"max_pct",
	"total_error_pct",
	"period_us",
	"rate_hz",
}

var checkFunctions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: want number, got %T", args[0])
		}
		return math.Abs(val), nil
	},
}

// Check is a boolean expression evaluated against Stats
type Check struct {
	Expr string
	expr *govaluate.EvaluableExpression
}

// NewCheck parses expression and makes sure it only references supported variables
func NewCheck(exprStr string) (*Check, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, checkFunctions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !slices.Contains(checkVariables, v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return &Check{Expr: exprStr, expr: expr}, nil
}

// Evaluate tells if stats satisfy the expression
func (c *Check) Evaluate(s *Stats) (bool, error) {
	res, err := c.expr.Evaluate(s.Parameters())
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", c.Expr, err)
	}
	ok, isBool := res.(bool)
	if !isBool {
		return false, fmt.Errorf("evaluating %q: want boolean result, got %v", c.Expr, res)
	}
	return ok, nil
}

// Parameters returns values of all variables available to Check
func (s *Stats) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"min":             s.MinUS,
		"max":             s.MaxUS,
		"mean":            s.MeanUS,
		"variance":        s.VarianceUS2,
		"stddev":          s.StddevUS,
		"min_pct":         s.MinPct,
		"max_pct":         s.MaxPct,
		"total_error_pct": s.TotalErrorPct,
		"period_us":       s.Period.Microseconds(),
		"rate_hz":         s.RateHz(),
	}
}
