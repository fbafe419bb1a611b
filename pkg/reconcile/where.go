package reconcile

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// Where is a compiled boolean predicate over county aggregate rows. Variables
// are the output column names; pct_poverty_5_17 is nil when undefined. Like a
// SQL comparison against NULL, an expression that fails on an undefined
// percentage does not match the row.
type Where struct {
	program    *vm.Program
	expression string
}

// CompileWhere compiles expression. An empty expression matches every row.
func CompileWhere(expression string) (*Where, error) {
	if expression == "" {
		return &Where{}, nil
	}
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid where expression %q: %w", expression, err)
	}
	return &Where{program: program, expression: expression}, nil
}

// Match reports whether row satisfies the predicate
func (w *Where) Match(row model.CountyAggregate) (bool, error) {
	if w == nil || w.program == nil {
		return true, nil
	}
	out, err := expr.Run(w.program, whereEnv(row))
	if err != nil {
		if !row.PctPoverty5to17.Valid {
			return false, nil
		}
		return false, fmt.Errorf("where expression %q: %w", w.expression, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Filter keeps the rows that satisfy the predicate, preserving order
func (w *Where) Filter(rows []model.CountyAggregate) ([]model.CountyAggregate, error) {
	if w == nil || w.program == nil {
		return rows, nil
	}
	out := make([]model.CountyAggregate, 0, len(rows))
	for _, row := range rows {
		ok, err := w.Match(row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func whereEnv(row model.CountyAggregate) map[string]any {
	var pct any
	if row.PctPoverty5to17.Valid {
		pct = row.PctPoverty5to17.Decimal.InexactFloat64()
	}
	return map[string]any{
		"county":           row.County,
		"county_fip":       row.CountyFIP,
		"total_population": row.TotalPopulation,
		"total_pop_5_17":   row.TotalPop5to17,
		"total_pov_5_17":   row.TotalPov5to17,
		"pct_poverty_5_17": pct,
		"district_rows":    row.DistrictRows,
	}
}
