package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

func TestWhere(t *testing.T) {
	rows := []model.CountyAggregate{
		{County: "Quiet County", CountyFIP: "999"},
		{County: "Marshall County", CountyFIP: "095", TotalPop5to17: 6000, PctPoverty5to17: pct("21.67")},
		{County: "Etowah County", CountyFIP: "055", TotalPop5to17: 1000, PctPoverty5to17: pct("0.00")},
	}

	tests := []struct {
		expression string
		want       []string
	}{
		{"", []string{"Quiet County", "Marshall County", "Etowah County"}},
		{"total_pop_5_17 >= 1000", []string{"Marshall County", "Etowah County"}},
		{"pct_poverty_5_17 == nil", []string{"Quiet County"}},
		{`county_fip in ["055", "999"]`, []string{"Quiet County", "Etowah County"}},
		{`county startsWith "Marshall"`, []string{"Marshall County"}},
		{"pct_poverty_5_17 > 10", []string{"Marshall County"}},
		{"pct_poverty_5_17 < 10", []string{"Etowah County"}},
		{"pct_poverty_5_17 == nil || pct_poverty_5_17 > 10", []string{"Quiet County", "Marshall County"}},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			w, err := CompileWhere(tt.expression)
			require.NoError(t, err)

			got, err := w.Filter(rows)
			require.NoError(t, err)

			names := make([]string, len(got))
			for i, row := range got {
				names[i] = row.County
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestCompileWhereRejectsBadSyntax(t *testing.T) {
	_, err := CompileWhere("total_pop_5_17 >")
	assert.Error(t, err)
}

func TestNilWhereMatchesEverything(t *testing.T) {
	var w *Where
	ok, err := w.Match(model.CountyAggregate{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWhereRuntimeErrorOnDefinedRow(t *testing.T) {
	w, err := CompileWhere("county > 10")
	require.NoError(t, err)

	_, err = w.Filter([]model.CountyAggregate{{County: "Marshall County", PctPoverty5to17: pct("21.67")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "county > 10")
}
