package render

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
	"github.com/David-Botos/crdc-reconcile/pkg/reconcile"
	"github.com/David-Botos/crdc-reconcile/pkg/stats"
)

type countyJSON struct {
	County          string       `json:"county"`
	CountyFIP       string       `json:"county_fip"`
	TotalPopulation int64        `json:"total_population"`
	TotalPop5to17   int64        `json:"total_pop_5_17"`
	TotalPov5to17   int64        `json:"total_pov_5_17"`
	PctPoverty5to17 *json.Number `json:"pct_poverty_5_17"`
}

// CountyStats writes the county poverty result set
func (r *Renderer) CountyStats(rows []model.CountyAggregate) error {
	g := grid{
		headers: []string{"county", "county_fip", "total_population", "total_pop_5_17", "total_pov_5_17", "pct_poverty_5_17"},
		numeric: columns(2, 3, 4, 5),
	}
	docs := make([]countyJSON, 0, len(rows))
	for _, row := range rows {
		g.rows = append(g.rows, []string{
			row.County,
			row.CountyFIP,
			strconv.FormatInt(row.TotalPopulation, 10),
			strconv.FormatInt(row.TotalPop5to17, 10),
			strconv.FormatInt(row.TotalPov5to17, 10),
			r.pct(row.PctPoverty5to17),
		})
		docs = append(docs, countyJSON{
			County:          row.County,
			CountyFIP:       row.CountyFIP,
			TotalPopulation: row.TotalPopulation,
			TotalPop5to17:   row.TotalPop5to17,
			TotalPov5to17:   row.TotalPov5to17,
			PctPoverty5to17: jsonPct(row.PctPoverty5to17),
		})
	}
	g.value = docs
	return r.write(g)
}

type lookupJSON struct {
	State      string  `json:"state"`
	Name       string  `json:"name"`
	Identifier string  `json:"identifier"`
	City       string  `json:"city"`
	Zip        string  `json:"zip"`
	StateFIP   *string `json:"state_fip"`
	County     *string `json:"county"`
	CountyFIP  *string `json:"county_fip"`
}

// Lookups writes one row per LEA with its county, or nulls when unmatched
func (r *Renderer) Lookups(rows []model.LEALookup) error {
	g := grid{
		headers: []string{"state", "name", "identifier", "city", "zip", "state_fip", "county", "county_fip"},
	}
	docs := make([]lookupJSON, 0, len(rows))
	for _, row := range rows {
		lea := row.LEA
		g.rows = append(g.rows, []string{
			lea.State, lea.Name, lea.Identifier, lea.City, lea.Zip,
			r.optional(row.StateFIP), r.optional(row.County), r.optional(row.CountyFIP),
		})
		docs = append(docs, lookupJSON{
			State:      lea.State,
			Name:       lea.Name,
			Identifier: lea.Identifier,
			City:       lea.City,
			Zip:        lea.Zip,
			StateFIP:   row.StateFIP,
			County:     row.County,
			CountyFIP:  row.CountyFIP,
		})
	}
	g.value = docs
	return r.write(g)
}

type coverageJSON struct {
	Total                int          `json:"total"`
	Matched              int          `json:"matched"`
	Unmatched            int          `json:"unmatched"`
	EmptyIdentifiers     int          `json:"empty_identifiers"`
	DuplicateGeocodeKeys int          `json:"duplicate_geocode_keys"`
	GeocodeRows          int          `json:"geocode_rows"`
	Percent              *json.Number `json:"pct_matched"`
}

// Coverage writes the LEA match coverage as metric/value pairs
func (r *Renderer) Coverage(c reconcile.Coverage) error {
	g := grid{
		headers: []string{"metric", "value"},
		numeric: columns(1),
		rows: [][]string{
			{"leas", strconv.Itoa(c.Total)},
			{"matched", strconv.Itoa(c.Matched)},
			{"unmatched", strconv.Itoa(c.Unmatched)},
			{"empty_identifiers", strconv.Itoa(c.EmptyIdentifiers)},
			{"geocode_rows", strconv.Itoa(c.GeocodeRows)},
			{"duplicate_geocode_keys", strconv.Itoa(c.DuplicateGeocodeKeys)},
			{"pct_matched", r.pct(c.Percent)},
		},
		value: coverageJSON{
			Total:                c.Total,
			Matched:              c.Matched,
			Unmatched:            c.Unmatched,
			EmptyIdentifiers:     c.EmptyIdentifiers,
			DuplicateGeocodeKeys: c.DuplicateGeocodeKeys,
			GeocodeRows:          c.GeocodeRows,
			Percent:              jsonPct(c.Percent),
		},
	}
	return r.write(g)
}

// Distribution writes the summary statistics followed by the histogram.
// JSON output is a single document holding both.
func (r *Renderer) Distribution(d stats.Distribution) error {
	if r.format == FormatJSON {
		return r.write(grid{value: d})
	}

	summary := grid{
		headers: []string{"metric", "value"},
		numeric: columns(1),
		rows: [][]string{
			{"n", strconv.Itoa(d.Count)},
			{"null", strconv.Itoa(d.Nulls)},
			{"min", formatFloat(d.Min)},
			{"lq", formatFloat(d.Q1)},
			{"median", formatFloat(d.Median)},
			{"mean", formatFloat(d.Mean)},
			{"uq", formatFloat(d.Q3)},
			{"max", formatFloat(d.Max)},
			{"std_dev", formatFloat(d.StdDev)},
		},
	}
	if err := r.write(summary); err != nil {
		return err
	}

	hist := grid{
		headers: []string{"lower", "upper", "counties"},
		numeric: columns(0, 1, 2),
	}
	for _, b := range d.Bins {
		hist.rows = append(hist.rows, []string{formatFloat(b.Lower), formatFloat(b.Upper), strconv.Itoa(b.Count)})
	}
	return r.write(hist)
}

// Verification writes the discrepancies found by a verification run
func (r *Renderer) Verification(rep *reconcile.VerificationReport) error {
	g := grid{
		headers: []string{"row", "column", "in_process", "pushdown"},
		value:   rep,
	}
	for _, k := range rep.MissingInPushdown {
		g.rows = append(g.rows, []string{k, "", "present", "missing"})
	}
	for _, k := range rep.MissingInProcess {
		g.rows = append(g.rows, []string{k, "", "missing", "present"})
	}
	for _, d := range rep.Discrepancies {
		g.rows = append(g.rows, []string{d.RowKey, d.ColumnName, r.value(d.InProcessValue), r.value(d.PushdownValue)})
	}
	if r.format == FormatTable {
		status := "OK"
		if !rep.OK() {
			status = "DIFFERENCES FOUND"
		}
		if _, err := fmt.Fprintf(r.w, "%s: %s (in-process %d rows, pushdown %d rows, order matches: %t)\n",
			rep.Name, status, rep.InProcessRows, rep.PushdownRows, rep.OrderMatches); err != nil {
			return err
		}
		if len(g.rows) == 0 {
			return nil
		}
	}
	return r.write(g)
}

// Metrics writes run metrics; table and CSV output use the plain-text report
func (r *Renderer) Metrics(m *reconcile.RunMetrics) error {
	if r.format == FormatJSON {
		return r.write(grid{value: m})
	}
	_, err := fmt.Fprint(r.w, m.Report())
	return err
}

func (r *Renderer) pct(d decimal.NullDecimal) string {
	if !d.Valid {
		return r.nullText()
	}
	return d.Decimal.StringFixed(2)
}

func (r *Renderer) value(v interface{}) string {
	if v == nil {
		return r.nullText()
	}
	return fmt.Sprint(v)
}

func jsonPct(d decimal.NullDecimal) *json.Number {
	if !d.Valid {
		return nil
	}
	n := json.Number(d.Decimal.StringFixed(2))
	return &n
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
