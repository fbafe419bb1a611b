package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/David-Botos/crdc-reconcile/pkg/identifier"
	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// Coverage summarises how many LEAs resolved to a geocode row
type Coverage struct {
	Total                int
	Matched              int
	Unmatched            int
	EmptyIdentifiers     int
	DuplicateGeocodeKeys int
	GeocodeRows          int
	Percent              decimal.NullDecimal // matched / total, two decimals
}

// Lookup pairs every LEA with its geocode attributes. Unmatched LEAs are kept
// with nil county fields; the output follows the LEA input order.
func Lookup(leas []model.LEARecord, geocodes []model.GeocodeRecord) ([]model.LEALookup, Coverage) {
	idx := identifier.NewGeocodeIndex(geocodes)
	cov := Coverage{
		Total:                len(leas),
		DuplicateGeocodeKeys: len(idx.Duplicates()),
		GeocodeRows:          len(geocodes),
	}

	out := make([]model.LEALookup, len(leas))
	for i, lea := range leas {
		row := model.LEALookup{LEA: lea, NormalizedID: identifier.NormalizeLEAID(lea.Identifier)}
		if row.NormalizedID == "" {
			cov.EmptyIdentifiers++
		}

		if geo, ok := idx.Lookup(lea.Identifier); ok {
			row.Matched = true
			row.StateFIP = stringPtr(geo.StateFIP)
			row.County = stringPtr(geo.CountyName)
			row.CountyFIP = stringPtr(geo.CountyFIP)
			cov.Matched++
		} else {
			cov.Unmatched++
		}
		out[i] = row
	}

	cov.Percent = PctPoverty(int64(cov.Matched), int64(cov.Total))
	return out, cov
}

func stringPtr(s string) *string {
	return &s
}
