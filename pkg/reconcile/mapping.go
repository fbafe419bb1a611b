package reconcile

import (
	"time"

	"github.com/David-Botos/crdc-reconcile/pkg/identifier"
	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// Mapping is the LEA to county relation: the distinct (district key, county)
// pairs of every LEA that resolved to a geocode row
type Mapping struct {
	Entries    []model.CountyMapping
	Unmatched  []model.LEARecord     // non-empty id without a geocode row
	EmptyIDs   []model.LEARecord     // id blank or all zeros
	NoDistrict []model.LEARecord     // matched, but the id carries no 5-digit district code
	Duplicates []model.GeocodeRecord // geocode rows shadowed by an earlier row with the same key
	Matched    int
}

// BuildCountyMapping resolves every LEA against the geocode table and keeps the
// distinct (district key, county, county_fip) triples, in first-seen order
func BuildCountyMapping(leas []model.LEARecord, geocodes []model.GeocodeRecord) *Mapping {
	idx := identifier.NewGeocodeIndex(geocodes)
	m := &Mapping{Duplicates: idx.Duplicates()}

	seen := make(map[model.CountyMapping]struct{})
	for _, lea := range leas {
		if identifier.NormalizeLEAID(lea.Identifier) == "" {
			m.EmptyIDs = append(m.EmptyIDs, lea)
			continue
		}

		geo, ok := idx.Lookup(lea.Identifier)
		if !ok {
			m.Unmatched = append(m.Unmatched, lea)
			continue
		}
		m.Matched++

		key, ok := identifier.LEADistrictKey(lea.Identifier)
		if !ok {
			m.NoDistrict = append(m.NoDistrict, lea)
			continue
		}

		entry := model.CountyMapping{
			Key:    key,
			County: model.CountyKey{County: geo.CountyName, CountyFIP: geo.CountyFIP},
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		m.Entries = append(m.Entries, entry)
	}
	return m
}

// Counties returns the distinct counties of the mapping in first-seen order
func (m *Mapping) Counties() []model.CountyKey {
	seen := make(map[model.CountyKey]struct{})
	var out []model.CountyKey
	for _, e := range m.Entries {
		if _, ok := seen[e.County]; ok {
			continue
		}
		seen[e.County] = struct{}{}
		out = append(out, e.County)
	}
	return out
}

// FilterOperations reports the LEA and geocode rows that did not reach the mapping
func (m *Mapping) FilterOperations(runID, leaTable, geocodeTable string) []model.FilterOperation {
	now := time.Now()
	var ops []model.FilterOperation

	lea := func(rec model.LEARecord, reason string) model.FilterOperation {
		return model.FilterOperation{
			RunID:         runID,
			TableName:     leaTable,
			ColumnName:    "identifier",
			OriginalValue: rec.Identifier,
			RowIdentifier: rec.Identifier,
			Operation:     model.OperationExclude,
			Reason:        reason,
			RecordedAt:    now,
		}
	}

	for _, rec := range m.EmptyIDs {
		ops = append(ops, lea(rec, model.ReasonEmptyIdentifier))
	}
	for _, rec := range m.Unmatched {
		ops = append(ops, lea(rec, model.ReasonUnmatchedGeocode))
	}
	for _, rec := range m.NoDistrict {
		ops = append(ops, lea(rec, model.ReasonMalformedDistrictKey))
	}
	for _, geo := range m.Duplicates {
		ops = append(ops, model.FilterOperation{
			RunID:         runID,
			TableName:     geocodeTable,
			ColumnName:    "identifier",
			OriginalValue: geo.Identifier,
			RowIdentifier: geo.Identifier,
			Operation:     model.OperationFirstWins,
			Reason:        model.ReasonDuplicateGeocode,
			RecordedAt:    now,
		})
	}
	return ops
}
