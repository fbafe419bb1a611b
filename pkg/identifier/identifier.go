// Package identifier reconciles the two LEA identifier conventions found in the
// CRDC tables and recovers district codes from composite demographic identifiers.
//
// The LEA characteristics table stores NCES identifiers zero-padded to seven
// characters ("0100002") while the geocode table stores the numeric form
// (100002). Both are compared only after leading zeros are stripped.
package identifier

import (
	"strings"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// NormalizeLEAID returns the canonical join key for a zero-padded LEA identifier.
// An identifier that is blank or all zeros normalizes to "".
func NormalizeLEAID(raw string) string {
	return strings.TrimLeft(strings.TrimSpace(raw), "0")
}

// NormalizeGeocodeID returns the canonical join key for a geocode identifier.
// Numeric exports may render the id as "100002.0"; the integral suffix is dropped.
func NormalizeGeocodeID(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '.'); i >= 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	return strings.TrimLeft(s, "0")
}

// Match reports whether an LEA identifier and a geocode identifier refer to the
// same agency. Empty normalized keys never match.
func Match(leaID, geocodeID string) bool {
	lea := NormalizeLEAID(leaID)
	if lea == "" {
		return false
	}
	return lea == NormalizeGeocodeID(geocodeID)
}

// GeocodeIndex resolves LEA identifiers to geocode rows by normalized key
type GeocodeIndex struct {
	byKey      map[string]model.GeocodeRecord
	duplicates []model.GeocodeRecord
	empty      int
}

// NewGeocodeIndex indexes geocode rows. When two rows share a normalized key the
// first one wins and the rest are kept as duplicates for diagnostics.
func NewGeocodeIndex(rows []model.GeocodeRecord) *GeocodeIndex {
	idx := &GeocodeIndex{byKey: make(map[string]model.GeocodeRecord, len(rows))}
	for _, row := range rows {
		key := NormalizeGeocodeID(row.Identifier)
		if key == "" {
			idx.empty++
			continue
		}
		if _, exists := idx.byKey[key]; exists {
			idx.duplicates = append(idx.duplicates, row)
			continue
		}
		idx.byKey[key] = row
	}
	return idx
}

// Lookup returns the geocode row paired with an LEA identifier.
// The boolean is false when the identifier is empty or has no geocode row.
func (idx *GeocodeIndex) Lookup(leaID string) (model.GeocodeRecord, bool) {
	key := NormalizeLEAID(leaID)
	if key == "" {
		return model.GeocodeRecord{}, false
	}
	row, ok := idx.byKey[key]
	return row, ok
}

// Len returns the number of distinct keys in the index
func (idx *GeocodeIndex) Len() int {
	return len(idx.byKey)
}

// Duplicates returns geocode rows shadowed by an earlier row with the same key
func (idx *GeocodeIndex) Duplicates() []model.GeocodeRecord {
	return idx.duplicates
}

// EmptyKeys returns the number of geocode rows whose identifier normalized to ""
func (idx *GeocodeIndex) EmptyKeys() int {
	return idx.empty
}
