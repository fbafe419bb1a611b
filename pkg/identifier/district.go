package identifier

import (
	"strings"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// The district code sits after the 2-digit state FIPS prefix of both the NCES
// LEA identifier and the composite demographic identifier.
const (
	stateOffset    = 0
	stateWidth     = 2
	districtOffset = 2
	districtWidth  = 5

	// LEAIDWidth is the zero-padded width of an NCES LEA identifier
	LEAIDWidth = 7
)

// KeyScope selects which part of a district key takes part in joins
type KeyScope int

const (
	// ScopeDistrict joins on the 5-digit district code alone
	ScopeDistrict KeyScope = iota
	// ScopeStateDistrict joins on state FIPS plus district code
	ScopeStateDistrict
)

// String returns the configuration name of the scope
func (s KeyScope) String() string {
	switch s {
	case ScopeDistrict:
		return "district"
	case ScopeStateDistrict:
		return "state_district"
	default:
		return "unknown"
	}
}

// ParseKeyScope parses a scope name; unknown names return false
func ParseKeyScope(name string) (KeyScope, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "district":
		return ScopeDistrict, true
	case "state_district", "state-district":
		return ScopeStateDistrict, true
	default:
		return ScopeDistrict, false
	}
}

// JoinKey returns the string used to join demographic rows to the county mapping
func (s KeyScope) JoinKey(k model.DistrictKey) string {
	if s == ScopeStateDistrict {
		return k.String()
	}
	return k.Code
}

// ExtractDistrictKey recovers the district key from a composite identifier.
// It returns false unless the fixed-offset substring is exactly five decimal digits.
func ExtractDistrictKey(composite string) (model.DistrictKey, bool) {
	if len(composite) < districtOffset+districtWidth {
		return model.DistrictKey{}, false
	}

	code := composite[districtOffset : districtOffset+districtWidth]
	if !isDigits(code) {
		return model.DistrictKey{}, false
	}

	state := composite[stateOffset : stateOffset+stateWidth]
	if !isDigits(state) {
		state = ""
	}

	return model.DistrictKey{State: state, Code: code}, true
}

// LEADistrictKey applies the district offset rule to an LEA identifier.
// Identifiers that lost their padding are left-padded to LEAIDWidth first.
func LEADistrictKey(leaID string) (model.DistrictKey, bool) {
	return ExtractDistrictKey(PadLEAID(leaID))
}

// PadLEAID left-pads a trimmed LEA identifier with zeros to LEAIDWidth.
// Longer identifiers are returned trimmed but otherwise unchanged.
func PadLEAID(leaID string) string {
	s := strings.TrimSpace(leaID)
	if len(s) >= LEAIDWidth || s == "" {
		return s
	}
	return strings.Repeat("0", LEAIDWidth-len(s)) + s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
