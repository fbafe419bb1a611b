package model

// LEARecord is one row of the LEA characteristics table.
// Identifier keeps the source's zero-padding.
type LEARecord struct {
	State      string `db:"state" json:"state"`
	Name       string `db:"name" json:"name"`
	Identifier string `db:"identifier" json:"identifier"`
	City       string `db:"city" json:"city"`
	Zip        string `db:"zip" json:"zip"`
}

// GeocodeRecord is one row of the geocode lookup table.
// Identifier is the unpadded text form of a numeric LEA id.
type GeocodeRecord struct {
	Identifier string `db:"identifier" json:"identifier"`
	StateFIP   string `db:"state_fip" json:"state_fip"`
	CountyName string `db:"county_name" json:"county_name"`
	CountyFIP  string `db:"county_fip" json:"county_fip"`
}

// DistrictRow is a demographic row exactly as read from the source, before validation
type DistrictRow struct {
	Identifier      string `db:"identifier"`
	Population      string `db:"population"`
	Pop5to17        string `db:"pop_5_17"`
	Pop5to17Poverty string `db:"pop_5_17_poverty"`
}

// DistrictKey is the validated district code recovered from a composite identifier
type DistrictKey struct {
	State string // 2-digit state FIPS prefix
	Code  string // 5-digit district code
}

// String returns the key in state+code form
func (k DistrictKey) String() string {
	return k.State + k.Code
}

// DistrictRecord is a demographic row that passed key and count validation
type DistrictRecord struct {
	Key             DistrictKey
	Identifier      string
	Population      Count
	Pop5to17        Count
	Pop5to17Poverty Count
}
