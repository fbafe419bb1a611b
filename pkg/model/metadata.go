// pkg/model/metadata.go
package model

// TableMetadata describes one input table and the columns read from it
type TableMetadata struct {
	Schema  string   // Schema name (may be empty)
	Table   string   // Table name
	Columns []Column // Columns selected, in scan order
}

// Column represents a column read from an input table
type Column struct {
	Name     string // Column name as stored in the source
	Required bool   // Whether a load fails when the column is absent
}

// QualifiedName returns schema.table, or just the table when no schema is set
func (tm *TableMetadata) QualifiedName() string {
	if tm.Schema == "" {
		return tm.Table
	}
	return tm.Schema + "." + tm.Table
}

// ColumnNames returns the column names in scan order
func (tm *TableMetadata) ColumnNames() []string {
	names := make([]string, len(tm.Columns))
	for i, col := range tm.Columns {
		names[i] = col.Name
	}
	return names
}

// LEATableMetadata returns the column layout of the LEA characteristics table
func LEATableMetadata(schema, table string) TableMetadata {
	return TableMetadata{
		Schema: schema,
		Table:  table,
		Columns: []Column{
			{Name: "state"},
			{Name: "name"},
			{Name: "identifier", Required: true},
			{Name: "city"},
			{Name: "zip"},
		},
	}
}

// GeocodeTableMetadata returns the column layout of the geocode lookup table
func GeocodeTableMetadata(schema, table string) TableMetadata {
	return TableMetadata{
		Schema: schema,
		Table:  table,
		Columns: []Column{
			{Name: "identifier", Required: true},
			{Name: "state_fip"},
			{Name: "county_name", Required: true},
			{Name: "county_fip", Required: true},
		},
	}
}

// DemographicTableMetadata returns the column layout of the district demographic table
func DemographicTableMetadata(schema, table string) TableMetadata {
	return TableMetadata{
		Schema: schema,
		Table:  table,
		Columns: []Column{
			{Name: "identifier", Required: true},
			{Name: "population", Required: true},
			{Name: "pop_5_17", Required: true},
			{Name: "pop_5_17_poverty", Required: true},
		},
	}
}
