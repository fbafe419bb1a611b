// Package source reads the three CRDC input tables (LEA characteristics,
// geocode lookup and district demographics) from a database or a directory of
// CSV exports. Every column is read as text; validation happens downstream.
package source

import (
	"context"
	"fmt"

	"github.com/David-Botos/crdc-reconcile/pkg/cleaner"
	"github.com/David-Botos/crdc-reconcile/pkg/config"
	"github.com/David-Botos/crdc-reconcile/pkg/connector"
	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// TableSource reads the input tables
type TableSource interface {
	LEAs(ctx context.Context) ([]model.LEARecord, error)
	Geocodes(ctx context.Context) ([]model.GeocodeRecord, error)
	Districts(ctx context.Context) ([]model.DistrictRow, error)
}

// Tables describes the three input tables
type Tables struct {
	LEA         model.TableMetadata
	Geocode     model.TableMetadata
	Demographic model.TableMetadata
}

// TablesFromConfig builds the table layouts from configured names
func TablesFromConfig(cfg config.TablesConfig) Tables {
	return Tables{
		LEA:         model.LEATableMetadata(cfg.Schema, cfg.LEATable),
		Geocode:     model.GeocodeTableMetadata(cfg.Schema, cfg.GeocodeTable),
		Demographic: model.DemographicTableMetadata(cfg.Schema, cfg.DemographicTable),
	}
}

// All returns the tables in load order
func (t Tables) All() []model.TableMetadata {
	return []model.TableMetadata{t.LEA, t.Geocode, t.Demographic}
}

// Refs returns the tables as connector references for validation
func (t Tables) Refs() []connector.TableRef {
	all := t.All()
	refs := make([]connector.TableRef, len(all))
	for i, meta := range all {
		refs[i] = connector.TableRef{Schema: meta.Schema, Table: meta.Table}
	}
	return refs
}

// Validate rejects names that cannot be spliced into SQL unquoted
func (t Tables) Validate() error {
	for _, meta := range t.All() {
		if meta.Schema != "" && !cleaner.ValidIdentifier(meta.Schema) {
			return fmt.Errorf("invalid schema name %q", meta.Schema)
		}
		if !cleaner.ValidIdentifier(meta.Table) {
			return fmt.Errorf("invalid table name %q", meta.Table)
		}
		for _, col := range meta.Columns {
			if !cleaner.ValidIdentifier(col.Name) {
				return fmt.Errorf("invalid column name %q in %s", col.Name, meta.QualifiedName())
			}
		}
	}
	return nil
}

// withoutSchema drops schema qualifiers, for backends without schemas
func (t Tables) withoutSchema() Tables {
	t.LEA.Schema = ""
	t.Geocode.Schema = ""
	t.Demographic.Schema = ""
	return t
}
