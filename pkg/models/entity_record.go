package models

import (
	"time"

	"github.com/google/uuid"
)

// EntitySource indicates where an entity was extracted from.
type EntitySource string

const (
	EntitySourceEmail    EntitySource = "email"
	EntitySourceDocument EntitySource = "document"
)

// Entity types produced by upstream extraction. Identifier kinds reuse the
// IdentifierType constants; ancillary kinds cover enrichment fields.
const (
	EntityVesselName      = "vessel_name"
	EntityVoyageNumber    = "voyage_number"
	EntityPortOfLoading   = "port_of_loading"
	EntityPortOfDischarge = "port_of_discharge"
	EntityETD             = "etd"
	EntityETA             = "eta"
)

// EntityRecord is a typed, confidence-scored entity extracted from a message
// by the upstream extraction service. Records are immutable once written.
type EntityRecord struct {
	ID              uuid.UUID
	MessageID       uuid.UUID
	EntityType      string
	Value           string
	NormalizedValue *string
	Confidence      float64
	Source          EntitySource
	CreatedAt       time.Time
}

// EffectiveValue returns the normalized value when present, else the raw value.
func (r *EntityRecord) EffectiveValue() string {
	if r.NormalizedValue != nil && *r.NormalizedValue != "" {
		return *r.NormalizedValue
	}
	return r.Value
}

// IsIdentifier returns true if the record's entity type is a shipment
// identifier kind rather than an ancillary field.
func (r *EntityRecord) IsIdentifier() bool {
	return IdentifierType(r.EntityType).IsValid()
}
