package models

import (
	"time"

	"github.com/google/uuid"
)

// ConflictType classifies a linking conflict.
type ConflictType string

const (
	ConflictMultipleShipments ConflictType = "multiple_shipments"
	ConflictAlreadyLinked     ConflictType = "already_linked"
	ConflictLowConfidence     ConflictType = "low_confidence"
)

// String returns the string representation of a ConflictType.
func (t ConflictType) String() string {
	return string(t)
}

// Conflict records a linking decision that could not be resolved cleanly.
// Conflicts are always recorded, never silently resolved by overwriting data.
type Conflict struct {
	ID              uuid.UUID
	Type            ConflictType
	MessageID       uuid.UUID
	ShipmentIDs     []uuid.UUID
	IdentifierType  IdentifierType
	IdentifierValue string
	Details         string
	CreatedAt       time.Time
}

// Involves returns true if the conflict names the given shipment.
func (c *Conflict) Involves(shipmentID uuid.UUID) bool {
	for _, id := range c.ShipmentIDs {
		if id == shipmentID {
			return true
		}
	}
	return false
}
