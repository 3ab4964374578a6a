package models

import (
	"time"

	"github.com/google/uuid"
)

// ThreadAuthority identifies the single message in a conversation thread that
// carries the canonical shipment identifier. Replies and forwards in the
// thread inherit this identifier for matching instead of whatever their
// quoted content happens to contain.
//
// Authorities are correctness data, not a performance cache: they have no
// TTL and must be explicitly invalidated when thread membership or
// extractions change.
type ThreadAuthority struct {
	ThreadID           string
	AuthorityMessageID uuid.UUID
	IdentifierType     IdentifierType
	IdentifierValue    string
	Confidence         float64
	ShipmentID         *uuid.UUID
	ResolvedAt         time.Time
}

// Identifier returns the authority's identifier as a matchable Identifier.
func (a *ThreadAuthority) Identifier() Identifier {
	return Identifier{
		Type:       a.IdentifierType,
		Value:      a.IdentifierValue,
		Confidence: a.Confidence,
		MessageID:  a.AuthorityMessageID,
	}
}
