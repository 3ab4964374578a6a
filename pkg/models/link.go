package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkSource records which process created a link.
type LinkSource string

const (
	LinkSourceRealtime  LinkSource = "realtime"
	LinkSourceBackfill  LinkSource = "backfill"
	LinkSourceManual    LinkSource = "manual"
	LinkSourceMigration LinkSource = "migration"
)

// String returns the string representation of a LinkSource.
func (s LinkSource) String() string {
	return string(s)
}

// IsValid returns true if the source is a known link source.
func (s LinkSource) IsValid() bool {
	switch s {
	case LinkSourceRealtime, LinkSourceBackfill, LinkSourceManual, LinkSourceMigration:
		return true
	default:
		return false
	}
}

// Link is an active association between a message (optionally a specific
// attachment document) and a shipment. At most one active link exists per
// (message, shipment) pair, and a message holds at most one active link.
type Link struct {
	ID              uuid.UUID
	MessageID       uuid.UUID
	ShipmentID      uuid.UUID
	DocumentID      *uuid.UUID
	IdentifierType  IdentifierType
	IdentifierValue string
	ConfidenceScore int
	EmailAuthority  EmailAuthority
	Source          LinkSource
	LinkedAt        time.Time
}

// SuggestionStatus is the review state of a link suggestion.
type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionConfirmed SuggestionStatus = "confirmed"
	SuggestionRejected  SuggestionStatus = "rejected"
)

// Suggestion is a not-yet-confirmed link produced when a match's confidence
// falls in the review band. A message may accumulate pending suggestions for
// several different shipments.
type Suggestion struct {
	ID              uuid.UUID
	MessageID       uuid.UUID
	ShipmentID      uuid.UUID
	IdentifierType  IdentifierType
	IdentifierValue string
	ConfidenceScore int
	Reasoning       string
	Status          SuggestionStatus
	CreatedAt       time.Time
	ReviewedAt      *time.Time
}
