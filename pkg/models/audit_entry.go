package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditOperation names a linking decision recorded in the audit log.
type AuditOperation string

const (
	AuditLinkCreated         AuditOperation = "link_created"
	AuditLinkUpdated         AuditOperation = "link_updated"
	AuditLinkDeleted         AuditOperation = "link_deleted"
	AuditSuggestionCreated   AuditOperation = "suggestion_created"
	AuditSuggestionConfirmed AuditOperation = "suggestion_confirmed"
	AuditSuggestionRejected  AuditOperation = "suggestion_rejected"
	AuditConflictRecorded    AuditOperation = "conflict_recorded"
	AuditCrossLinkRepaired   AuditOperation = "cross_link_repaired"
	AuditNoAction            AuditOperation = "no_action"
)

// ScoreBreakdown itemizes the components that produced a confidence score.
// Persisted with every audit entry so scoring decisions stay explainable.
type ScoreBreakdown struct {
	Base           int `json:"base"`
	Authority      int `json:"authority"`
	DocumentType   int `json:"document_type"`
	TimeDecay      int `json:"time_decay"`
	MessageType    int `json:"message_type"`
	SenderCategory int `json:"sender_category"`
	Total          int `json:"total"`
}

// AuditEntry is an immutable record of a linking decision. The audit log is
// append-only: nothing in this codebase updates or deletes entries.
type AuditEntry struct {
	ID              uuid.UUID
	MessageID       uuid.UUID
	ShipmentID      *uuid.UUID
	Operation       AuditOperation
	IdentifierType  IdentifierType
	IdentifierValue string
	ConfidenceScore int
	Breakdown       ScoreBreakdown
	Reasoning       string
	CreatedAt       time.Time
}
