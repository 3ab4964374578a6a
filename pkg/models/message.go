package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailAuthority classifies how much weight a sender carries when their
// message claims an identifier.
type EmailAuthority string

const (
	AuthorityDirectCarrier    EmailAuthority = "direct_carrier"
	AuthorityForwardedCarrier EmailAuthority = "forwarded_carrier"
	AuthorityInternal         EmailAuthority = "internal"
	AuthorityThirdParty       EmailAuthority = "third_party"
)

// String returns the string representation of an EmailAuthority.
func (a EmailAuthority) String() string {
	return string(a)
}

// IsValid returns true if the authority class is known.
func (a EmailAuthority) IsValid() bool {
	switch a {
	case AuthorityDirectCarrier, AuthorityForwardedCarrier, AuthorityInternal, AuthorityThirdParty:
		return true
	default:
		return false
	}
}

// MessageMetadata is the linker's view of an ingested email message.
// Classification fields (document type, message type, sender category,
// authority) are produced by external classifiers upstream.
type MessageMetadata struct {
	ID             uuid.UUID
	ThreadID       string
	IsReply        bool
	Sender         string
	TrueSender     string
	Authority      EmailAuthority
	DocumentType   string
	MessageType    string
	SenderCategory string
	// PendingLink marks a message whose extracted identifiers are explicitly
	// awaiting a future shipment (an orphan flagged for backfill).
	PendingLink bool
	ReceivedAt  time.Time
}
