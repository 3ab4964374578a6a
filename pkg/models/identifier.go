// Package models contains domain types for the linkage engine.
package models

import (
	"github.com/google/uuid"
)

// IdentifierType classifies a shipment identifier by kind.
// Kinds are ordered by uniqueness/reliability: a booking number identifies
// exactly one shipment, while container numbers are reused across shipments
// over time and reference numbers are free-form.
type IdentifierType string

const (
	IdentifierBooking   IdentifierType = "booking_number"
	IdentifierBL        IdentifierType = "bl_number"
	IdentifierContainer IdentifierType = "container_number"
	IdentifierReference IdentifierType = "reference_number"
)

// String returns the string representation of an IdentifierType.
func (t IdentifierType) String() string {
	return string(t)
}

// IsValid returns true if the type is a known identifier kind.
func (t IdentifierType) IsValid() bool {
	switch t {
	case IdentifierBooking, IdentifierBL, IdentifierContainer, IdentifierReference:
		return true
	default:
		return false
	}
}

// Priority returns the matching priority of the identifier kind.
// Higher is more authoritative: booking > BL > container > reference.
func (t IdentifierType) Priority() int {
	switch t {
	case IdentifierBooking:
		return 4
	case IdentifierBL:
		return 3
	case IdentifierContainer:
		return 2
	case IdentifierReference:
		return 1
	default:
		return 0
	}
}

// Identifier is a single normalized candidate identifier extracted from a
// message, carrying the extraction confidence of its source entity record.
type Identifier struct {
	Type       IdentifierType
	Value      string
	Confidence float64
	MessageID  uuid.UUID
}

// IdentifierSet groups a message's candidate identifiers by kind.
type IdentifierSet struct {
	BookingNumbers   []Identifier
	BLNumbers        []Identifier
	ContainerNumbers []Identifier
	ReferenceNumbers []Identifier
}

// Add appends an identifier to the bucket for its type. Identifiers with an
// unknown type are ignored.
func (s *IdentifierSet) Add(id Identifier) {
	switch id.Type {
	case IdentifierBooking:
		s.BookingNumbers = append(s.BookingNumbers, id)
	case IdentifierBL:
		s.BLNumbers = append(s.BLNumbers, id)
	case IdentifierContainer:
		s.ContainerNumbers = append(s.ContainerNumbers, id)
	case IdentifierReference:
		s.ReferenceNumbers = append(s.ReferenceNumbers, id)
	}
}

// IsEmpty returns true if the set contains no identifiers of any kind.
func (s *IdentifierSet) IsEmpty() bool {
	return len(s.BookingNumbers) == 0 &&
		len(s.BLNumbers) == 0 &&
		len(s.ContainerNumbers) == 0 &&
		len(s.ReferenceNumbers) == 0
}

// All returns every identifier in the set ordered by descending kind
// priority, then by descending extraction confidence within a kind.
func (s *IdentifierSet) All() []Identifier {
	out := make([]Identifier, 0,
		len(s.BookingNumbers)+len(s.BLNumbers)+len(s.ContainerNumbers)+len(s.ReferenceNumbers))
	for _, bucket := range [][]Identifier{
		s.BookingNumbers, s.BLNumbers, s.ContainerNumbers, s.ReferenceNumbers,
	} {
		out = append(out, sortByConfidence(bucket)...)
	}
	return out
}

// Best returns the highest-priority identifier in the set, ties broken by
// extraction confidence. Returns nil for an empty set.
func (s *IdentifierSet) Best() *Identifier {
	all := s.All()
	if len(all) == 0 {
		return nil
	}
	best := all[0]
	return &best
}

func sortByConfidence(ids []Identifier) []Identifier {
	out := make([]Identifier, len(ids))
	copy(out, ids)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Confidence > out[j-1].Confidence; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
