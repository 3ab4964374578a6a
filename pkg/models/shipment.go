package models

import (
	"time"

	"github.com/google/uuid"
)

// ShipmentStatus is the lifecycle status of a shipment. The order is
// monotonic non-decreasing except for cancellation, which is reachable from
// any status.
type ShipmentStatus string

const (
	StatusDraft     ShipmentStatus = "draft"
	StatusBooked    ShipmentStatus = "booked"
	StatusInTransit ShipmentStatus = "in_transit"
	StatusArrived   ShipmentStatus = "arrived"
	StatusDelivered ShipmentStatus = "delivered"
	StatusCancelled ShipmentStatus = "cancelled"
)

// String returns the string representation of a ShipmentStatus.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle status.
func (s ShipmentStatus) IsValid() bool {
	return s.Order() > 0 || s == StatusCancelled
}

// Order returns the numeric position of a status in the lifecycle.
// Cancelled is outside the linear order and returns 0.
func (s ShipmentStatus) Order() int {
	switch s {
	case StatusDraft:
		return 1
	case StatusBooked:
		return 2
	case StatusInTransit:
		return 3
	case StatusArrived:
		return 4
	case StatusDelivered:
		return 5
	default:
		return 0
	}
}

// CanAdvanceTo reports whether a shipment in status s may move to next.
// Advancement must be strictly forward; cancellation is allowed from any
// non-cancelled status; no transition leaves cancelled.
func (s ShipmentStatus) CanAdvanceTo(next ShipmentStatus) bool {
	if s == StatusCancelled {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return next.Order() > s.Order()
}

// Shipment is the mutable aggregate messages are linked to. It holds at most
// one authoritative value per identifier field, and enrichment fields that
// are only ever filled, never overwritten, by the linking process.
// Shipments are created exclusively by the external carrier-confirmation
// process; the linking engine only attaches messages to existing ones.
type Shipment struct {
	ID               uuid.UUID
	BookingNumber    *string
	BLNumber         *string
	ContainerNumbers []string
	Status           ShipmentStatus
	VesselName       *string
	VoyageNumber     *string
	PortOfLoading    *string
	PortOfDischarge  *string
	ETD              *time.Time
	ETA              *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IdentifierSet builds the shipment's own identifier set, used by the
// backfill engine to search for matching messages.
func (s *Shipment) IdentifierSet() IdentifierSet {
	var set IdentifierSet
	if s.BookingNumber != nil && *s.BookingNumber != "" {
		set.Add(Identifier{Type: IdentifierBooking, Value: *s.BookingNumber, Confidence: 1})
	}
	if s.BLNumber != nil && *s.BLNumber != "" {
		set.Add(Identifier{Type: IdentifierBL, Value: *s.BLNumber, Confidence: 1})
	}
	for _, cn := range s.ContainerNumbers {
		if cn != "" {
			set.Add(Identifier{Type: IdentifierContainer, Value: cn, Confidence: 1})
		}
	}
	return set
}

// HasContainer returns true if the shipment already carries the given
// container number.
func (s *Shipment) HasContainer(value string) bool {
	for _, cn := range s.ContainerNumbers {
		if cn == value {
			return true
		}
	}
	return false
}
