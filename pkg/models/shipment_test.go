package models

import "testing"

func TestShipmentStatus_Order(t *testing.T) {
	ordered := []ShipmentStatus{StatusDraft, StatusBooked, StatusInTransit, StatusArrived, StatusDelivered}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Order() <= ordered[i-1].Order() {
			t.Errorf("%s.Order() = %d, want > %s.Order() = %d",
				ordered[i], ordered[i].Order(), ordered[i-1], ordered[i-1].Order())
		}
	}
	if StatusCancelled.Order() != 0 {
		t.Errorf("cancelled should be outside the linear order, got %d", StatusCancelled.Order())
	}
}

func TestShipmentStatus_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		name string
		from ShipmentStatus
		to   ShipmentStatus
		want bool
	}{
		{"forward advance", StatusBooked, StatusInTransit, true},
		{"skip ahead", StatusDraft, StatusArrived, true},
		{"same status", StatusInTransit, StatusInTransit, false},
		{"downgrade", StatusArrived, StatusBooked, false},
		{"cancel from booked", StatusBooked, StatusCancelled, true},
		{"cancel from delivered", StatusDelivered, StatusCancelled, true},
		{"nothing leaves cancelled", StatusCancelled, StatusDraft, false},
		{"cancel twice", StatusCancelled, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
				t.Errorf("%s.CanAdvanceTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestShipment_IdentifierSet(t *testing.T) {
	booking := "BK123"
	bl := "HLCU999"
	s := &Shipment{
		BookingNumber:    &booking,
		BLNumber:         &bl,
		ContainerNumbers: []string{"MSCU1234567", ""},
	}

	set := s.IdentifierSet()
	if len(set.BookingNumbers) != 1 || set.BookingNumbers[0].Value != "BK123" {
		t.Errorf("booking numbers = %v", set.BookingNumbers)
	}
	if len(set.BLNumbers) != 1 || set.BLNumbers[0].Value != "HLCU999" {
		t.Errorf("bl numbers = %v", set.BLNumbers)
	}
	if len(set.ContainerNumbers) != 1 {
		t.Errorf("empty container values must be skipped, got %v", set.ContainerNumbers)
	}

	empty := &Shipment{}
	if got := empty.IdentifierSet(); !got.IsEmpty() {
		t.Errorf("empty shipment should yield empty set, got %+v", got)
	}
}
