package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyLinked   = errors.New("message already linked")
	ErrInvalidStatus   = errors.New("invalid shipment status")
	ErrShipmentMissing = errors.New("shipment does not exist")
)
