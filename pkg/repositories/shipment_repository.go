package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightdesk/linkage-engine/pkg/database"
	"github.com/freightdesk/linkage-engine/pkg/models"
)

// ShipmentRepository provides data access for shipments. Create exists for
// the external carrier-confirmation process and tests; the linking engine
// itself never creates shipments, it only updates fields on existing ones.
type ShipmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error)
	FindByBookingNumber(ctx context.Context, value string) (*models.Shipment, error)
	FindByBLNumber(ctx context.Context, value string) (*models.Shipment, error)
	FindByContainerNumber(ctx context.Context, value string) ([]*models.Shipment, error)
	Create(ctx context.Context, s *models.Shipment) error
	Update(ctx context.Context, s *models.Shipment) error
	ListPaged(ctx context.Context, limit, offset int) ([]*models.Shipment, error)
}

type shipmentRepository struct {
	db *database.DB
}

// NewShipmentRepository creates a new ShipmentRepository.
func NewShipmentRepository(db *database.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

var _ ShipmentRepository = (*shipmentRepository)(nil)

const shipmentColumns = `id, booking_number, bl_number, container_numbers, status,
	vessel_name, voyage_number, port_of_loading, port_of_discharge, etd, eta,
	created_at, updated_at`

func (r *shipmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	s, err := scanShipment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return s, nil
}

func (r *shipmentRepository) FindByBookingNumber(ctx context.Context, value string) (*models.Shipment, error) {
	return r.findOne(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE booking_number = $1`, value)
}

func (r *shipmentRepository) FindByBLNumber(ctx context.Context, value string) (*models.Shipment, error) {
	return r.findOne(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE bl_number = $1`, value)
}

// FindByContainerNumber can return several shipments: container numbers are
// reused across shipments over time.
func (r *shipmentRepository) FindByContainerNumber(ctx context.Context, value string) ([]*models.Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE $1 = ANY(container_numbers)
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipments by container: %w", err)
	}
	defer rows.Close()

	var shipments []*models.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shipments: %w", err)
	}
	return shipments, nil
}

func (r *shipmentRepository) findOne(ctx context.Context, query, value string) (*models.Shipment, error) {
	row := r.db.QueryRow(ctx, query, value)
	s, err := scanShipment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	return s, nil
}

func (r *shipmentRepository) Create(ctx context.Context, s *models.Shipment) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = models.StatusDraft
	}

	query := `
		INSERT INTO shipments (` + shipmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.BookingNumber, s.BLNumber, s.ContainerNumbers, s.Status,
		s.VesselName, s.VoyageNumber, s.PortOfLoading, s.PortOfDischarge,
		s.ETD, s.ETA, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shipment: %w", err)
	}
	return nil
}

func (r *shipmentRepository) Update(ctx context.Context, s *models.Shipment) error {
	s.UpdatedAt = time.Now()

	query := `
		UPDATE shipments SET
			booking_number = $2, bl_number = $3, container_numbers = $4,
			status = $5, vessel_name = $6, voyage_number = $7,
			port_of_loading = $8, port_of_discharge = $9, etd = $10, eta = $11,
			updated_at = $12
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.BookingNumber, s.BLNumber, s.ContainerNumbers, s.Status,
		s.VesselName, s.VoyageNumber, s.PortOfLoading, s.PortOfDischarge,
		s.ETD, s.ETA, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return nil
}

func (r *shipmentRepository) ListPaged(ctx context.Context, limit, offset int) ([]*models.Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	defer rows.Close()

	var shipments []*models.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shipments: %w", err)
	}
	return shipments, nil
}

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var s models.Shipment
	err := row.Scan(
		&s.ID, &s.BookingNumber, &s.BLNumber, &s.ContainerNumbers, &s.Status,
		&s.VesselName, &s.VoyageNumber, &s.PortOfLoading, &s.PortOfDischarge,
		&s.ETD, &s.ETA, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan shipment: %w", err)
	}
	return &s, nil
}
