package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightdesk/linkage-engine/pkg/models"
)

func record(msgID uuid.UUID, entityType, value string, confidence float64) *models.EntityRecord {
	return &models.EntityRecord{
		ID:         uuid.New(),
		MessageID:  msgID,
		EntityType: entityType,
		Value:      value,
		Confidence: confidence,
		Source:     models.EntitySourceEmail,
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		typ   models.IdentifierType
		value string
		want  string
	}{
		{"uppercases and trims", models.IdentifierBooking, "  abc123456 ", "ABC123456"},
		{"strips internal spaces", models.IdentifierBL, "MAEU 1234 5678", "MAEU12345678"},
		{"container strips hyphens", models.IdentifierContainer, "mscu-120 4875", "MSCU1204875"},
		{"container rejects bad shape", models.IdentifierContainer, "MSCU12048", ""},
		{"container rejects bad category", models.IdentifierContainer, "MSCA1204875", ""},
		{"empty value", models.IdentifierReference, "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIdentifier(tt.typ, tt.value))
		})
	}
}

func TestBuildIdentifierSet_GroupsAndNormalizes(t *testing.T) {
	msgID := uuid.New()
	extractor := NewIdentifierExtractor()

	set := extractor.BuildIdentifierSet([]*models.EntityRecord{
		record(msgID, "booking_number", "abc123456", 0.9),
		record(msgID, "bl_number", "maeu 1234 5678", 0.8),
		record(msgID, "container_number", "MSCU-1204875", 0.85),
		record(msgID, "vessel_name", "MSC OSCAR", 0.95),
	})

	require.Len(t, set.BookingNumbers, 1)
	assert.Equal(t, "ABC123456", set.BookingNumbers[0].Value)
	require.Len(t, set.BLNumbers, 1)
	assert.Equal(t, "MAEU12345678", set.BLNumbers[0].Value)
	require.Len(t, set.ContainerNumbers, 1)
	assert.Equal(t, "MSCU1204875", set.ContainerNumbers[0].Value)
	assert.Empty(t, set.ReferenceNumbers)
}

func TestBuildIdentifierSet_DedupesKeepingHighestConfidence(t *testing.T) {
	msgID := uuid.New()
	extractor := NewIdentifierExtractor()

	set := extractor.BuildIdentifierSet([]*models.EntityRecord{
		record(msgID, "booking_number", "ABC123456", 0.7),
		record(msgID, "booking_number", "abc 123456", 0.95),
		record(msgID, "booking_number", "ABC123456", 0.5),
	})

	require.Len(t, set.BookingNumbers, 1)
	assert.Equal(t, "ABC123456", set.BookingNumbers[0].Value)
	assert.Equal(t, 0.95, set.BookingNumbers[0].Confidence)
}

func TestBuildIdentifierSet_DropsInvalidContainers(t *testing.T) {
	msgID := uuid.New()
	extractor := NewIdentifierExtractor()

	set := extractor.BuildIdentifierSet([]*models.EntityRecord{
		record(msgID, "container_number", "NOTACONTAINER", 0.9),
		record(msgID, "container_number", "MSCU1204875", 0.9),
	})

	require.Len(t, set.ContainerNumbers, 1)
	assert.Equal(t, "MSCU1204875", set.ContainerNumbers[0].Value)
}

func TestBuildIdentifierSet_PrefersNormalizedValue(t *testing.T) {
	msgID := uuid.New()
	rec := record(msgID, "booking_number", "raw value", 0.9)
	normalized := "ABC123456"
	rec.NormalizedValue = &normalized

	set := NewIdentifierExtractor().BuildIdentifierSet([]*models.EntityRecord{rec})

	require.Len(t, set.BookingNumbers, 1)
	assert.Equal(t, "ABC123456", set.BookingNumbers[0].Value)
}

func TestBuildEnrichment(t *testing.T) {
	msgID := uuid.New()
	extractor := NewIdentifierExtractor()

	enr := extractor.BuildEnrichment([]*models.EntityRecord{
		record(msgID, "vessel_name", " MSC Oscar ", 0.9),
		record(msgID, "vessel_name", "Wrong Vessel", 0.4),
		record(msgID, "voyage_number", "FA432W", 0.8),
		record(msgID, "port_of_loading", "CNSHA", 0.8),
		record(msgID, "eta", "2026-03-15", 0.7),
		record(msgID, "etd", "not a date", 0.7),
		record(msgID, "booking_number", "ABC123456", 0.9),
	})

	require.NotNil(t, enr.VesselName)
	assert.Equal(t, "MSC Oscar", *enr.VesselName)
	require.NotNil(t, enr.VoyageNumber)
	assert.Equal(t, "FA432W", *enr.VoyageNumber)
	require.NotNil(t, enr.PortOfLoading)
	assert.Equal(t, "CNSHA", *enr.PortOfLoading)
	assert.Nil(t, enr.PortOfDischarge)
	require.NotNil(t, enr.ETA)
	assert.Equal(t, "2026-03-15", enr.ETA.Format("2006-01-02"))
	assert.Nil(t, enr.ETD)
}
