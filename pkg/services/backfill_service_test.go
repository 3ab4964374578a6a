package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/metrics"
	"github.com/freightdesk/linkage-engine/pkg/models"
)

func newBackfillService(t *testing.T, f *linkFixture) BackfillService {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.NewNop()
	return NewBackfillService(f.cfg.Linking, BackfillServiceDeps{
		Messages:    f.messages,
		Entities:    f.entities,
		Shipments:   f.shipments,
		Links:       f.links,
		Extractor:   NewIdentifierExtractor(),
		Authorities: f.resolver,
		Matcher:     NewShipmentMatcher(f.shipments, logger),
		Confidence:  NewConfidenceCalculator(f.cfg),
		Linker:      f.svc,
		Auditor:     NewAuditor(f.audit, m, logger),
		Metrics:     m,
	}, logger)
}

func TestLinkRelatedMessages_ResolvesPendingWithFixedScore(t *testing.T) {
	f := newLinkFixture(t, testConfig(t))
	backfill := newBackfillService(t, f)

	// The document arrived months before the shipment existed and was
	// flagged as awaiting it; the anticipated match skips rescoring.
	msg := f.addMessage(&models.MessageMetadata{
		Authority:   models.AuthorityDirectCarrier,
		PendingLink: true,
		ReceivedAt:  time.Now().Add(-90 * 24 * time.Hour),
	})
	f.entities.add(record(msg.ID, "booking_number", "ABC123456", 0.95))

	shipment := f.addShipment(t, "ABC123456", time.Now())

	counts, err := backfill.LinkRelatedMessages(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Linked)
	assert.Equal(t, 0, counts.Errors)

	link, err := f.links.GetByMessageID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, f.cfg.Linking.BackfillPendingScore, link.ConfidenceScore)
	assert.Equal(t, models.LinkSourceBackfill, link.Source)

	stored, err := f.messages.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.PendingLink)
}

func TestLinkRelatedMessages_RunsNormalFlow(t *testing.T) {
	f := newLinkFixture(t, testConfig(t))
	backfill := newBackfillService(t, f)

	msg := f.addMessage(&models.MessageMetadata{
		Authority:      models.AuthorityDirectCarrier,
		DocumentType:   "booking_confirmation",
		SenderCategory: "carrier",
	})
	f.entities.add(record(msg.ID, "booking_number", "ABC123456", 0.95))

	shipment := f.addShipment(t, "ABC123456", time.Now())

	counts, err := backfill.LinkRelatedMessages(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Linked)

	link, err := f.links.GetByMessageID(context.Background(), msg.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, models.LinkSourceBackfill, link.Source)
	assert.GreaterOrEqual(t, link.ConfidenceScore, f.cfg.Linking.AutoLinkThreshold)
}

func TestLinkRelatedMessages_NoSuggestionsFromBackfill(t *testing.T) {
	f := newLinkFixture(t, testConfig(t))
	backfill := newBackfillService(t, f)

	msg := f.addMessage(&models.MessageMetadata{
		Authority:  models.AuthorityThirdParty,
		ReceivedAt: time.Now(),
	})
	f.entities.add(record(msg.ID, "container_number", "MSCU1204875", 0.8))

	created := time.Now().Add(-20 * 24 * time.Hour)
	shipment := f.addShipment(t, "", created, "MSCU1204875")

	counts, err := backfill.LinkRelatedMessages(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Linked)
	assert.Equal(t, 0, counts.Suggested)
	assert.Equal(t, 0, f.suggestions.count(), "review queues are a realtime concern")
}

func TestLinkRelatedMessages_Idempotent(t *testing.T) {
	f := newLinkFixture(t, testConfig(t))
	backfill := newBackfillService(t, f)

	msg := f.addMessage(&models.MessageMetadata{
		Authority:      models.AuthorityDirectCarrier,
		DocumentType:   "booking_confirmation",
		SenderCategory: "carrier",
	})
	f.entities.add(record(msg.ID, "booking_number", "ABC123456", 0.95))
	shipment := f.addShipment(t, "ABC123456", time.Now())

	_, err := backfill.LinkRelatedMessages(context.Background(), shipment.ID)
	require.NoError(t, err)
	counts, err := backfill.LinkRelatedMessages(context.Background(), shipment.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Linked, "second run sees the existing link")
	assert.Equal(t, 1, f.links.count())
}

func TestBackfillAll(t *testing.T) {
	f := newLinkFixture(t, testConfig(t))
	backfill := newBackfillService(t, f)

	f.addShipment(t, "ABC123456", time.Now())
	f.addShipment(t, "DEF987654", time.Now())

	for _, booking := range []string{"ABC123456", "DEF987654"} {
		msg := f.addMessage(&models.MessageMetadata{
			Authority:      models.AuthorityDirectCarrier,
			DocumentType:   "booking_confirmation",
			SenderCategory: "carrier",
		})
		f.entities.add(record(msg.ID, "booking_number", booking, 0.95))
	}

	counts, err := backfill.BackfillAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Linked)
	assert.Equal(t, 0, counts.Errors)
	assert.Equal(t, 2, f.links.count())
}

// repairSetup builds a thread whose original points at shipment A while the
// reply is linked to shipment B.
func repairSetup(t *testing.T, f *linkFixture) (expected, wrong *models.Shipment, reply *models.MessageMetadata) {
	t.Helper()
	expected = f.addShipment(t, "ABC123456", time.Now().Add(-time.Hour))
	wrong = f.addShipment(t, "", time.Now(), "MSCU1204875")

	original := f.addMessage(&models.MessageMetadata{
		ThreadID:       "thread-1",
		Authority:      models.AuthorityDirectCarrier,
		SenderCategory: "carrier",
		ReceivedAt:     time.Now().Add(-time.Hour),
	})
	f.entities.add(record(original.ID, "booking_number", "ABC123456", 0.95))

	reply = f.addMessage(&models.MessageMetadata{
		ThreadID:       "thread-1",
		IsReply:        true,
		Authority:      models.AuthorityDirectCarrier,
		SenderCategory: "carrier",
	})
	f.entities.add(record(reply.ID, "container_number", "MSCU1204875", 0.9))

	stale := &models.Link{
		ID:              uuid.New(),
		MessageID:       reply.ID,
		ShipmentID:      wrong.ID,
		IdentifierType:  models.IdentifierContainer,
		IdentifierValue: "MSCU1204875",
		ConfidenceScore: 80,
		Source:          models.LinkSourceRealtime,
		LinkedAt:        time.Now(),
	}
	require.NoError(t, f.links.Upsert(context.Background(), stale))
	return expected, wrong, reply
}

func TestRepairCrossLinks_DryRunOnlyReports(t *testing.T) {
	f := newLinkFixture(t, testConfig(t))
	backfill := newBackfillService(t, f)
	expected, wrong, reply := repairSetup(t, f)

	report, err := backfill.RepairCrossLinks(context.Background(), true, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Mismatched)
	assert.Equal(t, 0, report.Repaired)
	require.Len(t, report.Items, 1)
	assert.Equal(t, reply.ID, report.Items[0].MessageID)
	assert.Equal(t, wrong.ID, report.Items[0].LinkedShipmentID)
	assert.Equal(t, expected.ID, report.Items[0].ExpectedShipmentID)
	assert.False(t, report.Items[0].Repaired)

	link, err := f.links.GetByMessageID(context.Background(), reply.ID)
	require.NoError(t, err)
	assert.Equal(t, wrong.ID, link.ShipmentID, "dry run must not touch links")
}

func TestRepairCrossLinks_RelinksToAuthority(t *testing.T) {
	f := newLinkFixture(t, testConfig(t))
	backfill := newBackfillService(t, f)
	expected, _, reply := repairSetup(t, f)

	report, err := backfill.RepairCrossLinks(context.Background(), false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Mismatched)
	assert.Equal(t, 1, report.Repaired)

	link, err := f.links.GetByMessageID(context.Background(), reply.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, expected.ID, link.ShipmentID)
	assert.Equal(t, models.IdentifierBooking, link.IdentifierType)

	ops := f.audit.operations()
	assert.Contains(t, ops, models.AuditLinkDeleted)
	assert.Contains(t, ops, models.AuditCrossLinkRepaired)
}

func TestRepairCrossLinks_RepairsAllPagesWhileRewriting(t *testing.T) {
	cfg := testConfig(t)
	// One link per page, so any repair that rewrites rows mid-run would
	// shift later pages under an offset-based walk.
	cfg.Linking.BatchSize = 1
	f := newLinkFixture(t, cfg)
	backfill := newBackfillService(t, f)

	wrong := f.addShipment(t, "", time.Now(), "MSCU1204875")
	bookings := []string{"ABC123456", "DEF987654", "GHI123789"}
	replies := make([]*models.MessageMetadata, 0, len(bookings))
	for i, booking := range bookings {
		f.addShipment(t, booking, time.Now().Add(-time.Hour))
		threadID := fmt.Sprintf("thread-%d", i+1)

		original := f.addMessage(&models.MessageMetadata{
			ThreadID:       threadID,
			Authority:      models.AuthorityDirectCarrier,
			SenderCategory: "carrier",
			ReceivedAt:     time.Now().Add(-time.Hour),
		})
		f.entities.add(record(original.ID, "booking_number", booking, 0.95))

		reply := f.addMessage(&models.MessageMetadata{
			ThreadID:       threadID,
			IsReply:        true,
			Authority:      models.AuthorityDirectCarrier,
			SenderCategory: "carrier",
		})
		replies = append(replies, reply)
		require.NoError(t, f.links.Upsert(context.Background(), &models.Link{
			ID:              uuid.New(),
			MessageID:       reply.ID,
			ShipmentID:      wrong.ID,
			IdentifierType:  models.IdentifierContainer,
			IdentifierValue: "MSCU1204875",
			ConfidenceScore: 80,
			Source:          models.LinkSourceRealtime,
			LinkedAt:        time.Now().Add(time.Duration(i) * time.Minute),
		}))
	}

	capped, err := backfill.RepairCrossLinks(context.Background(), true, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, capped.Examined, "limit caps the examined links")

	report, err := backfill.RepairCrossLinks(context.Background(), false, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 3, report.Mismatched)
	assert.Equal(t, 3, report.Repaired)

	for _, reply := range replies {
		link, err := f.links.GetByMessageID(context.Background(), reply.ID)
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.NotEqual(t, wrong.ID, link.ShipmentID)
	}
}

func TestRepairCrossLinks_ConsistentLinksUntouched(t *testing.T) {
	f := newLinkFixture(t, testConfig(t))
	backfill := newBackfillService(t, f)

	shipment := f.addShipment(t, "ABC123456", time.Now().Add(-time.Hour))
	original := f.addMessage(&models.MessageMetadata{
		ThreadID:   "thread-1",
		Authority:  models.AuthorityDirectCarrier,
		ReceivedAt: time.Now().Add(-time.Hour),
	})
	f.entities.add(record(original.ID, "booking_number", "ABC123456", 0.95))

	reply := f.addMessage(&models.MessageMetadata{
		ThreadID:  "thread-1",
		IsReply:   true,
		Authority: models.AuthorityDirectCarrier,
	})
	link := &models.Link{
		ID:              uuid.New(),
		MessageID:       reply.ID,
		ShipmentID:      shipment.ID,
		IdentifierType:  models.IdentifierBooking,
		IdentifierValue: "ABC123456",
		ConfidenceScore: 100,
		Source:          models.LinkSourceRealtime,
		LinkedAt:        time.Now(),
	}
	require.NoError(t, f.links.Upsert(context.Background(), link))

	report, err := backfill.RepairCrossLinks(context.Background(), false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 0, report.Mismatched)
	assert.Equal(t, 0, report.Repaired)
}
