package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/apperrors"
	"github.com/freightdesk/linkage-engine/pkg/config"
	"github.com/freightdesk/linkage-engine/pkg/metrics"
	"github.com/freightdesk/linkage-engine/pkg/models"
	"github.com/freightdesk/linkage-engine/pkg/repositories"
	"github.com/freightdesk/linkage-engine/pkg/workpool"
)

// RepairItem describes one reply whose link disagrees with its thread's
// authoritative identifier.
type RepairItem struct {
	MessageID          uuid.UUID `json:"message_id"`
	ThreadID           string    `json:"thread_id"`
	LinkedShipmentID   uuid.UUID `json:"linked_shipment_id"`
	ExpectedShipmentID uuid.UUID `json:"expected_shipment_id"`
	Repaired           bool      `json:"repaired"`
}

// RepairReport summarizes a cross-link repair run.
type RepairReport struct {
	Examined   int          `json:"examined"`
	Mismatched int          `json:"mismatched"`
	Repaired   int          `json:"repaired"`
	DryRun     bool         `json:"dry_run"`
	Items      []RepairItem `json:"items,omitempty"`
}

// BackfillService links historical messages to shipments after the fact and
// repairs links that contradict their thread authority.
type BackfillService interface {
	// LinkRelatedMessages finds unlinked messages whose extractions carry
	// the shipment's identifiers and runs them through the decision flow.
	// Called when a shipment is created, since its messages typically
	// arrived first.
	LinkRelatedMessages(ctx context.Context, shipmentID uuid.UUID) (BatchCounts, error)
	// BackfillAll sweeps every shipment through LinkRelatedMessages.
	BackfillAll(ctx context.Context) (BatchCounts, error)
	// RepairCrossLinks recomputes thread authorities and corrects reply
	// links that point at the wrong shipment. With dryRun only a report is
	// produced. A limit of 0 examines every reply link.
	RepairCrossLinks(ctx context.Context, dryRun bool, limit int) (*RepairReport, error)
}

type backfillService struct {
	cfg          config.LinkingConfig
	messageRepo  repositories.MessageRepository
	entityRepo   repositories.EntityRepository
	shipmentRepo repositories.ShipmentRepository
	linkRepo     repositories.LinkRepository
	extractor    IdentifierExtractor
	authorities  ThreadAuthorityResolver
	matcher      ShipmentMatcher
	confidence   ConfidenceCalculator
	linker       LinkService
	auditor      Auditor
	metrics      *metrics.Metrics
	pool         *workpool.Pool
	logger       *zap.Logger
}

// BackfillServiceDeps bundles the collaborators of the backfill engine.
type BackfillServiceDeps struct {
	Messages    repositories.MessageRepository
	Entities    repositories.EntityRepository
	Shipments   repositories.ShipmentRepository
	Links       repositories.LinkRepository
	Extractor   IdentifierExtractor
	Authorities ThreadAuthorityResolver
	Matcher     ShipmentMatcher
	Confidence  ConfidenceCalculator
	Linker      LinkService
	Auditor     Auditor
	Metrics     *metrics.Metrics
}

// NewBackfillService creates the backfill and reconciliation engine.
func NewBackfillService(cfg config.LinkingConfig, deps BackfillServiceDeps, logger *zap.Logger) BackfillService {
	return &backfillService{
		cfg:          cfg,
		messageRepo:  deps.Messages,
		entityRepo:   deps.Entities,
		shipmentRepo: deps.Shipments,
		linkRepo:     deps.Links,
		extractor:    deps.Extractor,
		authorities:  deps.Authorities,
		matcher:      deps.Matcher,
		confidence:   deps.Confidence,
		linker:       deps.Linker,
		auditor:      deps.Auditor,
		metrics:      deps.Metrics,
		pool:         workpool.New(cfg.Workers, logger),
		logger:       logger.Named("backfill"),
	}
}

var _ BackfillService = (*backfillService)(nil)

func (s *backfillService) LinkRelatedMessages(ctx context.Context, shipmentID uuid.UUID) (BatchCounts, error) {
	shipment, err := s.shipmentRepo.GetByID(ctx, shipmentID)
	if err != nil {
		return BatchCounts{}, fmt.Errorf("failed to load shipment: %w", err)
	}
	if shipment == nil {
		return BatchCounts{}, apperrors.ErrShipmentMissing
	}

	messageIDs, err := s.candidateMessages(ctx, shipment)
	if err != nil {
		return BatchCounts{}, err
	}

	var counts BatchCounts
	for _, msgID := range messageIDs {
		res, err := s.backfillOne(ctx, msgID, shipment)
		if err != nil {
			counts.Errors++
			s.metrics.BatchItemErrors.Inc()
			s.logger.Warn("backfill item failed",
				zap.String("message_id", msgID.String()),
				zap.String("shipment_id", shipmentID.String()),
				zap.Error(err))
			continue
		}
		counts.add(res)
	}
	return counts, nil
}

// candidateMessages finds distinct messages whose entity records carry any
// of the shipment's identifiers, in stable order.
func (s *backfillService) candidateMessages(ctx context.Context, shipment *models.Shipment) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	idSet := shipment.IdentifierSet()
	for _, id := range idSet.All() {
		records, err := s.entityRepo.FindByTypeAndValue(ctx, id.Type.String(), id.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to search entity records: %w", err)
		}
		for _, rec := range records {
			if !seen[rec.MessageID] {
				seen[rec.MessageID] = true
				ids = append(ids, rec.MessageID)
			}
		}
	}
	return ids, nil
}

// backfillOne links one candidate message. Messages explicitly flagged as
// awaiting a future shipment take the fixed pending-resolution score; the
// rest go through the normal decision flow.
func (s *backfillService) backfillOne(ctx context.Context, messageID uuid.UUID, shipment *models.Shipment) (*LinkResult, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return nil, apperrors.ErrNotFound
	}

	if msg.PendingLink {
		existing, err := s.linkRepo.GetByMessageID(ctx, msg.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing link: %w", err)
		}
		if existing != nil {
			return &LinkResult{MessageID: msg.ID, Outcome: OutcomeAlreadyLinked, ShipmentID: &existing.ShipmentID}, nil
		}
		return s.resolvePending(ctx, msg, shipment)
	}

	return s.linker.BackfillMessage(ctx, msg.ID)
}

// resolvePending links a message that was waiting for exactly this shipment
// to exist. The match was anticipated, so it gets a fixed high score rather
// than a recomputed one.
func (s *backfillService) resolvePending(ctx context.Context, msg *models.MessageMetadata, shipment *models.Shipment) (*LinkResult, error) {
	records, err := s.entityRepo.FindByMessageID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity records: %w", err)
	}
	best := bestShared(s.extractor.BuildIdentifierSet(records), shipment)
	if best == nil {
		return &LinkResult{MessageID: msg.ID, Outcome: OutcomeNoAction, Band: BandNone}, nil
	}

	score := s.cfg.BackfillPendingScore
	link := &models.Link{
		ID:              uuid.New(),
		MessageID:       msg.ID,
		ShipmentID:      shipment.ID,
		IdentifierType:  best.Type,
		IdentifierValue: best.Value,
		ConfidenceScore: score,
		EmailAuthority:  msg.Authority,
		Source:          models.LinkSourceBackfill,
		LinkedAt:        time.Now(),
	}
	if err := s.linkRepo.Upsert(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	if err := s.messageRepo.ClearPendingLink(ctx, msg.ID); err != nil {
		return nil, fmt.Errorf("failed to clear pending link flag: %w", err)
	}
	if msg.ThreadID != "" {
		if err := s.authorities.BindShipment(ctx, msg.ThreadID, shipment.ID); err != nil {
			return nil, err
		}
	}

	s.metrics.Decisions.WithLabelValues(metrics.OutcomeLinked).Inc()
	s.auditor.Record(ctx, &models.AuditEntry{
		MessageID:       msg.ID,
		ShipmentID:      &shipment.ID,
		Operation:       models.AuditLinkCreated,
		IdentifierType:  best.Type,
		IdentifierValue: best.Value,
		ConfidenceScore: score,
		Breakdown:       models.ScoreBreakdown{Base: score, Total: score},
		Reasoning:       fmt.Sprintf("pending document resolved via %s %s", best.Type, best.Value),
	})
	return &LinkResult{MessageID: msg.ID, Outcome: OutcomeLinked, ShipmentID: &shipment.ID, Score: score, Band: BandAutoLink}, nil
}

// bestShared returns the highest-priority identifier present in both the
// message's set and the shipment's own identifiers.
func bestShared(set models.IdentifierSet, shipment *models.Shipment) *models.Identifier {
	own := make(map[models.IdentifierType]map[string]bool)
	shipIDs := shipment.IdentifierSet()
	for _, id := range shipIDs.All() {
		if own[id.Type] == nil {
			own[id.Type] = make(map[string]bool)
		}
		own[id.Type][id.Value] = true
	}
	for _, id := range set.All() {
		if own[id.Type][id.Value] {
			shared := id
			return &shared
		}
	}
	return nil
}

func (s *backfillService) BackfillAll(ctx context.Context) (BatchCounts, error) {
	var shipmentIDs []uuid.UUID
collect:
	for offset := 0; ; offset += s.cfg.BatchSize {
		page, err := s.shipmentRepo.ListPaged(ctx, s.cfg.BatchSize, offset)
		if err != nil {
			return BatchCounts{}, fmt.Errorf("failed to list shipments: %w", err)
		}
		for _, sh := range page {
			shipmentIDs = append(shipmentIDs, sh.ID)
			if s.cfg.MaxItems > 0 && len(shipmentIDs) == s.cfg.MaxItems {
				break collect
			}
		}
		if len(page) < s.cfg.BatchSize {
			break
		}
	}

	var total BatchCounts
	var mu sync.Mutex
	stats := workpool.Run(ctx, s.pool, shipmentIDs, func(ctx context.Context, id uuid.UUID) error {
		counts, err := s.LinkRelatedMessages(ctx, id)
		if err != nil {
			return err
		}
		mu.Lock()
		total.Processed += counts.Processed
		total.Linked += counts.Linked
		total.Suggested += counts.Suggested
		total.Orphaned += counts.Orphaned
		total.Conflicts += counts.Conflicts
		total.Errors += counts.Errors
		mu.Unlock()
		return nil
	})
	total.Errors += stats.Failed

	s.logger.Info("backfill sweep finished",
		zap.Int("shipments", stats.Submitted),
		zap.Int("linked", total.Linked),
		zap.Int("errors", total.Errors))
	return total, nil
}

func (s *backfillService) RepairCrossLinks(ctx context.Context, dryRun bool, limit int) (*RepairReport, error) {
	report := &RepairReport{DryRun: dryRun}
	// Authorities recomputed once per thread within the run.
	recomputed := make(map[string]*models.ThreadAuthority)

	// Snapshot the reply links before touching any of them. Repairs delete
	// and recreate link rows, which would shift offset-based pages under a
	// paging loop and skip entries.
	var candidates []*models.Link
collect:
	for offset := 0; ; offset += s.cfg.BatchSize {
		links, err := s.linkRepo.ListReplyLinks(ctx, s.cfg.BatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list reply links: %w", err)
		}
		for _, link := range links {
			candidates = append(candidates, link)
			if limit > 0 && len(candidates) == limit {
				break collect
			}
		}
		if len(links) < s.cfg.BatchSize {
			break
		}
	}

	for _, link := range candidates {
		report.Examined++
		item, err := s.checkLink(ctx, link, recomputed)
		if err != nil {
			s.logger.Warn("repair check failed",
				zap.String("message_id", link.MessageID.String()),
				zap.Error(err))
			continue
		}
		if item == nil {
			continue
		}
		report.Mismatched++
		if !dryRun {
			if err := s.repairLink(ctx, link, item.ExpectedShipmentID); err != nil {
				s.logger.Warn("repair failed",
					zap.String("message_id", link.MessageID.String()),
					zap.Error(err))
			} else {
				item.Repaired = true
				report.Repaired++
			}
		}
		report.Items = append(report.Items, *item)
	}

	s.logger.Info("cross-link repair finished",
		zap.Int("examined", report.Examined),
		zap.Int("mismatched", report.Mismatched),
		zap.Int("repaired", report.Repaired),
		zap.Bool("dry_run", dryRun))
	return report, nil
}

// checkLink returns a repair item when the reply's link disagrees with its
// thread's freshly recomputed authority, nil when the link is consistent or
// the authority cannot determine an expected shipment.
func (s *backfillService) checkLink(ctx context.Context, link *models.Link, recomputed map[string]*models.ThreadAuthority) (*RepairItem, error) {
	msg, err := s.messageRepo.GetByID(ctx, link.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil || msg.ThreadID == "" {
		return nil, nil
	}

	authority, seen := recomputed[msg.ThreadID]
	if !seen {
		if err := s.authorities.Invalidate(ctx, msg.ThreadID); err != nil {
			return nil, err
		}
		authority, err = s.authorities.Resolve(ctx, msg.ThreadID)
		if err != nil {
			return nil, err
		}
		recomputed[msg.ThreadID] = authority
	}
	if authority == nil {
		return nil, nil
	}

	var set models.IdentifierSet
	set.Add(authority.Identifier())
	matches, err := s.matcher.Match(ctx, set)
	if err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		// Ambiguous or unmatched authority; repair only acts on a clear
		// expected shipment.
		return nil, nil
	}

	expected := matches[0].Shipment
	if expected.ID == link.ShipmentID {
		return nil, nil
	}
	return &RepairItem{
		MessageID:          link.MessageID,
		ThreadID:           msg.ThreadID,
		LinkedShipmentID:   link.ShipmentID,
		ExpectedShipmentID: expected.ID,
	}, nil
}

// repairLink replaces a cross-thread link with one pointing at the expected
// shipment, keeping an audit trail of both sides.
func (s *backfillService) repairLink(ctx context.Context, link *models.Link, expectedShipmentID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, link.MessageID)
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return apperrors.ErrNotFound
	}

	if err := s.linkRepo.Delete(ctx, link.ID); err != nil {
		return fmt.Errorf("failed to delete stale link: %w", err)
	}
	s.auditor.Record(ctx, &models.AuditEntry{
		MessageID:       link.MessageID,
		ShipmentID:      &link.ShipmentID,
		Operation:       models.AuditLinkDeleted,
		IdentifierType:  link.IdentifierType,
		IdentifierValue: link.IdentifierValue,
		Reasoning:       "reply linked against thread authority; replaced by repair",
	})

	res, err := s.linker.BackfillMessage(ctx, msg.ID)
	if err != nil {
		return err
	}
	if res.Outcome != OutcomeLinked || res.ShipmentID == nil || *res.ShipmentID != expectedShipmentID {
		s.logger.Warn("repair relink did not land on expected shipment",
			zap.String("message_id", msg.ID.String()),
			zap.String("expected", expectedShipmentID.String()),
			zap.String("outcome", string(res.Outcome)))
	}

	s.metrics.Repairs.Inc()
	s.auditor.Record(ctx, &models.AuditEntry{
		MessageID:       msg.ID,
		ShipmentID:      &expectedShipmentID,
		Operation:       models.AuditCrossLinkRepaired,
		IdentifierType:  link.IdentifierType,
		IdentifierValue: link.IdentifierValue,
		Reasoning:       fmt.Sprintf("relinked from %s to %s per thread authority", link.ShipmentID, expectedShipmentID),
	})
	return nil
}
