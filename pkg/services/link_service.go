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
	"github.com/freightdesk/linkage-engine/pkg/syncutil"
	"github.com/freightdesk/linkage-engine/pkg/workpool"
)

// LinkOutcome classifies the result of processing one message.
type LinkOutcome string

const (
	OutcomeLinked        LinkOutcome = "linked"
	OutcomeAlreadyLinked LinkOutcome = "already_linked"
	OutcomeSuggested     LinkOutcome = "suggested"
	OutcomeOrphan        LinkOutcome = "orphan"
	OutcomeConflict      LinkOutcome = "conflict"
	OutcomeNoAction      LinkOutcome = "no_action"
)

// LinkResult reports what processing a message did. Conflicted is set
// whenever a conflict row was recorded, including runs where the resolver
// still picked a shipment and the message went on to link.
type LinkResult struct {
	MessageID  uuid.UUID
	Outcome    LinkOutcome
	ShipmentID *uuid.UUID
	Score      int
	Band       DecisionBand
	Conflicted bool
}

// BatchCounts summarizes a batch run.
type BatchCounts struct {
	Processed int `json:"processed"`
	Linked    int `json:"linked"`
	Suggested int `json:"suggested"`
	Orphaned  int `json:"orphaned"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
}

func (c *BatchCounts) add(res *LinkResult) {
	c.Processed++
	if res.Conflicted {
		c.Conflicts++
	}
	switch res.Outcome {
	case OutcomeLinked, OutcomeAlreadyLinked:
		c.Linked++
	case OutcomeSuggested:
		c.Suggested++
	case OutcomeOrphan:
		c.Orphaned++
	}
}

// LinkService orchestrates linking decisions for messages.
type LinkService interface {
	// ProcessMessage runs the full decision flow for one message.
	// Reprocessing an already handled message is a no-op, never a duplicate.
	ProcessMessage(ctx context.Context, messageID uuid.UUID) (*LinkResult, error)
	// BackfillMessage is ProcessMessage with the backfill source and no
	// suggestion creation; review queues are a realtime concern.
	BackfillMessage(ctx context.Context, messageID uuid.UUID) (*LinkResult, error)
	// ProcessUnlinkedMessages sweeps every message without an active link
	// through the decision flow on the worker pool.
	ProcessUnlinkedMessages(ctx context.Context) (BatchCounts, error)
	ConfirmSuggestion(ctx context.Context, suggestionID uuid.UUID) (*models.Link, error)
	RejectSuggestion(ctx context.Context, suggestionID uuid.UUID) error
}

type linkService struct {
	cfg            config.LinkingConfig
	messageRepo    repositories.MessageRepository
	entityRepo     repositories.EntityRepository
	shipmentRepo   repositories.ShipmentRepository
	linkRepo       repositories.LinkRepository
	suggestionRepo repositories.SuggestionRepository
	conflictRepo   repositories.ConflictRepository
	extractor      IdentifierExtractor
	authorities    ThreadAuthorityResolver
	matcher        ShipmentMatcher
	resolver       ConflictResolver
	confidence     ConfidenceCalculator
	auditor        Auditor
	metrics        *metrics.Metrics
	shipmentLocks  *syncutil.KeyedMutex
	pool           *workpool.Pool
	logger         *zap.Logger
}

// LinkServiceDeps bundles the collaborators of the orchestrator.
type LinkServiceDeps struct {
	Messages    repositories.MessageRepository
	Entities    repositories.EntityRepository
	Shipments   repositories.ShipmentRepository
	Links       repositories.LinkRepository
	Suggestions repositories.SuggestionRepository
	Conflicts   repositories.ConflictRepository
	Extractor   IdentifierExtractor
	Authorities ThreadAuthorityResolver
	Matcher     ShipmentMatcher
	Resolver    ConflictResolver
	Confidence  ConfidenceCalculator
	Auditor     Auditor
	Metrics     *metrics.Metrics
}

// NewLinkService creates the linking orchestrator.
func NewLinkService(cfg config.LinkingConfig, deps LinkServiceDeps, logger *zap.Logger) LinkService {
	return &linkService{
		cfg:            cfg,
		messageRepo:    deps.Messages,
		entityRepo:     deps.Entities,
		shipmentRepo:   deps.Shipments,
		linkRepo:       deps.Links,
		suggestionRepo: deps.Suggestions,
		conflictRepo:   deps.Conflicts,
		extractor:      deps.Extractor,
		authorities:    deps.Authorities,
		matcher:        deps.Matcher,
		resolver:       deps.Resolver,
		confidence:     deps.Confidence,
		auditor:        deps.Auditor,
		metrics:        deps.Metrics,
		shipmentLocks:  syncutil.NewKeyedMutex(),
		pool:           workpool.New(cfg.Workers, logger),
		logger:         logger.Named("linking"),
	}
}

var _ LinkService = (*linkService)(nil)

func (s *linkService) ProcessMessage(ctx context.Context, messageID uuid.UUID) (*LinkResult, error) {
	return s.process(ctx, messageID, models.LinkSourceRealtime, true)
}

func (s *linkService) BackfillMessage(ctx context.Context, messageID uuid.UUID) (*LinkResult, error) {
	return s.process(ctx, messageID, models.LinkSourceBackfill, false)
}

func (s *linkService) process(ctx context.Context, messageID uuid.UUID, source models.LinkSource, createSuggestions bool) (*LinkResult, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return nil, apperrors.ErrNotFound
	}

	existing, err := s.linkRepo.GetByMessageID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing link: %w", err)
	}

	records, err := s.entityRepo.FindByMessageID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity records: %w", err)
	}
	ownSet := s.extractor.BuildIdentifierSet(records)
	enrichment := s.extractor.BuildEnrichment(records)

	matchSet, inherited, err := s.matchSetFor(ctx, msg, ownSet)
	if err != nil {
		return nil, err
	}

	if matchSet.IsEmpty() {
		if existing != nil {
			return s.alreadyLinked(existing), nil
		}
		s.metrics.Decisions.WithLabelValues(metrics.OutcomeOrphan).Inc()
		s.auditor.Record(ctx, &models.AuditEntry{
			MessageID: msg.ID,
			Operation: models.AuditNoAction,
			Reasoning: "no identifiers extracted",
		})
		return &LinkResult{MessageID: msg.ID, Outcome: OutcomeOrphan, Band: BandNone}, nil
	}

	matches, err := s.matcher.Match(ctx, matchSet)
	if err != nil {
		return nil, err
	}

	res := s.resolver.Resolve(msg.ID, matches)
	conflicted := res.Conflict != nil
	if res.Conflict != nil {
		if err := s.conflictRepo.Create(ctx, res.Conflict); err != nil {
			return nil, fmt.Errorf("failed to record conflict: %w", err)
		}
		s.metrics.Decisions.WithLabelValues(metrics.OutcomeConflict).Inc()
		s.auditor.Record(ctx, &models.AuditEntry{
			MessageID:       msg.ID,
			Operation:       models.AuditConflictRecorded,
			IdentifierType:  res.Conflict.IdentifierType,
			IdentifierValue: res.Conflict.IdentifierValue,
			Reasoning:       res.Conflict.Details,
		})
	}

	if res.Match == nil {
		if res.Conflict != nil {
			return &LinkResult{MessageID: msg.ID, Outcome: OutcomeConflict, Band: BandNone, Conflicted: true}, nil
		}
		if existing != nil {
			return s.alreadyLinked(existing), nil
		}
		s.metrics.Decisions.WithLabelValues(metrics.OutcomeOrphan).Inc()
		s.auditor.Record(ctx, &models.AuditEntry{
			MessageID: msg.ID,
			Operation: models.AuditNoAction,
			Reasoning: "identifiers matched no shipment",
		})
		return &LinkResult{MessageID: msg.ID, Outcome: OutcomeOrphan, Band: BandNone}, nil
	}

	shipment := res.Match.Shipment
	best := res.Match.BestIdentifier()

	if existing != nil {
		if existing.ShipmentID == shipment.ID {
			r := s.alreadyLinked(existing)
			r.Conflicted = conflicted
			return r, nil
		}
		// The message is linked elsewhere. Record the disagreement and keep
		// the existing link; links are never silently overwritten.
		conflict := &models.Conflict{
			ID:              uuid.New(),
			Type:            models.ConflictAlreadyLinked,
			MessageID:       msg.ID,
			ShipmentIDs:     []uuid.UUID{existing.ShipmentID, shipment.ID},
			IdentifierType:  best.Type,
			IdentifierValue: best.Value,
			Details: fmt.Sprintf("message linked to %s but %s %s matches %s",
				existing.ShipmentID, best.Type, best.Value, shipment.ID),
		}
		if err := s.conflictRepo.Create(ctx, conflict); err != nil {
			return nil, fmt.Errorf("failed to record conflict: %w", err)
		}
		s.metrics.Decisions.WithLabelValues(metrics.OutcomeConflict).Inc()
		s.auditor.Record(ctx, &models.AuditEntry{
			MessageID:       msg.ID,
			ShipmentID:      &shipment.ID,
			Operation:       models.AuditConflictRecorded,
			IdentifierType:  best.Type,
			IdentifierValue: best.Value,
			Reasoning:       conflict.Details,
		})
		return &LinkResult{MessageID: msg.ID, Outcome: OutcomeConflict, ShipmentID: &existing.ShipmentID, Conflicted: true}, nil
	}

	score, breakdown := s.confidence.Score(ScoreInput{
		IdentifierType:    best.Type,
		Authority:         msg.Authority,
		DocumentType:      msg.DocumentType,
		MessageType:       msg.MessageType,
		SenderCategory:    msg.SenderCategory,
		MessageAt:         msg.ReceivedAt,
		ShipmentCreatedAt: shipment.CreatedAt,
	})
	band := s.confidence.Band(score)

	switch band {
	case BandAutoLink:
		// A reply matched through its thread authority carries quoted
		// identifiers that belong to other shipments; those never reach
		// the linked shipment.
		propagationSet := ownSet
		if inherited {
			propagationSet = models.IdentifierSet{}
		}
		link, err := s.createLink(ctx, msg, shipment, best, propagationSet, enrichment, score, breakdown, source)
		if err != nil {
			return nil, err
		}
		return &LinkResult{MessageID: msg.ID, Outcome: OutcomeLinked, ShipmentID: &link.ShipmentID, Score: score, Band: band, Conflicted: conflicted}, nil

	case BandSuggest:
		if !createSuggestions {
			s.metrics.Decisions.WithLabelValues(metrics.OutcomeNoAction).Inc()
			s.auditor.Record(ctx, &models.AuditEntry{
				MessageID:       msg.ID,
				ShipmentID:      &shipment.ID,
				Operation:       models.AuditNoAction,
				IdentifierType:  best.Type,
				IdentifierValue: best.Value,
				ConfidenceScore: score,
				Breakdown:       breakdown,
				Reasoning:       "score in review band; backfill does not create suggestions",
			})
			return &LinkResult{MessageID: msg.ID, Outcome: OutcomeNoAction, Score: score, Band: band, Conflicted: conflicted}, nil
		}
		if err := s.createSuggestion(ctx, msg, shipment, best, score, breakdown); err != nil {
			return nil, err
		}
		return &LinkResult{MessageID: msg.ID, Outcome: OutcomeSuggested, ShipmentID: &shipment.ID, Score: score, Band: band, Conflicted: conflicted}, nil

	default:
		conflict := &models.Conflict{
			ID:              uuid.New(),
			Type:            models.ConflictLowConfidence,
			MessageID:       msg.ID,
			ShipmentIDs:     []uuid.UUID{shipment.ID},
			IdentifierType:  best.Type,
			IdentifierValue: best.Value,
			Details:         fmt.Sprintf("matched %s but score %d is below the suggestion threshold", shipment.ID, score),
		}
		if err := s.conflictRepo.Create(ctx, conflict); err != nil {
			return nil, fmt.Errorf("failed to record conflict: %w", err)
		}
		s.metrics.Decisions.WithLabelValues(metrics.OutcomeNoAction).Inc()
		s.auditor.Record(ctx, &models.AuditEntry{
			MessageID:       msg.ID,
			ShipmentID:      &shipment.ID,
			Operation:       models.AuditNoAction,
			IdentifierType:  best.Type,
			IdentifierValue: best.Value,
			ConfidenceScore: score,
			Breakdown:       breakdown,
			Reasoning:       conflict.Details,
		})
		return &LinkResult{MessageID: msg.ID, Outcome: OutcomeNoAction, Score: score, Band: band, Conflicted: true}, nil
	}
}

// matchSetFor picks the identifiers to match on. A reply inherits its
// thread's authoritative identifier instead of whatever its quoted content
// contains; the authority message itself, and threads without an authority,
// match on their own extractions. The second return reports whether the
// set was substituted, so callers know the message's own extractions are
// untrusted quoted material.
func (s *linkService) matchSetFor(ctx context.Context, msg *models.MessageMetadata, ownSet models.IdentifierSet) (models.IdentifierSet, bool, error) {
	if !msg.IsReply || msg.ThreadID == "" {
		return ownSet, false, nil
	}
	authority, err := s.authorities.Resolve(ctx, msg.ThreadID)
	if err != nil {
		return models.IdentifierSet{}, false, fmt.Errorf("failed to resolve thread authority: %w", err)
	}
	if authority == nil || authority.AuthorityMessageID == msg.ID {
		return ownSet, false, nil
	}
	var set models.IdentifierSet
	set.Add(authority.Identifier())
	return set, true, nil
}

func (s *linkService) alreadyLinked(link *models.Link) *LinkResult {
	return &LinkResult{
		MessageID:  link.MessageID,
		Outcome:    OutcomeAlreadyLinked,
		ShipmentID: &link.ShipmentID,
		Score:      link.ConfidenceScore,
		Band:       BandAutoLink,
	}
}

func (s *linkService) createLink(
	ctx context.Context,
	msg *models.MessageMetadata,
	shipment *models.Shipment,
	best models.Identifier,
	ownSet models.IdentifierSet,
	enrichment Enrichment,
	score int,
	breakdown models.ScoreBreakdown,
	source models.LinkSource,
) (*models.Link, error) {
	link := &models.Link{
		ID:              uuid.New(),
		MessageID:       msg.ID,
		ShipmentID:      shipment.ID,
		IdentifierType:  best.Type,
		IdentifierValue: best.Value,
		ConfidenceScore: score,
		EmailAuthority:  msg.Authority,
		Source:          source,
		LinkedAt:        time.Now(),
	}
	if err := s.linkRepo.Upsert(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	if err := s.propagate(ctx, msg, shipment.ID, ownSet, enrichment); err != nil {
		return nil, err
	}

	if msg.PendingLink {
		if err := s.messageRepo.ClearPendingLink(ctx, msg.ID); err != nil {
			return nil, fmt.Errorf("failed to clear pending link flag: %w", err)
		}
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
		Breakdown:       breakdown,
		Reasoning:       fmt.Sprintf("auto-linked via %s %s (%s)", best.Type, best.Value, source),
	})
	s.logger.Info("linked message",
		zap.String("message_id", msg.ID.String()),
		zap.String("shipment_id", shipment.ID.String()),
		zap.Int("score", score),
		zap.String("source", source.String()))
	return link, nil
}

// propagate copies enrichment data onto the shipment under its keyed lock.
// Fields are fill-only: an existing value is never overwritten. Status only
// ever advances, and by the fresh row read inside the lock concurrent
// linkers cannot interleave a regression.
func (s *linkService) propagate(ctx context.Context, msg *models.MessageMetadata, shipmentID uuid.UUID, ownSet models.IdentifierSet, enrichment Enrichment) error {
	unlock := s.shipmentLocks.Lock("shipment:" + shipmentID.String())
	defer unlock()

	shipment, err := s.shipmentRepo.GetByID(ctx, shipmentID)
	if err != nil {
		return fmt.Errorf("failed to reload shipment: %w", err)
	}
	if shipment == nil {
		return apperrors.ErrShipmentMissing
	}

	changed := false

	for _, id := range ownSet.ContainerNumbers {
		if !shipment.HasContainer(id.Value) {
			shipment.ContainerNumbers = append(shipment.ContainerNumbers, id.Value)
			changed = true
		}
	}
	if shipment.BLNumber == nil && len(ownSet.BLNumbers) > 0 {
		shipment.BLNumber = &ownSet.BLNumbers[0].Value
		changed = true
	}

	changed = fillString(&shipment.VesselName, enrichment.VesselName) || changed
	changed = fillString(&shipment.VoyageNumber, enrichment.VoyageNumber) || changed
	changed = fillString(&shipment.PortOfLoading, enrichment.PortOfLoading) || changed
	changed = fillString(&shipment.PortOfDischarge, enrichment.PortOfDischarge) || changed
	changed = fillTime(&shipment.ETD, enrichment.ETD) || changed
	changed = fillTime(&shipment.ETA, enrichment.ETA) || changed

	if next := statusForMessage(msg); next != "" && shipment.Status.CanAdvanceTo(next) {
		s.logger.Info("advancing shipment status",
			zap.String("shipment_id", shipment.ID.String()),
			zap.String("from", shipment.Status.String()),
			zap.String("to", next.String()))
		shipment.Status = next
		changed = true
	}

	if !changed {
		return nil
	}
	if err := s.shipmentRepo.Update(ctx, shipment); err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return nil
}

// statusForMessage infers the shipment lifecycle stage a document implies.
// Returns "" when the message carries no lifecycle signal.
func statusForMessage(msg *models.MessageMetadata) models.ShipmentStatus {
	switch msg.DocumentType {
	case "booking_confirmation", "booking_amendment":
		return models.StatusBooked
	case "departure_notice":
		return models.StatusInTransit
	case "arrival_notice":
		return models.StatusArrived
	case "delivery_order":
		return models.StatusDelivered
	}
	return ""
}

func fillString(dst **string, src *string) bool {
	if src == nil || *src == "" {
		return false
	}
	if *dst != nil && **dst != "" {
		return false
	}
	*dst = src
	return true
}

func fillTime(dst **time.Time, src *time.Time) bool {
	if src == nil || *dst != nil {
		return false
	}
	*dst = src
	return true
}

func (s *linkService) createSuggestion(ctx context.Context, msg *models.MessageMetadata, shipment *models.Shipment, best models.Identifier, score int, breakdown models.ScoreBreakdown) error {
	existing, err := s.suggestionRepo.GetByMessageAndShipment(ctx, msg.ID, shipment.ID)
	if err != nil {
		return fmt.Errorf("failed to load suggestion: %w", err)
	}
	if existing != nil && existing.Status != models.SuggestionPending {
		// A reviewed suggestion is final; reprocessing does not resurrect it.
		return nil
	}

	suggestion := &models.Suggestion{
		ID:              uuid.New(),
		MessageID:       msg.ID,
		ShipmentID:      shipment.ID,
		IdentifierType:  best.Type,
		IdentifierValue: best.Value,
		ConfidenceScore: score,
		Reasoning:       fmt.Sprintf("matched via %s %s with score %d", best.Type, best.Value, score),
		Status:          models.SuggestionPending,
		CreatedAt:       time.Now(),
	}
	if err := s.suggestionRepo.Upsert(ctx, suggestion); err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}

	s.metrics.Decisions.WithLabelValues(metrics.OutcomeSuggested).Inc()
	s.auditor.Record(ctx, &models.AuditEntry{
		MessageID:       msg.ID,
		ShipmentID:      &shipment.ID,
		Operation:       models.AuditSuggestionCreated,
		IdentifierType:  best.Type,
		IdentifierValue: best.Value,
		ConfidenceScore: score,
		Breakdown:       breakdown,
		Reasoning:       suggestion.Reasoning,
	})
	return nil
}

func (s *linkService) ProcessUnlinkedMessages(ctx context.Context) (BatchCounts, error) {
	ids, err := s.collectUnlinked(ctx)
	if err != nil {
		return BatchCounts{}, err
	}

	var counts BatchCounts
	var mu sync.Mutex
	stats := workpool.Run(ctx, s.pool, ids, func(ctx context.Context, id uuid.UUID) error {
		res, err := s.ProcessMessage(ctx, id)
		if err != nil {
			return err
		}
		mu.Lock()
		counts.add(res)
		mu.Unlock()
		return nil
	})

	counts.Errors = stats.Failed
	if stats.Failed > 0 {
		s.metrics.BatchItemErrors.Add(float64(stats.Failed))
	}
	s.logger.Info("processed unlinked messages",
		zap.Int("submitted", stats.Submitted),
		zap.Int("linked", counts.Linked),
		zap.Int("suggested", counts.Suggested),
		zap.Int("errors", counts.Errors))
	return counts, nil
}

// collectUnlinked snapshots the ids of every unlinked message before any
// processing starts. Paging while linking would skew offsets as rows leave
// the unlinked set.
func (s *linkService) collectUnlinked(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for offset := 0; ; offset += s.cfg.BatchSize {
		page, err := s.messageRepo.ListUnlinked(ctx, s.cfg.BatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list unlinked messages: %w", err)
		}
		for _, msg := range page {
			ids = append(ids, msg.ID)
			if s.cfg.MaxItems > 0 && len(ids) == s.cfg.MaxItems {
				return ids, nil
			}
		}
		if len(page) < s.cfg.BatchSize {
			return ids, nil
		}
	}
}

func (s *linkService) ConfirmSuggestion(ctx context.Context, suggestionID uuid.UUID) (*models.Link, error) {
	suggestion, err := s.suggestionRepo.GetByID(ctx, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion: %w", err)
	}
	if suggestion == nil {
		return nil, apperrors.ErrNotFound
	}
	if suggestion.Status != models.SuggestionPending {
		return nil, apperrors.ErrInvalidStatus
	}

	existing, err := s.linkRepo.GetByMessageID(ctx, suggestion.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing link: %w", err)
	}
	if existing != nil && existing.ShipmentID != suggestion.ShipmentID {
		return nil, apperrors.ErrAlreadyLinked
	}

	msg, err := s.messageRepo.GetByID(ctx, suggestion.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return nil, apperrors.ErrNotFound
	}

	score, breakdown := s.confidence.Score(ScoreInput{Manual: true})
	link := &models.Link{
		ID:              uuid.New(),
		MessageID:       suggestion.MessageID,
		ShipmentID:      suggestion.ShipmentID,
		IdentifierType:  suggestion.IdentifierType,
		IdentifierValue: suggestion.IdentifierValue,
		ConfidenceScore: score,
		EmailAuthority:  msg.Authority,
		Source:          models.LinkSourceManual,
		LinkedAt:        time.Now(),
	}
	if err := s.linkRepo.Upsert(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	if err := s.suggestionRepo.UpdateStatus(ctx, suggestion.ID, models.SuggestionConfirmed); err != nil {
		return nil, fmt.Errorf("failed to update suggestion: %w", err)
	}

	s.metrics.Decisions.WithLabelValues(metrics.OutcomeLinked).Inc()
	s.auditor.Record(ctx, &models.AuditEntry{
		MessageID:       suggestion.MessageID,
		ShipmentID:      &suggestion.ShipmentID,
		Operation:       models.AuditSuggestionConfirmed,
		IdentifierType:  suggestion.IdentifierType,
		IdentifierValue: suggestion.IdentifierValue,
		ConfidenceScore: score,
		Breakdown:       breakdown,
		Reasoning:       "suggestion confirmed by operator",
	})
	return link, nil
}

func (s *linkService) RejectSuggestion(ctx context.Context, suggestionID uuid.UUID) error {
	suggestion, err := s.suggestionRepo.GetByID(ctx, suggestionID)
	if err != nil {
		return fmt.Errorf("failed to load suggestion: %w", err)
	}
	if suggestion == nil {
		return apperrors.ErrNotFound
	}
	if suggestion.Status != models.SuggestionPending {
		return apperrors.ErrInvalidStatus
	}

	if err := s.suggestionRepo.UpdateStatus(ctx, suggestion.ID, models.SuggestionRejected); err != nil {
		return fmt.Errorf("failed to update suggestion: %w", err)
	}
	s.auditor.Record(ctx, &models.AuditEntry{
		MessageID:       suggestion.MessageID,
		ShipmentID:      &suggestion.ShipmentID,
		Operation:       models.AuditSuggestionRejected,
		IdentifierType:  suggestion.IdentifierType,
		IdentifierValue: suggestion.IdentifierValue,
		Reasoning:       "suggestion rejected by operator",
	})
	return nil
}
