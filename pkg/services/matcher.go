package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/config"
	"github.com/freightdesk/linkage-engine/pkg/models"
	"github.com/freightdesk/linkage-engine/pkg/repositories"
)

// Match is one candidate shipment found for a message, with the identifiers
// that pointed at it.
type Match struct {
	Shipment  *models.Shipment
	MatchedBy []models.Identifier
}

// BestIdentifier returns the highest-priority identifier that matched.
func (m *Match) BestIdentifier() models.Identifier {
	best := m.MatchedBy[0]
	for _, id := range m.MatchedBy[1:] {
		if id.Type.Priority() > best.Type.Priority() {
			best = id
		}
	}
	return best
}

// ShipmentMatcher finds candidate shipments for a message's identifiers.
type ShipmentMatcher interface {
	Match(ctx context.Context, set models.IdentifierSet) ([]*Match, error)
}

type shipmentMatcher struct {
	shipmentRepo repositories.ShipmentRepository
	logger       *zap.Logger
}

// NewShipmentMatcher creates a new ShipmentMatcher.
func NewShipmentMatcher(shipmentRepo repositories.ShipmentRepository, logger *zap.Logger) ShipmentMatcher {
	return &shipmentMatcher{
		shipmentRepo: shipmentRepo,
		logger:       logger.Named("matcher"),
	}
}

var _ ShipmentMatcher = (*shipmentMatcher)(nil)

// Match looks up every identifier in the set, all kinds at once, and
// aggregates hits per shipment. Reference numbers are ignored here: they are
// free-form and carry no lookup key. The result is ordered by shipment
// creation time, oldest first, ties broken by id.
func (m *shipmentMatcher) Match(ctx context.Context, set models.IdentifierSet) ([]*Match, error) {
	byShipment := make(map[uuid.UUID]*Match)

	add := func(s *models.Shipment, id models.Identifier) {
		match, ok := byShipment[s.ID]
		if !ok {
			match = &Match{Shipment: s}
			byShipment[s.ID] = match
		}
		match.MatchedBy = append(match.MatchedBy, id)
	}

	for _, id := range set.BookingNumbers {
		s, err := m.shipmentRepo.FindByBookingNumber(ctx, id.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to match booking number: %w", err)
		}
		if s != nil {
			add(s, id)
		}
	}
	for _, id := range set.BLNumbers {
		s, err := m.shipmentRepo.FindByBLNumber(ctx, id.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to match bl number: %w", err)
		}
		if s != nil {
			add(s, id)
		}
	}
	for _, id := range set.ContainerNumbers {
		shipments, err := m.shipmentRepo.FindByContainerNumber(ctx, id.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to match container number: %w", err)
		}
		for _, s := range shipments {
			add(s, id)
		}
	}

	matches := make([]*Match, 0, len(byShipment))
	for _, match := range byShipment {
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].Shipment, matches[j].Shipment
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return matches, nil
}

// Resolution is the outcome of conflict resolution over a match set.
type Resolution struct {
	// Match is the single shipment to link, nil when nothing matched or the
	// conflict policy declined to pick one.
	Match *Match
	// Conflict is non-nil when multiple shipments matched. It is recorded
	// regardless of whether the policy picked a fallback match.
	Conflict *models.Conflict
}

// ConflictResolver reduces a match set to at most one shipment.
type ConflictResolver interface {
	Resolve(messageID uuid.UUID, matches []*Match) Resolution
}

type conflictResolver struct {
	policy string
	logger *zap.Logger
}

// NewConflictResolver creates a ConflictResolver with the given fallback
// policy, one of the config.ConflictPolicy values.
func NewConflictResolver(cfg config.LinkingConfig, logger *zap.Logger) ConflictResolver {
	return &conflictResolver{
		policy: cfg.ConflictPolicy,
		logger: logger.Named("conflicts"),
	}
}

var _ ConflictResolver = (*conflictResolver)(nil)

// Resolve returns the single match when there is one, otherwise builds a
// conflict record naming every candidate and which identifier pointed at it.
// Under the oldest-shipment policy the earliest-created candidate is still
// linked; under the skip policy no link is made.
func (r *conflictResolver) Resolve(messageID uuid.UUID, matches []*Match) Resolution {
	switch len(matches) {
	case 0:
		return Resolution{}
	case 1:
		return Resolution{Match: matches[0]}
	}

	conflict := &models.Conflict{
		ID:        uuid.New(),
		Type:      models.ConflictMultipleShipments,
		MessageID: messageID,
	}
	parts := make([]string, 0, len(matches))
	for _, match := range matches {
		conflict.ShipmentIDs = append(conflict.ShipmentIDs, match.Shipment.ID)
		best := match.BestIdentifier()
		parts = append(parts, fmt.Sprintf("%s via %s %s",
			match.Shipment.ID, best.Type, best.Value))
	}
	conflict.Details = "multiple shipments matched: " + strings.Join(parts, "; ")

	best := matches[0].BestIdentifier()
	conflict.IdentifierType = best.Type
	conflict.IdentifierValue = best.Value

	res := Resolution{Conflict: conflict}
	if r.policy == config.ConflictPolicyOldest {
		// Matches arrive ordered oldest first.
		res.Match = matches[0]
	}
	r.logger.Warn("conflicting shipment matches",
		zap.String("message_id", messageID.String()),
		zap.Int("candidates", len(matches)),
		zap.String("policy", r.policy))
	return res
}
