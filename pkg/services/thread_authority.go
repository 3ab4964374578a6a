package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/models"
	"github.com/freightdesk/linkage-engine/pkg/repositories"
	"github.com/freightdesk/linkage-engine/pkg/syncutil"
)

// ThreadAuthorityResolver resolves the authoritative identifier for a
// conversation thread. Resolved authorities are cached without expiry and
// mirrored to the database; they change only through explicit invalidation.
type ThreadAuthorityResolver interface {
	Resolve(ctx context.Context, threadID string) (*models.ThreadAuthority, error)
	Invalidate(ctx context.Context, threadID string) error
	BindShipment(ctx context.Context, threadID string, shipmentID uuid.UUID) error
}

type threadAuthorityResolver struct {
	messageRepo repositories.MessageRepository
	entityRepo  repositories.EntityRepository
	repo        repositories.ThreadAuthorityRepository
	extractor   IdentifierExtractor
	cache       *gocache.Cache
	locks       *syncutil.KeyedMutex
	logger      *zap.Logger
}

// NewThreadAuthorityResolver creates a new ThreadAuthorityResolver.
func NewThreadAuthorityResolver(
	messageRepo repositories.MessageRepository,
	entityRepo repositories.EntityRepository,
	repo repositories.ThreadAuthorityRepository,
	extractor IdentifierExtractor,
	logger *zap.Logger,
) ThreadAuthorityResolver {
	return &threadAuthorityResolver{
		messageRepo: messageRepo,
		entityRepo:  entityRepo,
		repo:        repo,
		extractor:   extractor,
		cache:       gocache.New(gocache.NoExpiration, 0),
		locks:       syncutil.NewKeyedMutex(),
		logger:      logger.Named("thread_authority"),
	}
}

var _ ThreadAuthorityResolver = (*threadAuthorityResolver)(nil)

// Resolve returns the thread's authority, computing and storing it on first
// use. Returns nil when no message in the thread carries any identifier;
// absence is never cached so a later extraction can establish the authority.
func (r *threadAuthorityResolver) Resolve(ctx context.Context, threadID string) (*models.ThreadAuthority, error) {
	if cached, ok := r.cache.Get(threadID); ok {
		return cached.(*models.ThreadAuthority), nil
	}

	unlock := r.locks.Lock("thread:" + threadID)
	defer unlock()

	// Another caller may have resolved it while we waited on the lock.
	if cached, ok := r.cache.Get(threadID); ok {
		return cached.(*models.ThreadAuthority), nil
	}

	stored, err := r.repo.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread authority: %w", err)
	}
	if stored != nil {
		r.cache.Set(threadID, stored, gocache.NoExpiration)
		return stored, nil
	}

	authority, err := r.compute(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if authority == nil {
		return nil, nil
	}

	if err := r.repo.Upsert(ctx, authority); err != nil {
		return nil, fmt.Errorf("failed to store thread authority: %w", err)
	}
	r.cache.Set(threadID, authority, gocache.NoExpiration)

	r.logger.Debug("resolved thread authority",
		zap.String("thread_id", threadID),
		zap.String("message_id", authority.AuthorityMessageID.String()),
		zap.String("identifier_type", authority.IdentifierType.String()),
		zap.String("identifier_value", authority.IdentifierValue))
	return authority, nil
}

// compute walks the thread's messages, original messages before replies and
// oldest first within each group, and takes the best identifier of the first
// message that has any.
func (r *threadAuthorityResolver) compute(ctx context.Context, threadID string) (*models.ThreadAuthority, error) {
	messages, err := r.messageRepo.GetByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	ordered := make([]*models.MessageMetadata, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].IsReply != ordered[j].IsReply {
			return !ordered[i].IsReply
		}
		return ordered[i].ReceivedAt.Before(ordered[j].ReceivedAt)
	})

	for _, msg := range ordered {
		records, err := r.entityRepo.FindByMessageID(ctx, msg.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load entity records: %w", err)
		}
		set := r.extractor.BuildIdentifierSet(records)
		best := set.Best()
		if best == nil {
			continue
		}
		return &models.ThreadAuthority{
			ThreadID:           threadID,
			AuthorityMessageID: msg.ID,
			IdentifierType:     best.Type,
			IdentifierValue:    best.Value,
			Confidence:         best.Confidence,
			ResolvedAt:         time.Now(),
		}, nil
	}
	return nil, nil
}

// Invalidate drops the thread's authority from cache and store. The next
// Resolve recomputes it from current messages and extractions.
func (r *threadAuthorityResolver) Invalidate(ctx context.Context, threadID string) error {
	unlock := r.locks.Lock("thread:" + threadID)
	defer unlock()

	r.cache.Delete(threadID)
	if err := r.repo.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("failed to delete thread authority: %w", err)
	}
	return nil
}

// BindShipment records which shipment the thread's authority resolved to.
func (r *threadAuthorityResolver) BindShipment(ctx context.Context, threadID string, shipmentID uuid.UUID) error {
	unlock := r.locks.Lock("thread:" + threadID)
	defer unlock()

	cached, ok := r.cache.Get(threadID)
	if !ok {
		stored, err := r.repo.Get(ctx, threadID)
		if err != nil {
			return fmt.Errorf("failed to load thread authority: %w", err)
		}
		if stored == nil {
			return nil
		}
		cached = stored
	}

	authority := cached.(*models.ThreadAuthority)
	if authority.ShipmentID != nil && *authority.ShipmentID == shipmentID {
		return nil
	}

	updated := *authority
	updated.ShipmentID = &shipmentID
	if err := r.repo.Upsert(ctx, &updated); err != nil {
		return fmt.Errorf("failed to store thread authority: %w", err)
	}
	r.cache.Set(threadID, &updated, gocache.NoExpiration)
	return nil
}
