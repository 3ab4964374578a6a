package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freightdesk/linkage-engine/pkg/models"
	"github.com/freightdesk/linkage-engine/pkg/repositories"
)

// Map-backed repository fakes shared by the service tests.

type mockEntityRepo struct {
	mu      sync.Mutex
	records []*models.EntityRecord
}

var _ repositories.EntityRepository = (*mockEntityRepo)(nil)

func (m *mockEntityRepo) add(records ...*models.EntityRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
}

func (m *mockEntityRepo) FindByMessageID(_ context.Context, messageID uuid.UUID) ([]*models.EntityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EntityRecord
	for _, rec := range m.records {
		if rec.MessageID == messageID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockEntityRepo) FindByTypeAndValue(_ context.Context, entityType, value string) ([]*models.EntityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.EntityRecord
	for _, rec := range m.records {
		if rec.EntityType != entityType {
			continue
		}
		if rec.Value == value || (rec.NormalizedValue != nil && *rec.NormalizedValue == value) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type mockMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*models.MessageMetadata
	links    *mockLinkRepo
}

var _ repositories.MessageRepository = (*mockMessageRepo)(nil)

func newMockMessageRepo(links *mockLinkRepo) *mockMessageRepo {
	return &mockMessageRepo{messages: make(map[uuid.UUID]*models.MessageMetadata), links: links}
}

func (m *mockMessageRepo) add(msgs ...*models.MessageMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.messages[msg.ID] = msg
	}
}

func (m *mockMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*models.MessageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (m *mockMessageRepo) GetByThread(_ context.Context, threadID string) ([]*models.MessageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.MessageMetadata
	for _, msg := range m.messages {
		if msg.ThreadID == threadID {
			copied := *msg
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

func (m *mockMessageRepo) ListUnlinked(_ context.Context, limit, offset int) ([]*models.MessageMetadata, error) {
	m.mu.Lock()
	var all []*models.MessageMetadata
	for _, msg := range m.messages {
		copied := *msg
		all = append(all, &copied)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ReceivedAt.Before(all[j].ReceivedAt) })

	var unlinked []*models.MessageMetadata
	for _, msg := range all {
		link, _ := m.links.GetByMessageID(context.Background(), msg.ID)
		if link == nil {
			unlinked = append(unlinked, msg)
		}
	}
	if offset >= len(unlinked) {
		return nil, nil
	}
	unlinked = unlinked[offset:]
	if len(unlinked) > limit {
		unlinked = unlinked[:limit]
	}
	return unlinked, nil
}

func (m *mockMessageRepo) ClearPendingLink(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		msg.PendingLink = false
	}
	return nil
}

type mockShipmentRepo struct {
	mu        sync.Mutex
	shipments map[uuid.UUID]*models.Shipment
}

var _ repositories.ShipmentRepository = (*mockShipmentRepo)(nil)

func newMockShipmentRepo() *mockShipmentRepo {
	return &mockShipmentRepo{shipments: make(map[uuid.UUID]*models.Shipment)}
}

func (m *mockShipmentRepo) Create(_ context.Context, s *models.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.shipments[s.ID] = &copied
	return nil
}

func (m *mockShipmentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	copied.ContainerNumbers = append([]string(nil), s.ContainerNumbers...)
	return &copied, nil
}

func (m *mockShipmentRepo) FindByBookingNumber(_ context.Context, value string) (*models.Shipment, error) {
	return m.findOne(func(s *models.Shipment) bool {
		return s.BookingNumber != nil && *s.BookingNumber == value
	})
}

func (m *mockShipmentRepo) FindByBLNumber(_ context.Context, value string) (*models.Shipment, error) {
	return m.findOne(func(s *models.Shipment) bool {
		return s.BLNumber != nil && *s.BLNumber == value
	})
}

func (m *mockShipmentRepo) findOne(match func(*models.Shipment) bool) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shipments {
		if match(s) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockShipmentRepo) FindByContainerNumber(_ context.Context, value string) ([]*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Shipment
	for _, s := range m.shipments {
		if s.HasContainer(value) {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockShipmentRepo) Update(_ context.Context, s *models.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	copied.UpdatedAt = time.Now()
	m.shipments[s.ID] = &copied
	return nil
}

func (m *mockShipmentRepo) ListPaged(_ context.Context, limit, offset int) ([]*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*models.Shipment
	for _, s := range m.shipments {
		copied := *s
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type mockLinkRepo struct {
	mu       sync.Mutex
	links    map[uuid.UUID]*models.Link
	messages *mockMessageRepo
}

var _ repositories.LinkRepository = (*mockLinkRepo)(nil)

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{links: make(map[uuid.UUID]*models.Link)}
}

func (m *mockLinkRepo) GetByMessageID(_ context.Context, messageID uuid.UUID) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.links {
		if link.MessageID == messageID {
			copied := *link
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockLinkRepo) GetByShipmentID(_ context.Context, shipmentID uuid.UUID) ([]*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Link
	for _, link := range m.links {
		if link.ShipmentID == shipmentID {
			copied := *link
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkedAt.Before(out[j].LinkedAt) })
	return out, nil
}

func (m *mockLinkRepo) Upsert(_ context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.links {
		if existing.MessageID == link.MessageID && existing.ShipmentID == link.ShipmentID {
			copied := *link
			copied.ID = existing.ID
			m.links[id] = &copied
			link.ID = existing.ID
			return nil
		}
	}
	copied := *link
	m.links[link.ID] = &copied
	return nil
}

func (m *mockLinkRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, id)
	return nil
}

func (m *mockLinkRepo) ListReplyLinks(_ context.Context, limit, offset int) ([]*models.Link, error) {
	m.mu.Lock()
	var all []*models.Link
	for _, link := range m.links {
		copied := *link
		all = append(all, &copied)
	}
	m.mu.Unlock()

	var replies []*models.Link
	for _, link := range all {
		msg, _ := m.messages.GetByID(context.Background(), link.MessageID)
		if msg != nil && msg.IsReply {
			replies = append(replies, link)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].LinkedAt.Before(replies[j].LinkedAt) })
	if offset >= len(replies) {
		return nil, nil
	}
	replies = replies[offset:]
	if len(replies) > limit {
		replies = replies[:limit]
	}
	return replies, nil
}

func (m *mockLinkRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

type mockSuggestionRepo struct {
	mu          sync.Mutex
	suggestions map[uuid.UUID]*models.Suggestion
}

var _ repositories.SuggestionRepository = (*mockSuggestionRepo)(nil)

func newMockSuggestionRepo() *mockSuggestionRepo {
	return &mockSuggestionRepo{suggestions: make(map[uuid.UUID]*models.Suggestion)}
}

func (m *mockSuggestionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suggestions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *mockSuggestionRepo) GetByMessageAndShipment(_ context.Context, messageID, shipmentID uuid.UUID) (*models.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.suggestions {
		if s.MessageID == messageID && s.ShipmentID == shipmentID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockSuggestionRepo) Upsert(_ context.Context, s *models.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.suggestions {
		if existing.MessageID == s.MessageID && existing.ShipmentID == s.ShipmentID {
			copied := *s
			copied.ID = existing.ID
			m.suggestions[id] = &copied
			s.ID = existing.ID
			return nil
		}
	}
	copied := *s
	m.suggestions[s.ID] = &copied
	return nil
}

func (m *mockSuggestionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status models.SuggestionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.suggestions[id]; ok {
		s.Status = status
		now := time.Now()
		s.ReviewedAt = &now
	}
	return nil
}

func (m *mockSuggestionRepo) ListPending(_ context.Context, limit, offset int) ([]*models.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Suggestion
	for _, s := range m.suggestions {
		if s.Status == models.SuggestionPending {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSuggestionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.suggestions)
}

type mockConflictRepo struct {
	mu        sync.Mutex
	conflicts []*models.Conflict
}

var _ repositories.ConflictRepository = (*mockConflictRepo)(nil)

func (m *mockConflictRepo) Create(_ context.Context, c *models.Conflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	m.conflicts = append(m.conflicts, &copied)
	return nil
}

func (m *mockConflictRepo) ListByMessage(_ context.Context, messageID uuid.UUID) ([]*models.Conflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Conflict
	for _, c := range m.conflicts {
		if c.MessageID == messageID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockConflictRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conflicts)
}

type mockThreadAuthorityRepo struct {
	mu          sync.Mutex
	authorities map[string]*models.ThreadAuthority
	getCalls    int
}

var _ repositories.ThreadAuthorityRepository = (*mockThreadAuthorityRepo)(nil)

func newMockThreadAuthorityRepo() *mockThreadAuthorityRepo {
	return &mockThreadAuthorityRepo{authorities: make(map[string]*models.ThreadAuthority)}
}

func (m *mockThreadAuthorityRepo) Get(_ context.Context, threadID string) (*models.ThreadAuthority, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	a, ok := m.authorities[threadID]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (m *mockThreadAuthorityRepo) Upsert(_ context.Context, authority *models.ThreadAuthority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *authority
	m.authorities[authority.ThreadID] = &copied
	return nil
}

func (m *mockThreadAuthorityRepo) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.authorities, threadID)
	return nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
	failErr error
}

var _ repositories.AuditRepository = (*mockAuditRepo)(nil)

func (m *mockAuditRepo) Append(_ context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *mockAuditRepo) ListByMessage(_ context.Context, messageID uuid.UUID) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range m.entries {
		if e.MessageID == messageID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockAuditRepo) operations() []models.AuditOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]models.AuditOperation, 0, len(m.entries))
	for _, e := range m.entries {
		ops = append(ops, e.Operation)
	}
	return ops
}
