package services

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/freightdesk/linkage-engine/pkg/metrics"
	"github.com/freightdesk/linkage-engine/pkg/models"
	"github.com/freightdesk/linkage-engine/pkg/repositories"
)

// Auditor records linking decisions. Writes are best effort: a failing audit
// sink never blocks or fails the decision that produced the entry.
type Auditor interface {
	Record(ctx context.Context, entry *models.AuditEntry)
}

type auditor struct {
	repo    repositories.AuditRepository
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAuditor creates a new Auditor. The circuit breaker sheds writes while
// the sink is unhealthy so a dead audit store cannot slow message processing.
func NewAuditor(repo repositories.AuditRepository, m *metrics.Metrics, logger *zap.Logger) Auditor {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit-log",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &auditor{
		repo:    repo,
		breaker: breaker,
		metrics: m,
		logger:  logger.Named("auditor"),
	}
}

var _ Auditor = (*auditor)(nil)

func (a *auditor) Record(ctx context.Context, entry *models.AuditEntry) {
	_, err := a.breaker.Execute(func() (interface{}, error) {
		return nil, a.repo.Append(ctx, entry)
	})
	if err != nil {
		a.metrics.AuditFailures.Inc()
		a.logger.Warn("audit write failed",
			zap.String("message_id", entry.MessageID.String()),
			zap.String("operation", string(entry.Operation)),
			zap.Error(err))
	}
}
