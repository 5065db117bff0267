package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bdos/internal/service/workflow"
	"bdos/pkg/db"
	"bdos/pkg/metrics"
	"bdos/pkg/otel"
	"bdos/pkg/outbox"
)

// WorkflowStore hands out org-bound scopes, either over the pool for reads
// or inside a transaction for workflow writes.
type WorkflowStore struct {
	pool     *pgxpool.Pool
	appender *outbox.Appender
	logger   *zap.Logger
}

// NewWorkflowStore creates the store. appender may be nil, in which case no
// outbox events are recorded.
func NewWorkflowStore(pool *pgxpool.Pool, appender *outbox.Appender, logger *zap.Logger) *WorkflowStore {
	return &WorkflowStore{pool: pool, appender: appender, logger: logger}
}

// ForOrg returns a non-transactional scope for orgID.
func (s *WorkflowStore) ForOrg(orgID int) *Scope {
	return newScope(s.pool, orgID, s.appender, s.logger)
}

// Atomic runs fn in one transaction bound to orgID.
func (s *WorkflowStore) Atomic(ctx context.Context, orgID int, operation string, fn func(ctx context.Context, tx workflow.Tx) error) error {
	start := time.Now()
	err := otel.InSpan(ctx, "workflow."+operation, func(ctx context.Context) error {
		return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			sc := newScope(tx, orgID, s.appender, s.logger)
			sc.inTx = true
			return fn(ctx, sc)
		})
	})
	metrics.RecordWorkflowTx(operation, err, time.Since(start))
	if err != nil {
		s.logger.Debug("Workflow transaction rolled back",
			zap.String("operation", operation),
			zap.Int("org_id", orgID),
			zap.Error(err),
		)
	}
	return err
}
