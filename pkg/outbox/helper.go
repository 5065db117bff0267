package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"bdos/pkg/db"
)

// Appender writes events through the caller's transaction.
type Appender struct {
	repo *Repository
}

func NewAppender(repo *Repository) *Appender {
	return &Appender{repo: repo}
}

// Append 在事务中插入事件到 outbox
func (a *Appender) Append(
	ctx context.Context,
	q db.Querier,
	aggregateType string,
	aggregateID int64,
	routingKey string,
	payload any,
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", routingKey, err)
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   &aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        StatusPending,
	}

	return a.repo.InsertEvent(ctx, q, event)
}
