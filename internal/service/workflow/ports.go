package workflow

import (
	"context"

	"bdos/internal/model"
)

// Catalog is the read-only stage template source.
type Catalog interface {
	// StageTemplates returns every template ascending by Order, each with its
	// checklist and deliverable templates.
	StageTemplates(ctx context.Context) ([]model.StageTemplate, error)
}

// Tx is a transaction bound to one organization. Every lookup is filtered by
// that org; rows owned by another org come back as model.ErrNotFound.
type Tx interface {
	GetAccount(ctx context.Context, accountID int) (*model.Account, error)
	InsertProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, projectID int) (*model.Project, error)

	CountProjectStages(ctx context.Context, projectID int) (int, error)
	InsertProjectStage(ctx context.Context, ps *model.ProjectStage) error
	InsertChecklistEntry(ctx context.Context, e *model.ChecklistEntry) error
	InsertDeliverable(ctx context.Context, d *model.Deliverable) error

	ListProjectStages(ctx context.Context, projectID int) ([]model.ProjectStage, error)
	GetProjectStage(ctx context.Context, projectID, projectStageID int) (*model.ProjectStage, error)
	UpdateProjectStage(ctx context.Context, ps *model.ProjectStage) error
	InsertApproval(ctx context.Context, a *model.Approval) error

	GetChecklistEntry(ctx context.Context, projectID, projectStageID, entryID int) (*model.ChecklistEntry, error)
	UpdateChecklistEntry(ctx context.Context, e *model.ChecklistEntry) error
	GetDeliverable(ctx context.Context, projectID, projectStageID, deliverableID int) (*model.Deliverable, error)
	UpdateDeliverable(ctx context.Context, d *model.Deliverable) error

	// AppendEvent writes an outbox event that commits with the transaction.
	AppendEvent(ctx context.Context, aggregateType string, aggregateID int, routingKey string, payload any) error
}

// Store opens org-scoped transactions.
type Store interface {
	// Atomic runs fn in one transaction; any error rolls back every write.
	// fn must issue its queries with the ctx it is handed.
	Atomic(ctx context.Context, orgID int, operation string, fn func(ctx context.Context, tx Tx) error) error
}
