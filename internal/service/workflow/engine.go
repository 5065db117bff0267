package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	mqcontract "bdos/contracts/mq"
	"bdos/internal/model"
	"bdos/pkg/logger"
	"bdos/pkg/metrics"
	"bdos/pkg/trace"
)

const (
	aggregateProject      = "project"
	aggregateProjectStage = "project_stage"
)

// Engine owns every mutation of per-project stage state.
type Engine struct {
	catalog Catalog
	store   Store
	logger  *zap.Logger
	now     func() time.Time
}

func NewEngine(catalog Catalog, store Store, logger *zap.Logger) *Engine {
	return &Engine{
		catalog: catalog,
		store:   store,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Instantiate creates one todo stage per catalog template, in catalog order,
// with an undone checklist entry per checklist template and a draft v1
// deliverable per deliverable template. It must run inside the transaction
// that persisted project. Returns the number of stages created.
func (e *Engine) Instantiate(ctx context.Context, tx Tx, project *model.Project) (int, error) {
	existing, err := tx.CountProjectStages(ctx, project.ID)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, model.ErrAlreadyInstantiated
	}

	templates, err := e.catalog.StageTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("load stage templates: %w", err)
	}

	now := e.now()
	for _, st := range templates {
		ps := &model.ProjectStage{
			ProjectID: project.ID,
			StageID:   st.ID,
			Status:    model.StageTodo,
		}
		if err := tx.InsertProjectStage(ctx, ps); err != nil {
			return 0, fmt.Errorf("insert stage %s: %w", st.Code, err)
		}

		for _, item := range st.Checklist {
			entry := &model.ChecklistEntry{ProjectStageID: ps.ID, ItemID: item.ID}
			if err := tx.InsertChecklistEntry(ctx, entry); err != nil {
				return 0, fmt.Errorf("insert checklist entry for %s: %w", st.Code, err)
			}
		}

		for _, dt := range st.Deliverables {
			d := &model.Deliverable{
				ProjectStageID: ps.ID,
				DeliverableID:  dt.ID,
				Status:         model.DeliverableDraft,
				Version:        1,
				UpdatedAt:      now,
			}
			if err := tx.InsertDeliverable(ctx, d); err != nil {
				return 0, fmt.Errorf("insert deliverable for %s: %w", st.Code, err)
			}
		}
	}

	return len(templates), nil
}

// CreateProject inserts an active project under one of the actor's accounts
// and instantiates its stages in the same transaction.
func (e *Engine) CreateProject(ctx context.Context, actor model.Actor, in model.NewProject) (*model.Project, error) {
	log := logger.WithTrace(ctx, e.logger)

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", model.ErrInvalidInput)
	}

	var project *model.Project
	err := e.store.Atomic(ctx, actor.OrgID, "create_project", func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetAccount(ctx, in.AccountID); err != nil {
			return err
		}

		now := e.now()
		p := &model.Project{
			OrgID:      actor.OrgID,
			AccountID:  in.AccountID,
			Name:       name,
			Package:    optional(in.Package),
			LeadSource: optional(in.LeadSource),
			Status:     model.ProjectActive,
			StartDate:  now,
		}
		if err := tx.InsertProject(ctx, p); err != nil {
			return err
		}

		count, err := e.Instantiate(ctx, tx, p)
		if err != nil {
			return err
		}

		project = p
		return tx.AppendEvent(ctx, aggregateProject, p.ID, mqcontract.RoutingProjectCreated, mqcontract.ProjectCreatedPayload{
			TraceID:    trace.FromContext(ctx),
			OrgID:      actor.OrgID,
			ProjectID:  p.ID,
			AccountID:  p.AccountID,
			Name:       p.Name,
			StageCount: count,
			CreatedBy:  actor.UserID,
		})
	})
	if err != nil {
		log.Warn("Create project failed",
			zap.Int("org_id", actor.OrgID),
			zap.Int("account_id", in.AccountID),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.ProjectsInstantiated.Inc()
	log.Info("Project created",
		zap.Int("project_id", project.ID),
		zap.Int("org_id", actor.OrgID),
	)
	return project, nil
}

// InstantiateExisting runs instantiation for a project that is already
// persisted. A project that has stages yields model.ErrAlreadyInstantiated.
func (e *Engine) InstantiateExisting(ctx context.Context, actor model.Actor, projectID int) (int, error) {
	var count int
	err := e.store.Atomic(ctx, actor.OrgID, "instantiate", func(ctx context.Context, tx Tx) error {
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		count, err = e.Instantiate(ctx, tx, p)
		return err
	})
	if err != nil {
		return 0, err
	}

	metrics.ProjectsInstantiated.Inc()
	return count, nil
}

// ToggleChecklist flips one checklist entry. Stage status is not touched.
func (e *Engine) ToggleChecklist(ctx context.Context, actor model.Actor, projectID, projectStageID, entryID int) (*model.ChecklistEntry, error) {
	var out model.ChecklistEntry
	err := e.store.Atomic(ctx, actor.OrgID, "toggle_checklist", func(ctx context.Context, tx Tx) error {
		entry, err := tx.GetChecklistEntry(ctx, projectID, projectStageID, entryID)
		if err != nil {
			return err
		}
		out = ToggleEntry(*entry, actor.UserID, e.now())
		return tx.UpdateChecklistEntry(ctx, &out)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrementChecklistToggle(out.Done)
	return &out, nil
}

// UpdateDeliverable overwrites a deliverable's content and derives its status.
func (e *Engine) UpdateDeliverable(ctx context.Context, actor model.Actor, projectID, projectStageID, deliverableID int, content string) (*model.Deliverable, error) {
	var out model.Deliverable
	err := e.store.Atomic(ctx, actor.OrgID, "update_deliverable", func(ctx context.Context, tx Tx) error {
		d, err := tx.GetDeliverable(ctx, projectID, projectStageID, deliverableID)
		if err != nil {
			return err
		}
		out = ApplyContent(*d, content, e.now())
		if err := tx.UpdateDeliverable(ctx, &out); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, aggregateProjectStage, projectStageID, mqcontract.RoutingDeliverableUpdated, mqcontract.DeliverableUpdatedPayload{
			TraceID:        trace.FromContext(ctx),
			OrgID:          actor.OrgID,
			ProjectID:      projectID,
			ProjectStageID: projectStageID,
			DeliverableID:  out.ID,
			Status:         out.Status,
			UpdatedBy:      actor.UserID,
			UpdatedAt:      out.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrementDeliverableUpdate(out.Status)
	return &out, nil
}

// Decide records an approval decision and moves the stage to done or blocked.
// Exactly one Approval row is appended per call.
func (e *Engine) Decide(ctx context.Context, actor model.Actor, projectID, projectStageID int, decision, comment string) (*model.ProjectStage, error) {
	log := logger.WithTrace(ctx, e.logger)

	templates, err := e.catalog.StageTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stage templates: %w", err)
	}

	var out model.ProjectStage
	err = e.store.Atomic(ctx, actor.OrgID, "decide", func(ctx context.Context, tx Tx) error {
		ps, err := tx.GetProjectStage(ctx, projectID, projectStageID)
		if err != nil {
			return err
		}

		now := e.now()
		if err := tx.InsertApproval(ctx, &model.Approval{
			ProjectStageID: ps.ID,
			Decision:       decision,
			Comment:        optional(comment),
			ByUser:         actor.UserID,
			At:             now,
		}); err != nil {
			return err
		}

		out = ApplyDecision(*ps, decision, actor.UserID, now)
		if err := tx.UpdateProjectStage(ctx, &out); err != nil {
			return err
		}

		var code string
		if st, ok := findStage(templates, ps.StageID); ok {
			code = st.Code
		}
		return tx.AppendEvent(ctx, aggregateProjectStage, ps.ID, mqcontract.RoutingStageDecided, mqcontract.StageDecidedPayload{
			TraceID:        trace.FromContext(ctx),
			OrgID:          actor.OrgID,
			ProjectID:      projectID,
			ProjectStageID: ps.ID,
			StageCode:      code,
			Decision:       decision,
			Status:         out.Status,
			Comment:        comment,
			DecidedBy:      actor.UserID,
			DecidedAt:      now,
		})
	})
	if err != nil {
		return nil, err
	}

	label := model.DecisionReject
	if out.Status == model.StageDone {
		label = model.DecisionApprove
	}
	metrics.IncrementStageDecision(label)
	log.Info("Stage decision recorded",
		zap.Int("project_id", projectID),
		zap.Int("project_stage_id", projectStageID),
		zap.String("decision", decision),
		zap.String("status", out.Status),
		zap.Int("by_user", actor.UserID),
	)
	return &out, nil
}

// ProjectProgress returns the percentage of the project's stages that are done.
func (e *Engine) ProjectProgress(ctx context.Context, actor model.Actor, projectID int) (int, error) {
	var progress int
	err := e.store.Atomic(ctx, actor.OrgID, "project_progress", func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		stages, err := tx.ListProjectStages(ctx, projectID)
		if err != nil {
			return err
		}
		progress = Progress(stages)
		return nil
	})
	return progress, err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
