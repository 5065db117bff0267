package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"bdos/internal/model"
	"bdos/pkg/db"
	"bdos/pkg/outbox"
)

// Scope is bound to one org and one Querier (the pool or an open
// transaction). Every statement joins back to projects.org_id or
// accounts.org_id, so ids owned by another org are indistinguishable from
// missing rows.
type Scope struct {
	q        db.Querier
	orgID    int
	appender *outbox.Appender
	logger   *zap.Logger
	// inTx is set for scopes handed out by WorkflowStore.Atomic; only those take row locks.
	inTx bool
}

func newScope(q db.Querier, orgID int, appender *outbox.Appender, logger *zap.Logger) *Scope {
	return &Scope{q: q, orgID: orgID, appender: appender, logger: logger}
}

// lockRows returns the row-lock clause for alias, or nothing outside a transaction.
func (s *Scope) lockRows(alias string) string {
	if !s.inTx {
		return ""
	}
	return "FOR UPDATE OF " + alias
}

// OrgID returns the org this scope is bound to.
func (s *Scope) OrgID() int {
	return s.orgID
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// instantiationErr maps the unique keys on project_stages and its children
// to model.ErrAlreadyInstantiated.
func instantiationErr(what string, err error) error {
	if db.IsUniqueViolation(err) {
		return model.ErrAlreadyInstantiated
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return fmt.Errorf("insert %s: %w", what, err)
}

// ---- accounts ----

const accountColumns = `a.id, a.org_id, a.name, a.industry, a.size, a.country, a.owner_user_id, a.created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.OrgID, &a.Name, &a.Industry, &a.Size, &a.Country, &a.OwnerUserID, &a.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Scope) GetAccount(ctx context.Context, accountID int) (*model.Account, error) {
	return scanAccount(s.q.QueryRow(ctx, `
        SELECT `+accountColumns+`
        FROM accounts a
        WHERE a.id = $1 AND a.org_id = $2
    `, accountID, s.orgID))
}

// ---- projects ----

const projectColumns = `p.id, p.org_id, p.account_id, p.name, p.package, p.lead_source, p.status, p.start_date, p.created_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(&p.ID, &p.OrgID, &p.AccountID, &p.Name, &p.Package, &p.LeadSource, &p.Status, &p.StartDate, &p.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// InsertProject stores p under the scope's org. The account must belong to
// the same org.
func (s *Scope) InsertProject(ctx context.Context, p *model.Project) error {
	p.OrgID = s.orgID
	err := s.q.QueryRow(ctx, `
        INSERT INTO projects (org_id, account_id, name, package, lead_source, status, start_date)
        SELECT $1, a.id, $3, $4, $5, $6, $7::timestamptz
        FROM accounts a
        WHERE a.id = $2 AND a.org_id = $1
        RETURNING id, created_at
    `, s.orgID, p.AccountID, p.Name, p.Package, p.LeadSource, p.Status, p.StartDate).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return notFound(err)
	}
	s.logger.Debug("Inserted project", zap.Int("project_id", p.ID), zap.Int("org_id", s.orgID))
	return nil
}

func (s *Scope) GetProject(ctx context.Context, projectID int) (*model.Project, error) {
	return scanProject(s.q.QueryRow(ctx, `
        SELECT `+projectColumns+`
        FROM projects p
        WHERE p.id = $1 AND p.org_id = $2
    `, projectID, s.orgID))
}

// ---- project stages ----

const projectStageColumns = `ps.id, ps.project_id, ps.stage_id, ps.status, ps.started_at, ps.completed_at, ps.approved_by, ps.approved_at`

func scanProjectStage(row pgx.Row) (*model.ProjectStage, error) {
	var ps model.ProjectStage
	if err := row.Scan(&ps.ID, &ps.ProjectID, &ps.StageID, &ps.Status, &ps.StartedAt, &ps.CompletedAt, &ps.ApprovedBy, &ps.ApprovedAt); err != nil {
		return nil, notFound(err)
	}
	return &ps, nil
}

func (s *Scope) CountProjectStages(ctx context.Context, projectID int) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
        SELECT COUNT(*)
        FROM project_stages ps
        JOIN projects p ON p.id = ps.project_id
        WHERE ps.project_id = $1 AND p.org_id = $2
    `, projectID, s.orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count project stages: %w", err)
	}
	return n, nil
}

func (s *Scope) InsertProjectStage(ctx context.Context, ps *model.ProjectStage) error {
	err := s.q.QueryRow(ctx, `
        INSERT INTO project_stages (project_id, stage_id, status)
        SELECT p.id, $2::int, $3
        FROM projects p
        WHERE p.id = $1 AND p.org_id = $4
        RETURNING id
    `, ps.ProjectID, ps.StageID, ps.Status, s.orgID).Scan(&ps.ID)
	if err != nil {
		return instantiationErr("project stage", err)
	}
	return nil
}

func (s *Scope) InsertChecklistEntry(ctx context.Context, e *model.ChecklistEntry) error {
	err := s.q.QueryRow(ctx, `
        INSERT INTO project_checklist (project_stage_id, item_id, done)
        SELECT ps.id, $2::int, $3::boolean
        FROM project_stages ps
        JOIN projects p ON p.id = ps.project_id
        WHERE ps.id = $1 AND p.org_id = $4
        RETURNING id
    `, e.ProjectStageID, e.ItemID, e.Done, s.orgID).Scan(&e.ID)
	if err != nil {
		return instantiationErr("checklist entry", err)
	}
	return nil
}

func (s *Scope) InsertDeliverable(ctx context.Context, d *model.Deliverable) error {
	err := s.q.QueryRow(ctx, `
        INSERT INTO project_deliverables (project_stage_id, deliverable_id, status, content, file_url, version, updated_at)
        SELECT ps.id, $2::int, $3, $4, $5, $6::int, $7::timestamptz
        FROM project_stages ps
        JOIN projects p ON p.id = ps.project_id
        WHERE ps.id = $1 AND p.org_id = $8
        RETURNING id
    `, d.ProjectStageID, d.DeliverableID, d.Status, d.Content, d.FileURL, d.Version, d.UpdatedAt, s.orgID).Scan(&d.ID)
	if err != nil {
		return instantiationErr("deliverable", err)
	}
	return nil
}

// ListProjectStages returns the stages of a project in catalog order.
// An unknown project yields model.ErrNotFound rather than an empty list.
func (s *Scope) ListProjectStages(ctx context.Context, projectID int) ([]model.ProjectStage, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, `
        SELECT `+projectStageColumns+`
        FROM project_stages ps
        JOIN stages st ON st.id = ps.stage_id
        WHERE ps.project_id = $1
        ORDER BY st."order" ASC
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("query project stages: %w", err)
	}
	defer rows.Close()

	var out []model.ProjectStage
	for rows.Next() {
		ps, err := scanProjectStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ps)
	}
	return out, rows.Err()
}

// GetProjectStage locks the row inside a transaction so concurrent decisions
// on the same stage serialize. Read scopes take no lock.
func (s *Scope) GetProjectStage(ctx context.Context, projectID, projectStageID int) (*model.ProjectStage, error) {
	return scanProjectStage(s.q.QueryRow(ctx, `
        SELECT `+projectStageColumns+`
        FROM project_stages ps
        JOIN projects p ON p.id = ps.project_id
        WHERE ps.id = $1 AND ps.project_id = $2 AND p.org_id = $3
        `+s.lockRows("ps")+`
    `, projectStageID, projectID, s.orgID))
}

func (s *Scope) UpdateProjectStage(ctx context.Context, ps *model.ProjectStage) error {
	tag, err := s.q.Exec(ctx, `
        UPDATE project_stages ps
        SET status = $1, started_at = $2, completed_at = $3, approved_by = $4, approved_at = $5
        FROM projects p
        WHERE ps.id = $6 AND p.id = ps.project_id AND p.org_id = $7
    `, ps.Status, ps.StartedAt, ps.CompletedAt, ps.ApprovedBy, ps.ApprovedAt, ps.ID, s.orgID)
	if err != nil {
		return fmt.Errorf("update project stage %d: %w", ps.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Scope) InsertApproval(ctx context.Context, a *model.Approval) error {
	err := s.q.QueryRow(ctx, `
        INSERT INTO approvals (project_stage_id, decision, comment, by_user, at)
        SELECT ps.id, $2, $3, $4::int, $5::timestamptz
        FROM project_stages ps
        JOIN projects p ON p.id = ps.project_id
        WHERE ps.id = $1 AND p.org_id = $6
        RETURNING id
    `, a.ProjectStageID, a.Decision, a.Comment, a.ByUser, a.At, s.orgID).Scan(&a.ID)
	if err != nil {
		return notFound(err)
	}
	return nil
}

// ---- checklist ----

const checklistColumns = `pc.id, pc.project_stage_id, pc.item_id, pc.done, pc.done_by, pc.done_at`

func scanChecklistEntry(row pgx.Row) (*model.ChecklistEntry, error) {
	var e model.ChecklistEntry
	if err := row.Scan(&e.ID, &e.ProjectStageID, &e.ItemID, &e.Done, &e.DoneBy, &e.DoneAt); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Scope) GetChecklistEntry(ctx context.Context, projectID, projectStageID, entryID int) (*model.ChecklistEntry, error) {
	return scanChecklistEntry(s.q.QueryRow(ctx, `
        SELECT `+checklistColumns+`
        FROM project_checklist pc
        JOIN project_stages ps ON ps.id = pc.project_stage_id
        JOIN projects p ON p.id = ps.project_id
        WHERE pc.id = $1 AND pc.project_stage_id = $2 AND ps.project_id = $3 AND p.org_id = $4
        `+s.lockRows("pc")+`
    `, entryID, projectStageID, projectID, s.orgID))
}

func (s *Scope) UpdateChecklistEntry(ctx context.Context, e *model.ChecklistEntry) error {
	tag, err := s.q.Exec(ctx, `
        UPDATE project_checklist pc
        SET done = $1, done_by = $2, done_at = $3
        FROM project_stages ps, projects p
        WHERE pc.id = $4 AND ps.id = pc.project_stage_id AND p.id = ps.project_id AND p.org_id = $5
    `, e.Done, e.DoneBy, e.DoneAt, e.ID, s.orgID)
	if err != nil {
		return fmt.Errorf("update checklist entry %d: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ---- deliverables ----

const deliverableColumns = `pd.id, pd.project_stage_id, pd.deliverable_id, pd.status, pd.content, pd.file_url, pd.version, pd.updated_at`

func scanDeliverable(row pgx.Row) (*model.Deliverable, error) {
	var d model.Deliverable
	if err := row.Scan(&d.ID, &d.ProjectStageID, &d.DeliverableID, &d.Status, &d.Content, &d.FileURL, &d.Version, &d.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (s *Scope) GetDeliverable(ctx context.Context, projectID, projectStageID, deliverableID int) (*model.Deliverable, error) {
	return scanDeliverable(s.q.QueryRow(ctx, `
        SELECT `+deliverableColumns+`
        FROM project_deliverables pd
        JOIN project_stages ps ON ps.id = pd.project_stage_id
        JOIN projects p ON p.id = ps.project_id
        WHERE pd.id = $1 AND pd.project_stage_id = $2 AND ps.project_id = $3 AND p.org_id = $4
        `+s.lockRows("pd")+`
    `, deliverableID, projectStageID, projectID, s.orgID))
}

func (s *Scope) UpdateDeliverable(ctx context.Context, d *model.Deliverable) error {
	tag, err := s.q.Exec(ctx, `
        UPDATE project_deliverables pd
        SET status = $1, content = $2, file_url = $3, version = $4, updated_at = $5
        FROM project_stages ps, projects p
        WHERE pd.id = $6 AND ps.id = pd.project_stage_id AND p.id = ps.project_id AND p.org_id = $7
    `, d.Status, d.Content, d.FileURL, d.Version, d.UpdatedAt, d.ID, s.orgID)
	if err != nil {
		return fmt.Errorf("update deliverable %d: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// AppendEvent is a no-op when the outbox is disabled.
func (s *Scope) AppendEvent(ctx context.Context, aggregateType string, aggregateID int, routingKey string, payload any) error {
	if s.appender == nil {
		return nil
	}
	return s.appender.Append(ctx, s.q, aggregateType, int64(aggregateID), routingKey, payload)
}
