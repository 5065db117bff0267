package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bdos/internal/model"
)

// collect drains rows through scan. A limit of 0 is passed to SQL as
// LIMIT NULL, i.e. unbounded.
func collect[T any](rows pgx.Rows, err error, what string, scan func(pgx.Row) (*T, error)) ([]T, error) {
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *Scope) ListAccounts(ctx context.Context, limit int) ([]model.Account, error) {
	rows, err := s.q.Query(ctx, `
        SELECT `+accountColumns+`
        FROM accounts a
        WHERE a.org_id = $1
        ORDER BY a.created_at DESC, a.id DESC
        LIMIT NULLIF($2, 0)
    `, s.orgID, limit)
	return collect(rows, err, "accounts", scanAccount)
}

func (s *Scope) InsertAccount(ctx context.Context, a *model.Account) error {
	a.OrgID = s.orgID
	err := s.q.QueryRow(ctx, `
        INSERT INTO accounts (org_id, name, industry, size, country, owner_user_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at
    `, s.orgID, a.Name, a.Industry, a.Size, a.Country, a.OwnerUserID).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func scanContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	if err := row.Scan(&c.ID, &c.AccountID, &c.Name, &c.Title, &c.Phone, &c.Email); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Scope) ListContacts(ctx context.Context, accountID int) ([]model.Contact, error) {
	rows, err := s.q.Query(ctx, `
        SELECT c.id, c.account_id, c.name, c.title, c.phone, c.email
        FROM contacts c
        JOIN accounts a ON a.id = c.account_id
        WHERE c.account_id = $1 AND a.org_id = $2
        ORDER BY c.id ASC
    `, accountID, s.orgID)
	return collect(rows, err, "contacts", scanContact)
}

func (s *Scope) InsertContact(ctx context.Context, c *model.Contact) error {
	err := s.q.QueryRow(ctx, `
        INSERT INTO contacts (account_id, name, title, phone, email)
        SELECT a.id, $2, $3, $4, $5
        FROM accounts a
        WHERE a.id = $1 AND a.org_id = $6
        RETURNING id
    `, c.AccountID, c.Name, c.Title, c.Phone, c.Email, s.orgID).Scan(&c.ID)
	if err != nil {
		return notFound(err)
	}
	return nil
}

func (s *Scope) ListProjects(ctx context.Context, limit int) ([]model.Project, error) {
	rows, err := s.q.Query(ctx, `
        SELECT `+projectColumns+`
        FROM projects p
        WHERE p.org_id = $1
        ORDER BY p.created_at DESC, p.id DESC
        LIMIT NULLIF($2, 0)
    `, s.orgID, limit)
	return collect(rows, err, "projects", scanProject)
}

func (s *Scope) ListAccountProjects(ctx context.Context, accountID int) ([]model.Project, error) {
	rows, err := s.q.Query(ctx, `
        SELECT `+projectColumns+`
        FROM projects p
        WHERE p.account_id = $1 AND p.org_id = $2
        ORDER BY p.created_at DESC, p.id DESC
    `, accountID, s.orgID)
	return collect(rows, err, "account projects", scanProject)
}

// ListChecklist returns entries in template order.
func (s *Scope) ListChecklist(ctx context.Context, projectID, projectStageID int) ([]model.ChecklistEntry, error) {
	rows, err := s.q.Query(ctx, `
        SELECT `+checklistColumns+`
        FROM project_checklist pc
        JOIN project_stages ps ON ps.id = pc.project_stage_id
        JOIN projects p ON p.id = ps.project_id
        WHERE pc.project_stage_id = $1 AND ps.project_id = $2 AND p.org_id = $3
        ORDER BY pc.item_id ASC
    `, projectStageID, projectID, s.orgID)
	return collect(rows, err, "checklist", scanChecklistEntry)
}

func (s *Scope) ListDeliverables(ctx context.Context, projectID, projectStageID int) ([]model.Deliverable, error) {
	rows, err := s.q.Query(ctx, `
        SELECT `+deliverableColumns+`
        FROM project_deliverables pd
        JOIN project_stages ps ON ps.id = pd.project_stage_id
        JOIN projects p ON p.id = ps.project_id
        WHERE pd.project_stage_id = $1 AND ps.project_id = $2 AND p.org_id = $3
        ORDER BY pd.deliverable_id ASC
    `, projectStageID, projectID, s.orgID)
	return collect(rows, err, "deliverables", scanDeliverable)
}

func scanApproval(row pgx.Row) (*model.Approval, error) {
	var a model.Approval
	if err := row.Scan(&a.ID, &a.ProjectStageID, &a.Decision, &a.Comment, &a.ByUser, &a.At); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListApprovals returns the decision history, newest first.
func (s *Scope) ListApprovals(ctx context.Context, projectID, projectStageID int) ([]model.Approval, error) {
	rows, err := s.q.Query(ctx, `
        SELECT ap.id, ap.project_stage_id, ap.decision, ap.comment, ap.by_user, ap.at
        FROM approvals ap
        JOIN project_stages ps ON ps.id = ap.project_stage_id
        JOIN projects p ON p.id = ps.project_id
        WHERE ap.project_stage_id = $1 AND ps.project_id = $2 AND p.org_id = $3
        ORDER BY ap.at DESC, ap.id DESC
    `, projectStageID, projectID, s.orgID)
	return collect(rows, err, "approvals", scanApproval)
}

// ---- tasks ----

const taskColumns = `t.id, t.project_id, t.project_stage_id, t.title, t.owner_user_id, t.status, t.priority, t.due_date, t.created_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	if err := row.Scan(&t.ID, &t.ProjectID, &t.ProjectStageID, &t.Title, &t.OwnerUserID, &t.Status, &t.Priority, &t.DueDate, &t.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Scope) ListTasks(ctx context.Context, projectID, limit int) ([]model.Task, error) {
	rows, err := s.q.Query(ctx, `
        SELECT `+taskColumns+`
        FROM tasks t
        JOIN projects p ON p.id = t.project_id
        WHERE t.project_id = $1 AND p.org_id = $2
        ORDER BY t.created_at DESC, t.id DESC
        LIMIT NULLIF($3, 0)
    `, projectID, s.orgID, limit)
	return collect(rows, err, "tasks", scanTask)
}

func (s *Scope) InsertTask(ctx context.Context, t *model.Task) error {
	err := s.q.QueryRow(ctx, `
        INSERT INTO tasks (project_id, project_stage_id, title, owner_user_id, status, priority, due_date)
        SELECT p.id, $2::int, $3, $4::int, $5, $6, $7::timestamptz
        FROM projects p
        WHERE p.id = $1 AND p.org_id = $8
        RETURNING id, created_at
    `, t.ProjectID, t.ProjectStageID, t.Title, t.OwnerUserID, t.Status, t.Priority, t.DueDate, s.orgID).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return notFound(err)
	}
	return nil
}

func (s *Scope) SetTaskStatus(ctx context.Context, taskID int, status string) (*model.Task, error) {
	return scanTask(s.q.QueryRow(ctx, `
        UPDATE tasks t
        SET status = $1
        FROM projects p
        WHERE t.id = $2 AND p.id = t.project_id AND p.org_id = $3
        RETURNING `+taskColumns+`
    `, status, taskID, s.orgID))
}

// OverdueTaskCount counts open tasks whose due date is before now.
func (s *Scope) OverdueTaskCount(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.q.QueryRow(ctx, `
        SELECT COUNT(*)
        FROM tasks t
        JOIN projects p ON p.id = t.project_id
        WHERE p.org_id = $1 AND t.status <> $2 AND t.due_date IS NOT NULL AND t.due_date < $3
    `, s.orgID, model.TaskDone, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count overdue tasks: %w", err)
	}
	return n, nil
}

// ---- opportunities ----

func scanOpportunity(row pgx.Row) (*model.Opportunity, error) {
	var o model.Opportunity
	if err := row.Scan(&o.ID, &o.ProjectID, &o.Title, &o.OType, &o.ValueEstimate, &o.Probability, &o.Stage, &o.Notes, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Scope) ListOpportunities(ctx context.Context, projectID, limit int) ([]model.Opportunity, error) {
	rows, err := s.q.Query(ctx, `
        SELECT o.id, o.project_id, o.title, o.otype, o.value_estimate, o.probability, o.stage, o.notes, o.created_at
        FROM opportunities o
        JOIN projects p ON p.id = o.project_id
        WHERE o.project_id = $1 AND p.org_id = $2
        ORDER BY o.created_at DESC, o.id DESC
        LIMIT NULLIF($3, 0)
    `, projectID, s.orgID, limit)
	return collect(rows, err, "opportunities", scanOpportunity)
}

func (s *Scope) InsertOpportunity(ctx context.Context, o *model.Opportunity) error {
	err := s.q.QueryRow(ctx, `
        INSERT INTO opportunities (project_id, title, otype, value_estimate, probability, stage, notes)
        SELECT p.id, $2, $3, $4::int, $5::int, $6, $7
        FROM projects p
        WHERE p.id = $1 AND p.org_id = $8
        RETURNING id, created_at
    `, o.ProjectID, o.Title, o.OType, o.ValueEstimate, o.Probability, o.Stage, o.Notes, s.orgID).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return notFound(err)
	}
	return nil
}
