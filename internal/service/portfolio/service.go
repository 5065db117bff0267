package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"bdos/internal/model"
	"bdos/internal/service/workflow"
	"bdos/pkg/logger"
)

const (
	dashboardProjects = 25
	dashboardAccounts = 10
	detailTasks       = 10
	detailOpps        = 10
)

type NewAccount struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Size     string `json:"size"`
	Country  string `json:"country"`
}

type NewContact struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type NewTask struct {
	Title          string     `json:"title"`
	ProjectStageID int        `json:"project_stage_id"` // 0 means no stage
	Priority       string     `json:"priority"`
	DueDate        *time.Time `json:"due_date"`
}

// NewOpportunity keeps numeric fields as raw strings; they are parsed permissively.
type NewOpportunity struct {
	Title         string `json:"title"`
	OType         string `json:"otype"`
	ValueEstimate string `json:"value_estimate"`
	Probability   string `json:"probability"`
	Notes         string `json:"notes"`
}

// Service serves accounts, tasks, opportunities and the read views around
// the stage workflow.
type Service struct {
	scope  ScopeFunc
	stages StageLookup
	logger *zap.Logger
	now    func() time.Time
}

func NewService(scope ScopeFunc, stages StageLookup, logger *zap.Logger) *Service {
	return &Service{
		scope:  scope,
		stages: stages,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Dashboard returns the org's overdue task count with its most recent projects and accounts.
func (s *Service) Dashboard(ctx context.Context, actor model.Actor) (*Dashboard, error) {
	sc := s.scope(actor.OrgID)

	overdue, err := sc.OverdueTaskCount(ctx, s.now())
	if err != nil {
		return nil, err
	}
	projects, err := sc.ListProjects(ctx, dashboardProjects)
	if err != nil {
		return nil, err
	}
	accounts, err := sc.ListAccounts(ctx, dashboardAccounts)
	if err != nil {
		return nil, err
	}

	return &Dashboard{OverdueTasks: overdue, Projects: projects, Accounts: accounts}, nil
}

func (s *Service) ListAccounts(ctx context.Context, actor model.Actor) ([]model.Account, error) {
	return s.scope(actor.OrgID).ListAccounts(ctx, 0)
}

func (s *Service) CreateAccount(ctx context.Context, actor model.Actor, in NewAccount) (*model.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: account name is required", model.ErrInvalidInput)
	}

	owner := actor.UserID
	a := &model.Account{
		OrgID:       actor.OrgID,
		Name:        name,
		Industry:    optional(in.Industry),
		Size:        optional(in.Size),
		Country:     optional(in.Country),
		OwnerUserID: &owner,
	}
	if err := s.scope(actor.OrgID).InsertAccount(ctx, a); err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Account created",
		zap.Int("account_id", a.ID),
		zap.Int("org_id", actor.OrgID),
	)
	return a, nil
}

func (s *Service) GetAccount(ctx context.Context, actor model.Actor, accountID int) (*AccountView, error) {
	sc := s.scope(actor.OrgID)

	a, err := sc.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	contacts, err := sc.ListContacts(ctx, accountID)
	if err != nil {
		return nil, err
	}
	projects, err := sc.ListAccountProjects(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &AccountView{Account: *a, Contacts: contacts, Projects: projects}, nil
}

func (s *Service) AddContact(ctx context.Context, actor model.Actor, accountID int, in NewContact) (*model.Contact, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: contact name is required", model.ErrInvalidInput)
	}

	sc := s.scope(actor.OrgID)
	if _, err := sc.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	c := &model.Contact{
		AccountID: accountID,
		Name:      name,
		Title:     optional(in.Title),
		Phone:     optional(in.Phone),
		Email:     optional(in.Email),
	}
	if err := sc.InsertContact(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ProjectDetail returns the project's stages in catalog order with computed
// progress and its latest tasks and opportunities.
func (s *Service) ProjectDetail(ctx context.Context, actor model.Actor, projectID int) (*ProjectView, error) {
	sc := s.scope(actor.OrgID)

	p, err := sc.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	stages, err := sc.ListProjectStages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := sc.ListTasks(ctx, projectID, detailTasks)
	if err != nil {
		return nil, err
	}
	opps, err := sc.ListOpportunities(ctx, projectID, detailOpps)
	if err != nil {
		return nil, err
	}

	summaries := make([]StageSummary, 0, len(stages))
	for _, ps := range stages {
		summaries = append(summaries, s.summarize(ps))
	}

	return &ProjectView{
		Project:       *p,
		Progress:      workflow.Progress(stages),
		Stages:        summaries,
		Tasks:         s.taskViews(tasks),
		Opportunities: opps,
	}, nil
}

// StageDetail returns a stage with its checklist, deliverables and approval
// history, newest decision first.
func (s *Service) StageDetail(ctx context.Context, actor model.Actor, projectID, projectStageID int) (*StageView, error) {
	sc := s.scope(actor.OrgID)

	ps, err := sc.GetProjectStage(ctx, projectID, projectStageID)
	if err != nil {
		return nil, err
	}
	entries, err := sc.ListChecklist(ctx, projectID, projectStageID)
	if err != nil {
		return nil, err
	}
	deliverables, err := sc.ListDeliverables(ctx, projectID, projectStageID)
	if err != nil {
		return nil, err
	}
	approvals, err := sc.ListApprovals(ctx, projectID, projectStageID)
	if err != nil {
		return nil, err
	}

	st, _ := s.stages.Stage(ps.StageID)
	items := make(map[int]model.ChecklistItemTemplate, len(st.Checklist))
	for _, it := range st.Checklist {
		items[it.ID] = it
	}
	docs := make(map[int]model.DeliverableTemplate, len(st.Deliverables))
	for _, d := range st.Deliverables {
		docs[d.ID] = d
	}

	view := &StageView{
		ProjectID:    projectID,
		Stage:        s.summarize(*ps),
		Checklist:    make([]ChecklistView, 0, len(entries)),
		Deliverables: make([]DeliverableView, 0, len(deliverables)),
		Approvals:    approvals,
	}
	for _, e := range entries {
		it := items[e.ItemID]
		view.Checklist = append(view.Checklist, ChecklistView{ChecklistEntry: e, Text: it.Text, Required: it.Required})
	}
	for _, d := range deliverables {
		dt := docs[d.DeliverableID]
		view.Deliverables = append(view.Deliverables, DeliverableView{Deliverable: d, Name: dt.Name, DType: dt.DType, Required: dt.Required})
	}
	return view, nil
}

func (s *Service) ListTasks(ctx context.Context, actor model.Actor, projectID int) ([]TaskView, error) {
	sc := s.scope(actor.OrgID)
	if _, err := sc.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	tasks, err := sc.ListTasks(ctx, projectID, 0)
	if err != nil {
		return nil, err
	}
	return s.taskViews(tasks), nil
}

// CreateTask adds a todo task owned by the actor. Priority defaults to med.
func (s *Service) CreateTask(ctx context.Context, actor model.Actor, projectID int, in NewTask) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: task title is required", model.ErrInvalidInput)
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMed
	}
	if !model.ValidPriority(priority) {
		return nil, fmt.Errorf("%w: priority %q", model.ErrInvalidInput, priority)
	}

	sc := s.scope(actor.OrgID)
	if _, err := sc.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	var stageID *int
	if in.ProjectStageID != 0 {
		if _, err := sc.GetProjectStage(ctx, projectID, in.ProjectStageID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, fmt.Errorf("%w: stage %d is not part of project %d", model.ErrInvalidInput, in.ProjectStageID, projectID)
			}
			return nil, err
		}
		id := in.ProjectStageID
		stageID = &id
	}

	owner := actor.UserID
	t := &model.Task{
		ProjectID:      projectID,
		ProjectStageID: stageID,
		Title:          title,
		OwnerUserID:    &owner,
		Status:         model.TaskTodo,
		Priority:       priority,
		DueDate:        in.DueDate,
	}
	if err := sc.InsertTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) SetTaskStatus(ctx context.Context, actor model.Actor, taskID int, status string) (*model.Task, error) {
	if !model.ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: task status %q", model.ErrInvalidInput, status)
	}
	return s.scope(actor.OrgID).SetTaskStatus(ctx, taskID, status)
}

func (s *Service) ListOpportunities(ctx context.Context, actor model.Actor, projectID int) ([]model.Opportunity, error) {
	sc := s.scope(actor.OrgID)
	if _, err := sc.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return sc.ListOpportunities(ctx, projectID, 0)
}

// CreateOpportunity records a pipeline entry. Non-numeric value or probability
// input is stored as absent rather than rejected.
func (s *Service) CreateOpportunity(ctx context.Context, actor model.Actor, projectID int, in NewOpportunity) (*model.Opportunity, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: opportunity title is required", model.ErrInvalidInput)
	}
	otype := in.OType
	if otype == "" {
		otype = model.OpportunityPartnership
	}

	sc := s.scope(actor.OrgID)
	if _, err := sc.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	probability := ParseOptionalInt(in.Probability)
	if probability != nil && *probability > 100 {
		probability = nil
	}

	o := &model.Opportunity{
		ProjectID:     projectID,
		Title:         title,
		OType:         otype,
		ValueEstimate: ParseOptionalInt(in.ValueEstimate),
		Probability:   probability,
		Stage:         "new",
		Notes:         optional(in.Notes),
	}
	if err := sc.InsertOpportunity(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ParseOptionalInt accepts only unsigned decimal digits (surrounding space
// ignored). Anything else, including overflow, yields nil.
func ParseOptionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func (s *Service) summarize(ps model.ProjectStage) StageSummary {
	sum := StageSummary{ProjectStage: ps}
	if st, ok := s.stages.Stage(ps.StageID); ok {
		sum.Code = st.Code
		sum.Name = st.Name
		sum.Order = st.Order
	}
	return sum
}

func (s *Service) taskViews(tasks []model.Task) []TaskView {
	now := s.now()
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskView{Task: t, Overdue: workflow.IsOverdue(t, now)})
	}
	return out
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
