package portfolio

import "bdos/internal/model"

type Dashboard struct {
	OverdueTasks int             `json:"overdue_tasks"`
	Projects     []model.Project `json:"projects"`
	Accounts     []model.Account `json:"accounts"`
}

type AccountView struct {
	Account  model.Account   `json:"account"`
	Contacts []model.Contact `json:"contacts"`
	Projects []model.Project `json:"projects"`
}

// StageSummary is a project stage with its template's identity.
type StageSummary struct {
	model.ProjectStage
	Code  string `json:"code"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type ProjectView struct {
	Project       model.Project       `json:"project"`
	Progress      int                 `json:"progress"`
	Stages        []StageSummary      `json:"stages"`
	Tasks         []TaskView          `json:"tasks"`
	Opportunities []model.Opportunity `json:"opportunities"`
}

type ChecklistView struct {
	model.ChecklistEntry
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

type DeliverableView struct {
	model.Deliverable
	Name     string `json:"name"`
	DType    string `json:"dtype"`
	Required bool   `json:"required"`
}

type StageView struct {
	ProjectID    int               `json:"project_id"`
	Stage        StageSummary      `json:"stage"`
	Checklist    []ChecklistView   `json:"checklist"`
	Deliverables []DeliverableView `json:"deliverables"`
	Approvals    []model.Approval  `json:"approvals"`
}

type TaskView struct {
	model.Task
	Overdue bool `json:"overdue"`
}
