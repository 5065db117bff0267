package model

import "time"

// Stage statuses.
const (
	StageTodo    = "todo"
	StageDoing   = "doing"
	StageDone    = "done"
	StageBlocked = "blocked"
)

// Deliverable statuses. DeliverableApproved is never assigned by any operation.
const (
	DeliverableDraft     = "draft"
	DeliverableSubmitted = "submitted"
	DeliverableApproved  = "approved"
)

// DecisionApprove is the only decision that completes a stage; anything else blocks it.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

type StageTemplate struct {
	ID           int                     `json:"id"`
	Code         string                  `json:"code"`
	Name         string                  `json:"name"`
	Order        int                     `json:"order"`
	Checklist    []ChecklistItemTemplate `json:"checklist"`
	Deliverables []DeliverableTemplate   `json:"deliverables"`
}

type ChecklistItemTemplate struct {
	ID       int    `json:"id"`
	StageID  int    `json:"stage_id"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

type DeliverableTemplate struct {
	ID       int    `json:"id"`
	StageID  int    `json:"stage_id"`
	Name     string `json:"name"`
	DType    string `json:"dtype"` // doc / file / link
	Required bool   `json:"required"`
}

type ProjectStage struct {
	ID          int        `json:"id"`
	ProjectID   int        `json:"project_id"`
	StageID     int        `json:"stage_id"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ApprovedBy  *int       `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

type ChecklistEntry struct {
	ID             int        `json:"id"`
	ProjectStageID int        `json:"project_stage_id"`
	ItemID         int        `json:"item_id"`
	Done           bool       `json:"done"`
	DoneBy         *int       `json:"done_by,omitempty"`
	DoneAt         *time.Time `json:"done_at,omitempty"`
}

type Deliverable struct {
	ID             int       `json:"id"`
	ProjectStageID int       `json:"project_stage_id"`
	DeliverableID  int       `json:"deliverable_id"`
	Status         string    `json:"status"`
	Content        *string   `json:"content,omitempty"`
	FileURL        *string   `json:"file_url,omitempty"`
	Version        int       `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Approval struct {
	ID             int       `json:"id"`
	ProjectStageID int       `json:"project_stage_id"`
	Decision       string    `json:"decision"`
	Comment        *string   `json:"comment,omitempty"`
	ByUser         int       `json:"by_user"`
	At             time.Time `json:"at"`
}
