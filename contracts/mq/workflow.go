package mq

import "time"

// Routing keys published on the bdos.events exchange.
const (
	RoutingProjectCreated     = "project.created"
	RoutingStageDecided       = "stage.decided"
	RoutingDeliverableUpdated = "deliverable.updated"
)

// ProjectCreatedPayload is emitted once a project and all its stages are committed.
type ProjectCreatedPayload struct {
	TraceID    string `json:"trace_id,omitempty"`
	OrgID      int    `json:"org_id"`
	ProjectID  int    `json:"project_id"`
	AccountID  int    `json:"account_id"`
	Name       string `json:"name"`
	StageCount int    `json:"stage_count"`
	CreatedBy  int    `json:"created_by"`
}

// StageDecidedPayload 审批决定事件
type StageDecidedPayload struct {
	TraceID        string    `json:"trace_id,omitempty"`
	OrgID          int       `json:"org_id"`
	ProjectID      int       `json:"project_id"`
	ProjectStageID int       `json:"project_stage_id"`
	StageCode      string    `json:"stage_code"`
	Decision       string    `json:"decision"`
	Status         string    `json:"status"` // done / blocked
	Comment        string    `json:"comment,omitempty"`
	DecidedBy      int       `json:"decided_by"`
	DecidedAt      time.Time `json:"decided_at"`
}

type DeliverableUpdatedPayload struct {
	TraceID        string    `json:"trace_id,omitempty"`
	OrgID          int       `json:"org_id"`
	ProjectID      int       `json:"project_id"`
	ProjectStageID int       `json:"project_stage_id"`
	DeliverableID  int       `json:"deliverable_id"`
	Status         string    `json:"status"` // draft / submitted
	UpdatedBy      int       `json:"updated_by"`
	UpdatedAt      time.Time `json:"updated_at"`
}
