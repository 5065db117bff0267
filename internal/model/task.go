package model

import "time"

const (
	TaskTodo  = "todo"
	TaskDoing = "doing"
	TaskDone  = "done"
)

const (
	PriorityLow  = "low"
	PriorityMed  = "med"
	PriorityHigh = "high"
)

type Task struct {
	ID             int        `json:"id"`
	ProjectID      int        `json:"project_id"`
	ProjectStageID *int       `json:"project_stage_id,omitempty"`
	Title          string     `json:"title"`
	OwnerUserID    *int       `json:"owner_user_id,omitempty"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ValidTaskStatus reports whether s is a task status.
func ValidTaskStatus(s string) bool {
	return s == TaskTodo || s == TaskDoing || s == TaskDone
}

func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMed || p == PriorityHigh
}

const (
	OpportunityPartnership = "partnership"
	OpportunityChannel     = "channel"
	OpportunityDeal        = "deal"
)

type Opportunity struct {
	ID            int       `json:"id"`
	ProjectID     int       `json:"project_id"`
	Title         string    `json:"title"`
	OType         string    `json:"otype"`
	ValueEstimate *int      `json:"value_estimate,omitempty"`
	Probability   *int      `json:"probability,omitempty"`
	Stage         string    `json:"stage"` // new / qualified / pitched / won / lost
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
