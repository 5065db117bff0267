package model

import "time"

const (
	ProjectActive = "active"
	ProjectPaused = "paused"
	ProjectDone   = "done"
)

type Project struct {
	ID         int       `json:"id"`
	OrgID      int       `json:"org_id"`
	AccountID  int       `json:"account_id"`
	Name       string    `json:"name"`
	Package    *string   `json:"package,omitempty"`
	LeadSource *string   `json:"lead_source,omitempty"`
	Status     string    `json:"status"` // active / paused / done
	StartDate  time.Time `json:"start_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewProject is the caller-supplied part of a project.
type NewProject struct {
	AccountID  int
	Name       string
	Package    string
	LeadSource string
}
