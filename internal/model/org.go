package model

import "time"

type Org struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           int       `json:"id"`
	OrgID        int       `json:"org_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID  int
	OrgID   int
	IsAdmin bool
}

type Account struct {
	ID          int       `json:"id"`
	OrgID       int       `json:"org_id"`
	Name        string    `json:"name"`
	Industry    *string   `json:"industry,omitempty"`
	Size        *string   `json:"size,omitempty"`
	Country     *string   `json:"country,omitempty"`
	OwnerUserID *int      `json:"owner_user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Contact struct {
	ID        int     `json:"id"`
	AccountID int     `json:"account_id"`
	Name      string  `json:"name"`
	Title     *string `json:"title,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Email     *string `json:"email,omitempty"`
}
