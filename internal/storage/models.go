package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested decision does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotOwned is returned when a decision exists but belongs to a
// different owner than the caller. It is distinct from ErrNotFound so
// callers can tell "doesn't exist" from "not yours".
var ErrNotOwned = errors.New("not owned")

// Final decision values. The empty string means no decision yet.
const (
	DecisionYes       = "yes"
	DecisionNo        = "no"
	DecisionUndecided = "undecided"
)

// Field limits enforced at write time.
const (
	MaxQuestionRunes = 200
	MaxNotesRunes    = 500
	MaxTimeSpent     = 60
)

// ListItem is one entry in a decision's pros or cons list. Order within
// the list reflects the order items were added during the timed window.
type ListItem struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Decision is a persisted decision record.
type Decision struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"ownerId"`
	Question      string     `json:"question"`
	Pros          []ListItem `json:"pros"`
	Cons          []ListItem `json:"cons"`
	FinalDecision string     `json:"finalDecision"`
	Notes         string     `json:"notes"`
	TimeSpent     int        `json:"timeSpent"`
	IsCompleted   bool       `json:"isCompleted"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// NewDecision holds the caller-supplied fields for a create. The store
// assigns the id, owner, and createdAt itself.
type NewDecision struct {
	Question      string
	Pros          []ListItem
	Cons          []ListItem
	FinalDecision string
	Notes         string
	TimeSpent     int
	IsCompleted   bool
}

// DecisionUpdate is a partial update. Nil fields are left unchanged;
// non-nil fields overwrite, even with a zero value.
type DecisionUpdate struct {
	Question      *string
	Pros          *[]ListItem
	Cons          *[]ListItem
	FinalDecision *string
	Notes         *string
	TimeSpent     *int
	IsCompleted   *bool
}
