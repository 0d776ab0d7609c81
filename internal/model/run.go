package model

import "time"

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusNew       RunStatus = "NEW"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Terminal reports whether the status ends the run lifecycle.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// EntityTypeRun tags run rows so the listing index can range over them.
const EntityTypeRun = "RUN"

// Run is one query submission and its terminal outcome.
type Run struct {
	ID         string    `json:"id" dynamodbav:"id" yaml:"id"`
	EntityType string    `json:"entityType" dynamodbav:"entityType" yaml:"-"`
	Query      string    `json:"query" dynamodbav:"query" yaml:"query"`
	Location   string    `json:"location,omitempty" dynamodbav:"location,omitempty" yaml:"location,omitempty"`
	Status     RunStatus `json:"status" dynamodbav:"status" yaml:"status"`
	LeadsCount int       `json:"leadsCount" dynamodbav:"leadsCount" yaml:"leads_count"`
	Error      string    `json:"error,omitempty" dynamodbav:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"createdAt" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" dynamodbav:"updatedAt" yaml:"updated_at"`
}

// NewRun builds a run in the NEW state.
func NewRun(id, query, location string, now time.Time) *Run {
	now = now.UTC()
	return &Run{
		ID:         id,
		EntityType: EntityTypeRun,
		Query:      query,
		Location:   location,
		Status:     RunStatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SearchText returns the query with its location folded in, if any.
func (r *Run) SearchText() string {
	if r.Location == "" {
		return r.Query
	}
	return r.Query + " in " + r.Location
}

// RunFilter controls run listing.
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}
