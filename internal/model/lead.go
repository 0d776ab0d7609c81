package model

import (
	"fmt"
	"time"
)

// LeadStatusNew is the only status this pipeline assigns to a lead.
const LeadStatusNew = "NEW"

// LeadSource is the provenance tag stamped on every lead.
const LeadSource = "google-serp"

// Lead is one discovered company tied to a run.
type Lead struct {
	ID          string    `json:"id" dynamodbav:"id" yaml:"id"`
	RunID       string    `json:"runId" dynamodbav:"runId" yaml:"run_id"`
	CompanyName string    `json:"companyName" dynamodbav:"companyName" yaml:"company_name"`
	Domain      string    `json:"domain" dynamodbav:"domain" yaml:"domain"`
	Description string    `json:"description" dynamodbav:"description" yaml:"description"`
	WebsiteText string    `json:"websiteText,omitempty" dynamodbav:"websiteText,omitempty" yaml:"-"`
	Summary     string    `json:"summary,omitempty" dynamodbav:"summary,omitempty" yaml:"summary,omitempty"`
	EmailDraft  string    `json:"email_draft,omitempty" dynamodbav:"email_draft,omitempty" yaml:"email_draft,omitempty"`
	Status      string    `json:"status" dynamodbav:"status" yaml:"status"`
	Source      string    `json:"source" dynamodbav:"source" yaml:"source"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt" yaml:"created_at"`
}

// LeadID composes the lead identifier from the run, a millisecond timestamp
// and the candidate position.
func LeadID(runID string, ms int64, index int) string {
	return fmt.Sprintf("%s#%d#%d", runID, ms, index)
}

// NewLead builds a lead from a filtered candidate.
func NewLead(runID string, index int, c SearchResult, now time.Time) *Lead {
	now = now.UTC()
	return &Lead{
		ID:          LeadID(runID, now.UnixMilli(), index),
		RunID:       runID,
		CompanyName: c.Title,
		Domain:      c.Domain,
		Description: c.Snippet,
		Status:      LeadStatusNew,
		Source:      LeadSource,
		CreatedAt:   now,
	}
}

// Analyzed reports whether both enrichment fields are populated.
func (l *Lead) Analyzed() bool {
	return l.Summary != "" && l.EmailDraft != ""
}
