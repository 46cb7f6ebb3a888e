// Package report owns the clinical report record and its lifecycle.
//
// A report is created from extracted text and is either completed (a summary
// exists) or pending (summarization has not yet succeeded). The extracted
// text is immutable once stored; only the summary side of the record moves.
package report

import "time"

// Status is the summarization state of a report.
type Status string

const (
	// StatusPending means the text is stored but no summary exists yet.
	StatusPending Status = "pending"

	// StatusCompleted means a summary was produced since the last
	// extraction or retry.
	StatusCompleted Status = "completed"
)

// IDPrefix namespaces report identifiers.
const IDPrefix = "rep_"

// Report is a stored clinical document with its summarization state.
type Report struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId,omitempty"`
	SourceType   string    `json:"sourceType"`
	OriginalText string    `json:"originalText"`
	SummaryText  *string   `json:"summaryText,omitempty"`
	Status       Status    `json:"status"`
	Version      int64     `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
