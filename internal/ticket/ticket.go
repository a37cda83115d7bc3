// Package ticket defines the service-desk ticket model, the derived
// statistics over a ticket list, filter criteria and configuration.
package ticket

import (
	"slices"
	"time"
)

// Ticket is an immutable snapshot of a service-desk ticket. Code that
// holds a Ticket must not modify its slices; the collection store builds
// new slices for every change.
type Ticket struct {
	ID              int64        `json:"id"                          yaml:"id"`
	TicketNumber    string       `json:"ticket_number"               yaml:"ticket_number"`
	Title           string       `json:"title"                       yaml:"title"`
	Description     string       `json:"description,omitempty"       yaml:"description,omitempty"`
	Status          string       `json:"status"                      yaml:"status"`
	Priority        string       `json:"priority"                    yaml:"priority"`
	Type            string       `json:"type,omitempty"              yaml:"type,omitempty"`
	Category        string       `json:"category,omitempty"          yaml:"category,omitempty"`
	Subcategory     string       `json:"subcategory,omitempty"       yaml:"subcategory,omitempty"`
	Impact          string       `json:"impact,omitempty"            yaml:"impact,omitempty"`
	Urgency         string       `json:"urgency,omitempty"           yaml:"urgency,omitempty"`
	Resolution      string       `json:"resolution,omitempty"        yaml:"resolution,omitempty"`
	WorkNotes       string       `json:"work_notes,omitempty"        yaml:"work_notes,omitempty"`
	RequesterID     int64        `json:"requester_id"                yaml:"requester_id"`
	AssigneeID      *int64       `json:"assignee_id,omitempty"       yaml:"assignee_id,omitempty"`
	AssigneeName    string       `json:"assignee_name,omitempty"     yaml:"assignee_name,omitempty"`
	TenantID        int64        `json:"tenant_id"                   yaml:"tenant_id"`
	Tags            []string     `json:"tags,omitempty"              yaml:"tags,omitempty"`
	DueDate         *time.Time   `json:"due_date,omitempty"          yaml:"due_date,omitempty"`
	EscalationLevel int          `json:"escalation_level,omitempty"  yaml:"escalation_level,omitempty"`
	Comments        []Comment    `json:"comments,omitempty"          yaml:"comments,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"       yaml:"attachments,omitempty"`
	CreatedAt       time.Time    `json:"created_at"                  yaml:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"                  yaml:"updated_at"`
}

// Comment is a note attached to a ticket.
type Comment struct {
	ID         int64     `json:"id"          yaml:"id"`
	Content    string    `json:"content"     yaml:"content"`
	AuthorID   int64     `json:"author_id"   yaml:"author_id"`
	AuthorName string    `json:"author_name" yaml:"author_name"`
	CreatedAt  time.Time `json:"created_at"  yaml:"created_at"`
	IsInternal bool      `json:"is_internal" yaml:"is_internal"`
}

// Attachment is a file uploaded to a ticket.
type Attachment struct {
	ID         int64     `json:"id"          yaml:"id"`
	Name       string    `json:"name"        yaml:"name"`
	URL        string    `json:"url"         yaml:"url"`
	Size       int64     `json:"size"        yaml:"size"`
	Type       string    `json:"type"        yaml:"type"`
	UploadedAt time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}

// Clone returns a deep copy of t. Slices and pointer fields are copied so
// the result shares no memory with t.
func (t Ticket) Clone() Ticket {
	out := t
	out.Tags = slices.Clone(t.Tags)
	out.Comments = slices.Clone(t.Comments)
	out.Attachments = slices.Clone(t.Attachments)

	if t.AssigneeID != nil {
		id := *t.AssigneeID
		out.AssigneeID = &id
	}

	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}

	return out
}

// IsResolved reports whether the ticket counts as resolved in stats.
func (t Ticket) IsResolved() bool {
	return t.Status == StatusResolved || t.Status == StatusClosed
}

// IsHighPriority reports whether the ticket counts toward the
// high-priority stat.
func (t Ticket) IsHighPriority() bool {
	return t.Priority == PriorityHigh || t.Priority == PriorityCritical
}

// WithComment returns a copy of t with c appended and UpdatedAt set to now.
func (t Ticket) WithComment(c Comment, now time.Time) Ticket {
	out := t
	out.Comments = append(slices.Clone(t.Comments), c)
	out.UpdatedAt = now

	return out
}

// WithAttachment returns a copy of t with a appended and UpdatedAt set to now.
func (t Ticket) WithAttachment(a Attachment, now time.Time) Ticket {
	out := t
	out.Attachments = append(slices.Clone(t.Attachments), a)
	out.UpdatedAt = now

	return out
}

// IDs returns the ids of tickets in order.
func IDs(tickets []Ticket) []int64 {
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}

	return ids
}

// IsValidStatus reports whether s is a known status.
func IsValidStatus(s string) bool {
	return slices.Contains(validStatuses, s)
}

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p string) bool {
	return slices.Contains(validPriorities, p)
}

// PriorityRank orders priorities from low (0) to critical (4). Unknown
// priorities rank below low.
func PriorityRank(p string) int {
	return slices.Index(validPriorities, p)
}
