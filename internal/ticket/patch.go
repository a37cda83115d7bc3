package ticket

import (
	"slices"
	"time"
)

// Patch is a partial ticket update. Nil fields are left untouched.
type Patch struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Status          *string    `json:"status,omitempty"`
	Priority        *string    `json:"priority,omitempty"`
	Category        *string    `json:"category,omitempty"`
	AssigneeID      *int64     `json:"assignee_id,omitempty"`
	AssigneeName    *string    `json:"assignee_name,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	ClearDueDate    bool       `json:"clear_due_date,omitempty"`
	Resolution      *string    `json:"resolution,omitempty"`
	EscalationLevel *int       `json:"escalation_level,omitempty"`
}

// Apply returns a copy of t with the patch merged in and UpdatedAt set to
// now. t itself is not modified.
func (p Patch) Apply(t Ticket, now time.Time) Ticket {
	out := t.Clone()

	if p.Title != nil {
		out.Title = *p.Title
	}

	if p.Description != nil {
		out.Description = *p.Description
	}

	if p.Status != nil {
		out.Status = *p.Status
	}

	if p.Priority != nil {
		out.Priority = *p.Priority
	}

	if p.Category != nil {
		out.Category = *p.Category
	}

	if p.AssigneeID != nil {
		id := *p.AssigneeID
		out.AssigneeID = &id
	}

	if p.AssigneeName != nil {
		out.AssigneeName = *p.AssigneeName
	}

	if p.Tags != nil {
		out.Tags = slices.Clone(p.Tags)
	}

	switch {
	case p.ClearDueDate:
		out.DueDate = nil
	case p.DueDate != nil:
		due := *p.DueDate
		out.DueDate = &due
	}

	if p.Resolution != nil {
		out.Resolution = *p.Resolution
	}

	if p.EscalationLevel != nil {
		out.EscalationLevel = *p.EscalationLevel
	}

	out.UpdatedAt = now

	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Category == nil && p.AssigneeID == nil &&
		p.AssigneeName == nil && p.Tags == nil && p.DueDate == nil &&
		!p.ClearDueDate && p.Resolution == nil && p.EscalationLevel == nil
}

// MergeTags returns existing with every tag from add that is not already
// present appended, preserving order.
func MergeTags(existing, add []string) []string {
	out := slices.Clone(existing)

	for _, tag := range add {
		if !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}

	return out
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
