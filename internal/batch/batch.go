// Package batch applies one operation to many tickets, one ticket at a
// time, recording per-ticket failures without stopping the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// Kind names a batch operation.
type Kind string

// Operation kinds.
const (
	KindAssign       Kind = "assign"
	KindUpdateStatus Kind = "update_status"
	KindAddTags      Kind = "add_tags"
	KindSetPriority  Kind = "set_priority"
	KindDelete       Kind = "delete"
	KindNotify       Kind = "notify"
	KindExport       Kind = "export"
)

// Kinds lists every operation kind.
//
//nolint:gochecknoglobals // package-level constant
var Kinds = []Kind{KindAssign, KindUpdateStatus, KindAddTags, KindSetPriority, KindDelete, KindNotify, KindExport}

// Errors returned by Executor.Run before any ticket is touched.
var (
	ErrUnknownOperation = errors.New("unknown batch operation")
	ErrMissingParam     = errors.New("missing batch parameter")
	ErrNoTargets        = errors.New("no tickets selected")
	ErrJobActive        = errors.New("a batch job is still active")
	ErrExportFailed     = errors.New("export failed")
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Params carries the payload of one operation kind. Only the fields the
// kind needs are read.
type Params struct {
	AssigneeID      int64    `json:"assignee_id,omitempty"`
	AssigneeName    string   `json:"assignee_name,omitempty"`
	Comment         string   `json:"comment,omitempty"`
	Status          string   `json:"status,omitempty"`
	Priority        string   `json:"priority,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Message         string   `json:"message,omitempty"`
	NotifyAssignee  bool     `json:"notify_assignee,omitempty"`
	NotifyRequester bool     `json:"notify_requester,omitempty"`
	Format          string   `json:"format,omitempty"`
}

// Validate checks that p carries what kind needs.
func (p Params) Validate(kind Kind) error {
	switch kind {
	case KindAssign:
		if p.AssigneeID == 0 {
			return fmt.Errorf("%w: %s needs an assignee", ErrMissingParam, kind)
		}
	case KindUpdateStatus:
		if !ticket.IsValidStatus(p.Status) {
			return fmt.Errorf("%w: %s needs a valid status, got %q", ErrMissingParam, kind, p.Status)
		}
	case KindSetPriority:
		if !ticket.IsValidPriority(p.Priority) {
			return fmt.Errorf("%w: %s needs a valid priority, got %q", ErrMissingParam, kind, p.Priority)
		}
	case KindAddTags:
		if len(p.Tags) == 0 {
			return fmt.Errorf("%w: %s needs at least one tag", ErrMissingParam, kind)
		}
	case KindNotify:
		if p.Message == "" {
			return fmt.Errorf("%w: %s needs a message", ErrMissingParam, kind)
		}

		if !p.NotifyAssignee && !p.NotifyRequester {
			return fmt.Errorf("%w: %s needs at least one recipient", ErrMissingParam, kind)
		}
	case KindExport:
		if p.Format != FormatCSV && p.Format != FormatJSON {
			return fmt.Errorf("%w: %s needs format csv or json, got %q", ErrMissingParam, kind, p.Format)
		}
	case KindDelete:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}

	return nil
}

// ParseKind validates s as an operation kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !slices.Contains(Kinds, k) {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}

	return k, nil
}

// Notification is the payload of a notify operation.
type Notification struct {
	Message   string `json:"message"`
	Assignee  bool   `json:"assignee"`
	Requester bool   `json:"requester"`
}

// Blob is an exported file.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// MutationAPI is the per-ticket backend the executor drives.
type MutationAPI interface {
	AssignTicket(ctx context.Context, id, assigneeID int64, comment string) error
	UpdateTicket(ctx context.Context, id int64, p ticket.Patch) error
	AddTags(ctx context.Context, id int64, tags []string) error
	DeleteTicket(ctx context.Context, id int64) error
	NotifyTicket(ctx context.Context, id int64, n Notification) error
	ExportTickets(ctx context.Context, ids []int64, format string) (Blob, error)
}

// Downloader hands an exported blob to the user and returns where it went.
type Downloader interface {
	Download(ctx context.Context, blob Blob) (string, error)
}

// Level is the severity of a Notice.
type Level string

// Notice levels.
const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message about a finished operation.
type Notice struct {
	Level   Level
	Message string
	// Details lists per-ticket failures. Only set for delete.
	Details []string
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// apply performs kind on one ticket.
func apply(ctx context.Context, api MutationAPI, kind Kind, t ticket.Ticket, p Params) error {
	switch kind {
	case KindAssign:
		return api.AssignTicket(ctx, t.ID, p.AssigneeID, p.Comment)
	case KindUpdateStatus:
		return api.UpdateTicket(ctx, t.ID, ticket.Patch{Status: ticket.Ptr(p.Status)})
	case KindSetPriority:
		return api.UpdateTicket(ctx, t.ID, ticket.Patch{Priority: ticket.Ptr(p.Priority)})
	case KindAddTags:
		return api.AddTags(ctx, t.ID, p.Tags)
	case KindDelete:
		return api.DeleteTicket(ctx, t.ID)
	case KindNotify:
		return api.NotifyTicket(ctx, t.ID, Notification{
			Message:   p.Message,
			Assignee:  p.NotifyAssignee,
			Requester: p.NotifyRequester,
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}
}
