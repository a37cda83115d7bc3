package ticket

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// FilterKey names one dimension of Criteria.
type FilterKey string

// Filter keys accepted by Criteria.Set and Criteria.Remove.
const (
	KeyStatus    FilterKey = "status"
	KeyPriority  FilterKey = "priority"
	KeyCategory  FilterKey = "category"
	KeyType      FilterKey = "type"
	KeyAssignee  FilterKey = "assignee"
	KeyRequester FilterKey = "requester"
	KeyTags      FilterKey = "tags"
	KeyKeyword   FilterKey = "keyword"
	KeyDateRange FilterKey = "date_range"
)

// FilterKeys lists every known key in display order.
//
//nolint:gochecknoglobals // package-level constant
var FilterKeys = []FilterKey{
	KeyStatus, KeyPriority, KeyCategory, KeyType, KeyAssignee,
	KeyRequester, KeyTags, KeyKeyword, KeyDateRange,
}

// DateRange bounds ticket creation time. A zero Start or End leaves that
// side open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Criteria is a sparse set of ticket predicates. Zero-value fields mean
// "no filter" for that dimension. Set dimensions combine with AND; values
// within one dimension combine with OR.
type Criteria struct {
	Status      []string   `json:"status,omitempty"`
	Priority    []string   `json:"priority,omitempty"`
	Category    []string   `json:"category,omitempty"`
	Type        []string   `json:"type,omitempty"`
	AssigneeID  []int64    `json:"assignee_id,omitempty"`
	RequesterID []int64    `json:"requester_id,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Keyword     string     `json:"keyword,omitempty"`
	DateRange   *DateRange `json:"date_range,omitempty"`
}

// Clone returns a deep copy of c.
func (c Criteria) Clone() Criteria {
	out := Criteria{
		Status:      slices.Clone(c.Status),
		Priority:    slices.Clone(c.Priority),
		Category:    slices.Clone(c.Category),
		Type:        slices.Clone(c.Type),
		AssigneeID:  slices.Clone(c.AssigneeID),
		RequesterID: slices.Clone(c.RequesterID),
		Tags:        slices.Clone(c.Tags),
		Keyword:     c.Keyword,
	}

	if c.DateRange != nil {
		dr := *c.DateRange
		out.DateRange = &dr
	}

	return out
}

// IsEmpty reports whether no dimension is set.
func (c Criteria) IsEmpty() bool {
	return len(c.Status) == 0 && len(c.Priority) == 0 && len(c.Category) == 0 &&
		len(c.Type) == 0 && len(c.AssigneeID) == 0 && len(c.RequesterID) == 0 &&
		len(c.Tags) == 0 && c.Keyword == "" && c.DateRange == nil
}

// Merge returns c with every non-empty dimension of overlay replacing the
// corresponding dimension of c.
func (c Criteria) Merge(overlay Criteria) Criteria {
	out := c.Clone()
	o := overlay.Clone()

	if o.Status != nil {
		out.Status = o.Status
	}

	if o.Priority != nil {
		out.Priority = o.Priority
	}

	if o.Category != nil {
		out.Category = o.Category
	}

	if o.Type != nil {
		out.Type = o.Type
	}

	if o.AssigneeID != nil {
		out.AssigneeID = o.AssigneeID
	}

	if o.RequesterID != nil {
		out.RequesterID = o.RequesterID
	}

	if o.Tags != nil {
		out.Tags = o.Tags
	}

	if o.Keyword != "" {
		out.Keyword = o.Keyword
	}

	if o.DateRange != nil {
		out.DateRange = o.DateRange
	}

	return out
}

// Set returns a copy of c with dimension key set to value.
//
// List dimensions accept a single value or a slice (string for text
// dimensions, int64 for assignee and requester). Keyword accepts a string,
// date_range a DateRange or *DateRange.
func (c Criteria) Set(key FilterKey, value any) (Criteria, error) {
	out := c.Clone()

	var err error

	switch key {
	case KeyStatus:
		out.Status, err = stringList(key, value)
		if err == nil {
			err = validateAll(out.Status, IsValidStatus, ErrInvalidStatus)
		}
	case KeyPriority:
		out.Priority, err = stringList(key, value)
		if err == nil {
			err = validateAll(out.Priority, IsValidPriority, ErrInvalidPriority)
		}
	case KeyCategory:
		out.Category, err = stringList(key, value)
	case KeyType:
		out.Type, err = stringList(key, value)
	case KeyTags:
		out.Tags, err = stringList(key, value)
	case KeyAssignee:
		out.AssigneeID, err = intList(key, value)
	case KeyRequester:
		out.RequesterID, err = intList(key, value)
	case KeyKeyword:
		s, ok := value.(string)
		if !ok {
			return c, fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidFilterValue, key, value)
		}

		out.Keyword = s
	case KeyDateRange:
		out.DateRange, err = dateRange(value)
	default:
		return c, fmt.Errorf("%w: %s", ErrUnknownFilterKey, key)
	}

	if err != nil {
		return c, err
	}

	return out, nil
}

// Remove returns a copy of c with dimension key cleared.
func (c Criteria) Remove(key FilterKey) (Criteria, error) {
	out := c.Clone()

	switch key {
	case KeyStatus:
		out.Status = nil
	case KeyPriority:
		out.Priority = nil
	case KeyCategory:
		out.Category = nil
	case KeyType:
		out.Type = nil
	case KeyTags:
		out.Tags = nil
	case KeyAssignee:
		out.AssigneeID = nil
	case KeyRequester:
		out.RequesterID = nil
	case KeyKeyword:
		out.Keyword = ""
	case KeyDateRange:
		out.DateRange = nil
	default:
		return c, fmt.Errorf("%w: %s", ErrUnknownFilterKey, key)
	}

	return out, nil
}

// Matches reports whether t satisfies every set dimension of c. search is
// an extra free-text query applied like Keyword.
func (c Criteria) Matches(t Ticket, search string) bool {
	if len(c.Status) > 0 && !slices.Contains(c.Status, t.Status) {
		return false
	}

	if len(c.Priority) > 0 && !slices.Contains(c.Priority, t.Priority) {
		return false
	}

	if len(c.Category) > 0 && !slices.Contains(c.Category, t.Category) {
		return false
	}

	if len(c.Type) > 0 && !slices.Contains(c.Type, t.Type) {
		return false
	}

	if len(c.AssigneeID) > 0 && (t.AssigneeID == nil || !slices.Contains(c.AssigneeID, *t.AssigneeID)) {
		return false
	}

	if len(c.RequesterID) > 0 && !slices.Contains(c.RequesterID, t.RequesterID) {
		return false
	}

	if len(c.Tags) > 0 && !slices.ContainsFunc(c.Tags, func(tag string) bool { return slices.Contains(t.Tags, tag) }) {
		return false
	}

	if c.DateRange != nil {
		if !c.DateRange.Start.IsZero() && t.CreatedAt.Before(c.DateRange.Start) {
			return false
		}

		if !c.DateRange.End.IsZero() && t.CreatedAt.After(c.DateRange.End) {
			return false
		}
	}

	return containsText(t, c.Keyword) && containsText(t, search)
}

func containsText(t Ticket, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}

	return strings.Contains(strings.ToLower(t.Title), query) ||
		strings.Contains(strings.ToLower(t.Description), query) ||
		strings.Contains(strings.ToLower(t.TicketNumber), query)
}

func stringList(key FilterKey, value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%w: %s cannot be empty", ErrInvalidFilterValue, key)
		}

		return []string{v}, nil
	case []string:
		return slices.Clone(v), nil
	default:
		return nil, fmt.Errorf("%w: %s expects string values, got %T", ErrInvalidFilterValue, key, value)
	}
}

func intList(key FilterKey, value any) ([]int64, error) {
	switch v := value.(type) {
	case int64:
		return []int64{v}, nil
	case int:
		return []int64{int64(v)}, nil
	case []int64:
		return slices.Clone(v), nil
	default:
		return nil, fmt.Errorf("%w: %s expects integer ids, got %T", ErrInvalidFilterValue, key, value)
	}
}

func dateRange(value any) (*DateRange, error) {
	var dr DateRange

	switch v := value.(type) {
	case DateRange:
		dr = v
	case *DateRange:
		if v == nil {
			return nil, fmt.Errorf("%w: date_range is nil", ErrInvalidFilterValue)
		}

		dr = *v
	default:
		return nil, fmt.Errorf("%w: date_range expects a DateRange, got %T", ErrInvalidFilterValue, value)
	}

	if !dr.Start.IsZero() && !dr.End.IsZero() && dr.Start.After(dr.End) {
		return nil, ErrInvalidDateRange
	}

	return &dr, nil
}

func validateAll(values []string, valid func(string) bool, errKind error) error {
	for _, v := range values {
		if !valid(v) {
			return fmt.Errorf("%w: %s", errKind, v)
		}
	}

	return nil
}
