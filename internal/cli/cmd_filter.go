package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calvinalkan/tk-desk/internal/store"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// Errors returned by filter argument parsing.
var (
	ErrMissingArgument = errors.New("missing argument")
	ErrUnknownAction   = errors.New("unknown action")
)

const filterLong = `Change the saved filters, search, sort and pagination used by ls.

Actions:
  show                      Print the current filter state
  set <key>=<value>...      Replace all filters
  add <key> <value>         Set one filter (comma separates values)
  rm <key>                  Remove one filter
  search [text]             Set the search text (empty clears it)
  clear                     Remove all filters, keep the search text
  sort <field> [asc|desc]   Sort by field; without an order, toggle it
  page <n|next|prev>        Move to a page
  page-size <n>             Change the page size
  save <name>               Save the current filters
  saved                     List saved filters
  apply <id>                Apply a saved filter (unique id prefix works)
  delete <id>               Delete a saved filter

Keys: status, priority, category, type, assignee, requester, tags, keyword,
date_range (YYYY-MM-DD..YYYY-MM-DD, either side may be empty).
Sort fields: created_at, updated_at, priority, due_date, id, title.`

// FilterCmd returns the filter command.
func FilterCmd(a *app) *Command {
	c := newCommand("filter <action> [args]", "Manage filters, search, sort and saved filters",
		filterLong)

	asJSON := c.Flags.Bool("json", false, "Print show and saved output as JSON")

	c.Exec = func(_ context.Context, o *IO, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("%w: action", ErrMissingArgument)
		}

		return execFilter(o, a.session.Filters, args[0], args[1:], *asJSON)
	}

	return c
}

//nolint:cyclop,funlen // one case per action
func execFilter(o *IO, fs *store.FilterStore, action string, args []string, asJSON bool) error {
	switch action {
	case "show":
		if asJSON {
			return printJSON(o, fs.Snapshot())
		}

		printFilterState(o, fs)

		return nil
	case "set":
		var c ticket.Criteria

		for _, arg := range args {
			key, raw, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("%w: %q is not key=value", ticket.ErrInvalidFilterValue, arg)
			}

			next, err := setCriterion(c, ticket.FilterKey(key), raw)
			if err != nil {
				return err
			}

			c = next
		}

		fs.SetFilters(c)
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("%w: add <key> <value>", ErrMissingArgument)
		}

		value, err := parseFilterValue(ticket.FilterKey(args[0]), strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		err = fs.AddFilter(ticket.FilterKey(args[0]), value)
		if err != nil {
			return err
		}
	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("%w: rm <key>", ErrMissingArgument)
		}

		err := fs.RemoveFilter(ticket.FilterKey(args[0]))
		if err != nil {
			return err
		}
	case "search":
		fs.SetSearchQuery(strings.Join(args, " "))
	case "clear":
		fs.ClearFilters()
	case "sort":
		err := execSort(fs, args)
		if err != nil {
			return err
		}
	case "page":
		err := execPage(fs, args)
		if err != nil {
			return err
		}
	case "page-size":
		if len(args) != 1 {
			return fmt.Errorf("%w: page-size <n>", ErrMissingArgument)
		}

		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid page size %q", args[0])
		}

		err = fs.SetPageSize(n)
		if err != nil {
			return err
		}
	case "save":
		if len(args) == 0 {
			return fmt.Errorf("%w: save <name>", ErrMissingArgument)
		}

		saved, err := fs.SaveFilter(strings.Join(args, " "))
		if err != nil {
			return err
		}

		o.Println("saved", saved.ID, saved.Name)

		return nil
	case "saved":
		if asJSON {
			return printJSON(o, fs.SavedFilters())
		}

		for _, sf := range fs.SavedFilters() {
			o.Printf("%s  %-20s %s\n", sf.ID, sf.Name, sf.CreatedAt.Format(time.DateTime))
		}

		return nil
	case "apply":
		if len(args) != 1 {
			return fmt.Errorf("%w: apply <id>", ErrMissingArgument)
		}

		saved, err := fs.ApplySavedFilter(args[0])
		if err != nil {
			return err
		}

		o.Println("applied", saved.Name)

		return nil
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("%w: delete <id>", ErrMissingArgument)
		}

		return fs.DeleteSavedFilter(args[0])
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	printFilterState(o, fs)

	return nil
}

func execSort(fs *store.FilterStore, args []string) error {
	switch len(args) {
	case 1:
		return fs.ToggleSort(args[0])
	case 2:
		return fs.SetSort(args[0], ticket.SortOrder(args[1]))
	default:
		return fmt.Errorf("%w: sort <field> [asc|desc]", ErrMissingArgument)
	}
}

func execPage(fs *store.FilterStore, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: page <n|next|prev>", ErrMissingArgument)
	}

	switch args[0] {
	case "next":
		fs.NextPage()
	case "prev":
		fs.PrevPage()
	default:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid page %q", args[0])
		}

		return fs.UpdatePagination(n, 0)
	}

	return nil
}

func printFilterState(o *IO, fs *store.FilterStore) {
	st := fs.Snapshot()

	filters := describeCriteria(st.Filters)
	if filters == "" {
		filters = "(none)"
	}

	o.Println("filters:", filters)
	o.Println("search:", st.SearchQuery)
	o.Println("sort:", st.SortBy, st.SortOrder)
	o.Printf("page: %d/%d (size %d, total %d)\n",
		st.Pagination.Current, fs.TotalPages(), st.Pagination.PageSize, st.Pagination.Total)
	o.Println("saved filters:", len(st.SavedFilters))
}

func describeCriteria(c ticket.Criteria) string {
	var parts []string

	add := func(key ticket.FilterKey, values []string) {
		if len(values) > 0 {
			parts = append(parts, string(key)+"="+strings.Join(values, ","))
		}
	}

	add(ticket.KeyStatus, c.Status)
	add(ticket.KeyPriority, c.Priority)
	add(ticket.KeyCategory, c.Category)
	add(ticket.KeyType, c.Type)
	add(ticket.KeyAssignee, formatIDs(c.AssigneeID))
	add(ticket.KeyRequester, formatIDs(c.RequesterID))
	add(ticket.KeyTags, c.Tags)

	if c.Keyword != "" {
		parts = append(parts, "keyword="+c.Keyword)
	}

	if c.DateRange != nil {
		parts = append(parts, "date_range="+formatDate(c.DateRange.Start)+".."+formatDate(c.DateRange.End))
	}

	return strings.Join(parts, " ")
}

func formatIDs(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}

	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.DateOnly)
}

func setCriterion(c ticket.Criteria, key ticket.FilterKey, raw string) (ticket.Criteria, error) {
	value, err := parseFilterValue(key, raw)
	if err != nil {
		return c, err
	}

	return c.Set(key, value)
}

// parseFilterValue turns command line text into the value type
// Criteria.Set expects for key.
func parseFilterValue(key ticket.FilterKey, raw string) (any, error) {
	switch key {
	case ticket.KeyAssignee, ticket.KeyRequester:
		return parseIDs(raw)
	case ticket.KeyKeyword:
		return raw, nil
	case ticket.KeyDateRange:
		return parseDateRange(raw)
	default:
		return splitList(raw), nil
	}
}

func splitList(raw string) []string {
	var out []string

	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}

func parseIDs(raw string) ([]int64, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: expected ticket ids", ticket.ErrInvalidFilterValue)
	}

	ids := make([]int64, len(parts))

	for i, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an id", ticket.ErrInvalidFilterValue, part)
		}

		ids[i] = id
	}

	return ids, nil
}

// parseDateRange reads "start..end" in local dates; the end day is
// included.
func parseDateRange(raw string) (ticket.DateRange, error) {
	startRaw, endRaw, ok := strings.Cut(raw, "..")
	if !ok {
		return ticket.DateRange{}, fmt.Errorf("%w: date_range must look like 2026-03-01..2026-03-31", ticket.ErrInvalidFilterValue)
	}

	var dr ticket.DateRange

	if startRaw != "" {
		start, err := time.ParseInLocation(time.DateOnly, startRaw, time.Local)
		if err != nil {
			return ticket.DateRange{}, fmt.Errorf("%w: %w", ticket.ErrInvalidFilterValue, err)
		}

		dr.Start = start
	}

	if endRaw != "" {
		end, err := time.ParseInLocation(time.DateOnly, endRaw, time.Local)
		if err != nil {
			return ticket.DateRange{}, fmt.Errorf("%w: %w", ticket.ErrInvalidFilterValue, err)
		}

		dr.End = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	return dr, nil
}
