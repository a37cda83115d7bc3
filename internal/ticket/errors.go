package ticket

import "errors"

// Status constants.
const (
	StatusNew        = "new"
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusPending    = "pending"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
	StatusCancelled  = "cancelled"
)

// Priority constants, lowest first.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityUrgent   = "urgent"
	PriorityCritical = "critical"
)

//nolint:gochecknoglobals // package-level constant
var validStatuses = []string{
	StatusNew, StatusOpen, StatusInProgress, StatusPending,
	StatusResolved, StatusClosed, StatusCancelled,
}

//nolint:gochecknoglobals // package-level constant
var validPriorities = []string{
	PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityCritical,
}

// Error variables for ticket, filter and config operations.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrStateDirEmpty      = errors.New("state-dir cannot be empty")
	ErrFlagRequiresArg    = errors.New("flag requires an argument")
	ErrUnknownFilterKey   = errors.New("unknown filter key")
	ErrInvalidFilterValue = errors.New("invalid filter value")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidDateRange   = errors.New("date range start is after end")
	ErrInvalidSort        = errors.New("invalid sort")
)
