package batch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/calvinalkan/tk-desk/internal/clock"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// Defaults for Options.
const (
	DefaultDelay        = 100 * time.Millisecond
	DefaultDismissDelay = 1500 * time.Millisecond
)

// Phase is the lifecycle position of the current job.
type Phase string

// Job phases. Idle means there is no job.
const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// Progress is emitted when a job starts, after every ticket, when it
// completes and when it is dismissed.
type Progress struct {
	Kind    Kind
	Phase   Phase
	Current int
	Total   int
	Status  string
}

// ItemError records one failed ticket.
type ItemError struct {
	TicketID     int64  `json:"ticket_id"`
	TicketNumber string `json:"ticket_number,omitempty"`
	Message      string `json:"message"`
}

func (e ItemError) String() string {
	if e.TicketNumber != "" {
		return e.TicketNumber + ": " + e.Message
	}

	return fmt.Sprintf("#%d: %s", e.TicketID, e.Message)
}

// Result is the outcome of a run. SuccessCount + FailCount equals the
// number of targets.
type Result struct {
	Kind         Kind        `json:"kind"`
	SuccessCount int         `json:"success_count"`
	FailCount    int         `json:"fail_count"`
	Errors       []ItemError `json:"errors,omitempty"`
	// Location is where an export was written.
	Location string `json:"location,omitempty"`
}

// Job is the state of the active run.
type Job struct {
	Kind         Kind
	Targets      []int64
	Phase        Phase
	Current      int
	Total        int
	SuccessCount int
	FailCount    int
	Errors       []ItemError
}

// Options configures an Executor. Zero values select the defaults; a
// negative Delay or DismissDelay disables the wait.
type Options struct {
	Delay        time.Duration
	DismissDelay time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
	Notifier     Notifier
	Downloader   Downloader
	Metrics      *Metrics
	// OnDismiss runs after a completed job is dismissed, explicitly or by
	// the auto-dismiss timer. Use it to refetch tickets.
	OnDismiss func()
}

// Executor runs one batch job at a time.
type Executor struct {
	api  MutationAPI
	opts Options

	mu      sync.Mutex
	job     *Job
	timer   *clock.Timer
	subs    []progressSub
	nextSub int
}

type progressSub struct {
	id int
	fn func(Progress)
}

// New returns an Executor that sends mutations to api.
func New(api MutationAPI, opts Options) *Executor {
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}

	if opts.DismissDelay == 0 {
		opts.DismissDelay = DefaultDismissDelay
	}

	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Notice) {})
	}

	return &Executor{api: api, opts: opts}
}

// Subscribe registers fn for progress updates. Updates are delivered on
// the goroutine running the job, in order.
func (e *Executor) Subscribe(fn func(Progress)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextSub++
	id := e.nextSub
	e.subs = append(e.subs, progressSub{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		e.subs = slices.DeleteFunc(e.subs, func(s progressSub) bool { return s.id == id })
	}
}

func (e *Executor) emit(p Progress) {
	e.mu.Lock()
	subs := slices.Clone(e.subs)
	e.mu.Unlock()

	for _, s := range subs {
		s.fn(p)
	}
}

// Job returns a copy of the active job, if any.
func (e *Executor) Job() (Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job == nil {
		return Job{}, false
	}

	j := *e.job
	j.Targets = slices.Clone(j.Targets)
	j.Errors = slices.Clone(j.Errors)

	return j, true
}

// Run applies kind to every target in order. Item failures are recorded
// in the result, never returned as an error. Errors are returned only for
// misuse (unknown kind, bad params, no targets, a job still active) and
// for a failed export.
//
// Export sends one request for all targets and hands the file to the
// Downloader; it creates no job.
func (e *Executor) Run(ctx context.Context, kind Kind, targets []ticket.Ticket, p Params) (Result, error) {
	err := p.Validate(kind)
	if err != nil {
		return Result{}, err
	}

	if len(targets) == 0 {
		return Result{}, ErrNoTargets
	}

	if kind == KindExport {
		return e.export(ctx, targets, p.Format)
	}

	e.mu.Lock()
	if e.job != nil {
		e.mu.Unlock()

		return Result{}, ErrJobActive
	}

	job := &Job{
		Kind:    kind,
		Targets: ticket.IDs(targets),
		Phase:   PhaseRunning,
		Total:   len(targets),
	}
	e.job = job
	e.mu.Unlock()

	log := e.opts.Logger.With(slog.String("operation", string(kind)))
	log.Info("batch started", slog.Int("total", len(targets)))

	started := e.opts.Clock.Now()

	e.emit(Progress{Kind: kind, Phase: PhaseRunning, Total: job.Total, Status: "preparing"})

	for i, t := range targets {
		applyErr := apply(ctx, e.api, kind, t, p)

		e.mu.Lock()
		job.Current = i + 1

		if applyErr != nil {
			job.FailCount++
			job.Errors = append(job.Errors, ItemError{TicketID: t.ID, TicketNumber: t.TicketNumber, Message: applyErr.Error()})
		} else {
			job.SuccessCount++
		}
		e.mu.Unlock()

		if applyErr != nil {
			log.Warn("batch item failed", slog.Int64("ticket_id", t.ID), slog.String("error", applyErr.Error()))
			e.opts.Metrics.item(kind, false)
		} else {
			e.opts.Metrics.item(kind, true)
		}

		e.emit(Progress{
			Kind:    kind,
			Phase:   PhaseRunning,
			Current: i + 1,
			Total:   job.Total,
			Status:  "processed " + label(t),
		})

		if i < len(targets)-1 && e.opts.Delay > 0 {
			e.opts.Clock.Sleep(e.opts.Delay)
		}
	}

	e.mu.Lock()
	job.Phase = PhaseCompleted
	res := Result{
		Kind:         kind,
		SuccessCount: job.SuccessCount,
		FailCount:    job.FailCount,
		Errors:       slices.Clone(job.Errors),
	}
	e.mu.Unlock()

	e.opts.Metrics.run(kind, res.FailCount == 0, e.opts.Clock.Now().Sub(started))
	e.complete(log, res)

	return res, nil
}

// complete reports the result and arms the auto-dismiss timer.
func (e *Executor) complete(log *slog.Logger, res Result) {
	log.Info("batch completed", slog.Int("succeeded", res.SuccessCount), slog.Int("failed", res.FailCount))

	if res.FailCount == 0 {
		e.opts.Notifier.Notify(Notice{
			Level:   LevelSuccess,
			Message: fmt.Sprintf("batch %s succeeded for %d tickets", res.Kind, res.SuccessCount),
		})
	} else {
		n := Notice{
			Level:   LevelWarning,
			Message: fmt.Sprintf("batch %s finished: %d succeeded, %d failed", res.Kind, res.SuccessCount, res.FailCount),
		}

		if res.Kind == KindDelete {
			details := make([]string, len(res.Errors))
			for i, itemErr := range res.Errors {
				details[i] = itemErr.String()
			}

			n.Details = details

			log.Error("batch delete errors", slog.Any("errors", details))
		}

		e.opts.Notifier.Notify(n)
	}

	e.emit(Progress{
		Kind:    res.Kind,
		Phase:   PhaseCompleted,
		Current: res.SuccessCount + res.FailCount,
		Total:   res.SuccessCount + res.FailCount,
		Status:  "completed",
	})

	if e.opts.DismissDelay < 0 {
		return
	}

	timer := e.opts.Clock.AfterFunc(e.opts.DismissDelay, func() { e.Dismiss() })

	e.mu.Lock()
	if e.job != nil && e.job.Phase == PhaseCompleted {
		e.timer = timer
		e.mu.Unlock()

		return
	}
	e.mu.Unlock()

	timer.Stop()
}

// Dismiss discards a completed job and calls OnDismiss. It returns false
// when there is no completed job; a running job cannot be dismissed.
func (e *Executor) Dismiss() bool {
	e.mu.Lock()
	if e.job == nil || e.job.Phase != PhaseCompleted {
		e.mu.Unlock()

		return false
	}

	kind := e.job.Kind
	e.job = nil
	timer := e.timer
	e.timer = nil
	e.mu.Unlock()

	timer.Stop()

	e.emit(Progress{Kind: kind, Phase: PhaseIdle})

	if e.opts.OnDismiss != nil {
		e.opts.OnDismiss()
	}

	return true
}

func (e *Executor) export(ctx context.Context, targets []ticket.Ticket, format string) (Result, error) {
	log := e.opts.Logger.With(slog.String("operation", string(KindExport)))
	ids := ticket.IDs(targets)

	fail := func(err error) (Result, error) {
		log.Error("export failed", slog.Int("total", len(ids)), slog.String("error", err.Error()))
		e.opts.Metrics.run(KindExport, false, 0)
		e.opts.Notifier.Notify(Notice{Level: LevelError, Message: "export failed"})

		return Result{}, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	blob, err := e.api.ExportTickets(ctx, ids, format)
	if err != nil {
		return fail(err)
	}

	location := blob.Name

	if e.opts.Downloader != nil {
		location, err = e.opts.Downloader.Download(ctx, blob)
		if err != nil {
			return fail(err)
		}
	}

	e.opts.Metrics.run(KindExport, true, 0)
	log.Info("export written", slog.Int("total", len(ids)), slog.String("location", location))
	e.opts.Notifier.Notify(Notice{
		Level:   LevelSuccess,
		Message: fmt.Sprintf("exported %d tickets to %s", len(ids), location),
	})

	return Result{Kind: KindExport, SuccessCount: len(ids), Location: location}, nil
}

func label(t ticket.Ticket) string {
	if t.TicketNumber != "" {
		return t.TicketNumber
	}

	return fmt.Sprintf("#%d", t.ID)
}
