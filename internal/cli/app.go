package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/tk-desk/internal/batch"
	"github.com/calvinalkan/tk-desk/internal/clock"
	"github.com/calvinalkan/tk-desk/internal/desk"
	"github.com/calvinalkan/tk-desk/internal/mockdesk"
	"github.com/calvinalkan/tk-desk/internal/state"
	"github.com/calvinalkan/tk-desk/internal/ticket"
)

// app holds everything a command needs for one run of the binary, or
// for the lifetime of a shell.
type app struct {
	cfg      ticket.Config
	log      *slog.Logger
	clock    clock.Clock
	io       *IO
	storage  state.Storage
	backend  *mockdesk.Backend
	session  *desk.Session
	registry *prometheus.Registry
	// interactive keeps completed batch jobs around until dismissed.
	interactive bool
}

func openApp(ctx context.Context, cfg ticket.Config, log *slog.Logger, o *IO, interactive bool) (*app, error) {
	a := &app{
		cfg:         cfg,
		log:         log,
		clock:       clock.Real(),
		io:          o,
		registry:    prometheus.NewRegistry(),
		interactive: interactive,
	}

	storage, err := state.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.storage = storage

	tickets, err := a.loadTickets(ctx)
	if err != nil {
		_ = storage.Close()

		return nil, err
	}

	a.backend = mockdesk.New(a.clock, tickets)
	a.backend.FailOn(cfg.FailIDs...)

	dismissDelay := cfg.DismissDelay.Std()
	if !interactive {
		dismissDelay = -1
	}

	session, err := desk.New(ctx, a.backend, a.backend, desk.Options{
		Clock:    a.clock,
		Logger:   log,
		CacheTTL: cfg.CacheTTL.Std(),
		PageSize: cfg.PageSize,
		Storage:  storage,
		Metrics:  desk.NewMetrics(a.registry),
		Batch: batch.Options{
			Delay:        cfg.BatchDelay.Std(),
			DismissDelay: dismissDelay,
			Notifier:     batch.NotifierFunc(a.printNotice),
			Downloader:   fileDownloader{dir: cfg.ExportDirAbs},
			Metrics:      batch.NewMetrics(a.registry),
		},
	})
	if err != nil {
		_ = storage.Close()

		return nil, err
	}

	a.session = session

	return a, nil
}

// loadTickets returns the saved data set, else the fixture file, else a
// generated one.
func (a *app) loadTickets(ctx context.Context) ([]ticket.Ticket, error) {
	tickets, err := mockdesk.LoadState(ctx, a.storage)

	switch {
	case err == nil:
		return tickets, nil
	case !errors.Is(err, state.ErrNotFound):
		return nil, err
	case a.cfg.DataFile != "":
		return mockdesk.LoadFixture(a.cfg.DataFile)
	default:
		return mockdesk.Generate(a.cfg.MockTickets, a.clock.Now()), nil
	}
}

// close saves the data set and releases the storage.
func (a *app) close(ctx context.Context) error {
	a.session.Close()

	saveErr := mockdesk.SaveState(ctx, a.storage, a.backend)
	closeErr := a.storage.Close()

	return errors.Join(saveErr, closeErr)
}

func (a *app) printNotice(n batch.Notice) {
	a.io.Println(string(n.Level)+":", n.Message)

	for _, d := range n.Details {
		a.io.Println("  -", d)
	}
}

// fileDownloader writes export blobs into dir.
type fileDownloader struct {
	dir string
}

func (d fileDownloader) Download(_ context.Context, b batch.Blob) (string, error) {
	err := os.MkdirAll(d.dir, 0o750)
	if err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(d.dir, b.Name)

	err = atomic.WriteFile(path, bytes.NewReader(b.Data))
	if err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}

	return path, nil
}
