// Package tracker decides, once per invocation, whether a directory's content
// changed since the previous invocation.
//
// The tracker keeps no state of its own. Whether a run is the first one is
// recomputed every time from the store: an empty current generation means the
// baseline still has to be recorded.
package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dirwatch/internal/log"
	"dirwatch/internal/scanner"
	"dirwatch/internal/storage"
	"dirwatch/internal/telemetry"
)

// Outcome is the verdict of a single run.
type Outcome int

const (
	// FirstRun means no baseline existed and one was recorded.
	FirstRun Outcome = iota
	// Unchanged means every current (path, hash) pair was already known.
	Unchanged
	// Changed means at least one current (path, hash) pair is new.
	Changed
)

func (o Outcome) String() string {
	switch o {
	case FirstRun:
		return "first run, baseline recorded"
	case Unchanged:
		return "no changes detected"
	case Changed:
		return "changes detected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Store is the persistence the tracker drives.
type Store interface {
	Count(ctx context.Context, gen storage.Generation) (int, error)
	Replace(ctx context.Context, gen storage.Generation, records []storage.FileRecord) error
	Advance(ctx context.Context, records []storage.FileRecord) error
	Changed(ctx context.Context) ([]storage.FileRecord, error)
}

// Scanner produces the records of one scan.
type Scanner interface {
	Scan() (scanner.Result, error)
}

// Report describes a completed run.
type Report struct {
	Outcome Outcome
	// Files is the number of records written to the current generation.
	Files int
	// Changed lists current records absent from previous. Empty on a first run.
	Changed []storage.FileRecord
	Skipped []scanner.Skip
}

// Tracker composes a scanner and a store.
type Tracker struct {
	store   Store
	scanner Scanner
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a tracker. A nil logger uses the global one.
func New(store Store, sc Scanner, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = log.Component("tracker")
	}
	return &Tracker{
		store:   store,
		scanner: sc,
		logger:  logger,
		tracer:  telemetry.Tracer("dirwatch/tracker"),
	}
}

// Run performs one scan-and-compare cycle. The directory is scanned before
// the store is touched, and the rotation is committed together with the new
// scan, so a failed run leaves the store as it was.
func (t *Tracker) Run(ctx context.Context) (report Report, err error) {
	ctx, span := t.tracer.Start(ctx, "tracker.run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("outcome", report.Outcome.String()))
		}
		span.End()
	}()

	existing, err := t.store.Count(ctx, storage.Current)
	if err != nil {
		return Report{}, fmt.Errorf("count current generation: %w", err)
	}

	res, err := t.scan(ctx)
	if err != nil {
		return Report{}, err
	}
	report = Report{Files: len(res.Records), Skipped: res.Skipped}

	if existing == 0 {
		if err := t.store.Replace(ctx, storage.Current, res.Records); err != nil {
			return Report{}, fmt.Errorf("record baseline: %w", err)
		}
		report.Outcome = FirstRun
		t.logger.Info("baseline recorded", "files", report.Files)
		return report, nil
	}

	if err := t.advance(ctx, res.Records); err != nil {
		return Report{}, err
	}

	changed, err := t.store.Changed(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("compare generations: %w", err)
	}
	report.Changed = changed
	report.Outcome = Unchanged
	if len(changed) > 0 {
		report.Outcome = Changed
	}

	t.logger.Info("generations compared",
		"previous_files", existing,
		"current_files", report.Files,
		"changed", len(changed))
	return report, nil
}

func (t *Tracker) scan(ctx context.Context) (scanner.Result, error) {
	_, span := t.tracer.Start(ctx, "tracker.scan")
	defer span.End()

	res, err := t.scanner.Scan()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return scanner.Result{}, fmt.Errorf("scan directory: %w", err)
	}
	span.SetAttributes(
		attribute.Int("files", len(res.Records)),
		attribute.Int("skipped", len(res.Skipped)),
		attribute.Int64("bytes", res.Bytes),
	)
	return res, nil
}

func (t *Tracker) advance(ctx context.Context, records []storage.FileRecord) error {
	ctx, span := t.tracer.Start(ctx, "tracker.advance")
	defer span.End()

	if err := t.store.Advance(ctx, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("rotate generations: %w", err)
	}
	return nil
}
