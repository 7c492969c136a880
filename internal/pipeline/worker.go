package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/docuwrite/internal/annotate"
)

// Publisher ships a finished build's manifest to an external store.
type Publisher interface {
	Publish(ctx context.Context, jobID string, m *annotate.Manifest) error
}

// Worker runs build jobs.
type Worker struct {
	builder   *Builder
	publisher Publisher
	base      BuildOptions
	log       *slog.Logger
}

// NewWorker returns a Worker building with base as the template for every
// job's options. publisher may be nil.
func NewWorker(builder *Builder, publisher Publisher, base BuildOptions, log *slog.Logger) *Worker {
	return &Worker{
		builder:   builder,
		publisher: publisher,
		base:      base,
		log:       log,
	}
}

// Process runs the full build for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)

	opts := w.base
	opts.Input = job.SourceDir()
	opts.OutputDir = job.OutputDir()
	if job.Title != "" {
		opts.Title = job.Title
	}
	opts.OnPhase = func(phase string) {
		switch phase {
		case PhaseAssembling:
			job.SetStatus(StatusAssembling, phase)
		case PhaseRendering:
			job.SetStatus(StatusRendering, phase)
		}
	}

	res, err := w.builder.Build(ctx, opts)
	if res != nil {
		job.SetManifest(res.Manifest)
		for _, item := range res.Duplicates {
			job.AddError(fmt.Sprintf("duplicate TODO %q shares one label", item))
		}
	}
	if err != nil {
		log.Error("build failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "done")
		return
	}

	m := res.Manifest
	for _, s := range m.Skipped {
		job.AddError(fmt.Sprintf("skipped %s: %s", s.Path, s.Reason))
	}
	for _, f := range m.FailedFigures() {
		job.AddError(fmt.Sprintf("figure %d (%s): %s", f.Number, f.Name, f.Error))
	}

	published := true
	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, job.ID, m); err != nil {
			log.Warn("publish manifest failed", "error", err)
			job.AddError(fmt.Sprintf("publish: %s", err))
			published = false
		}
	}

	if len(m.Skipped) > 0 || len(m.FailedFigures()) > 0 || !published {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished", "status", job.Snapshot().Status, "output", m.Output)
}

// removeWorkspace deletes an expired job's files.
func removeWorkspace(log *slog.Logger, job *Job) {
	if job.dir == "" {
		return
	}
	if err := os.RemoveAll(job.dir); err != nil {
		log.Warn("remove job workspace", "job_id", job.ID, "error", err)
	}
}
