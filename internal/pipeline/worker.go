package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/igzam/itemgest/internal/answerkey"
	"github.com/igzam/itemgest/internal/engine"
	"github.com/igzam/itemgest/internal/model"
	"github.com/igzam/itemgest/internal/workspace"
)

// Converter renders a source document as markup.
type Converter interface {
	ToHTML(ctx context.Context, path string) (string, error)
}

// Subjects resolves a batch name to its subject taxonomy.
type Subjects interface {
	Detect(baseName string) string
	Get(code string) (model.SubjectSpec, error)
}

// ResultStore persists verdicts.
type ResultStore interface {
	Save(ctx context.Context, v *model.Verdict) error
}

// Worker processes a single document job.
type Worker struct {
	ws        *workspace.Workspace
	subjects  Subjects
	converter Converter
	results   ResultStore
	publisher *Publisher
	log       *slog.Logger
}

// NewWorker wires a worker. results and publisher may be nil.
func NewWorker(ws *workspace.Workspace, subjects Subjects, conv Converter, results ResultStore, pub *Publisher, log *slog.Logger) *Worker {
	return &Worker{
		ws:        ws,
		subjects:  subjects,
		converter: conv,
		results:   results,
		publisher: pub,
		log:       log,
	}
}

// Process runs the full pipeline for a job: resolve subject and answer
// key, convert, extract, persist, publish, archive.
func (w *Worker) Process(ctx context.Context, job *Job) {
	source := job.Source()
	batch := workspace.BaseName(source)
	code := w.subjects.Detect(batch)
	job.SetBatch(batch, code)
	log := w.log.With("job_id", job.ID, "batch", batch, "subject", code)

	spec, err := w.subjects.Get(code)
	if err != nil {
		w.fail(job, log, "subject", err)
		return
	}

	keyPath, batchKey, err := w.ws.FindAnswerKey(batch, code, answerkey.Extensions)
	if err != nil {
		w.fail(job, log, "answer_key", err)
		return
	}
	answers, err := readAnswerKey(keyPath)
	if err != nil {
		w.fail(job, log, "answer_key", err)
		return
	}

	job.SetStatus(StatusConverting, "converting")
	content, err := w.converter.ToHTML(ctx, source)
	if err != nil {
		w.fail(job, log, "converting", err)
		return
	}
	job.setContentHash(ContentHashHex([]byte(content)))

	job.SetStatus(StatusExtracting, "extracting")
	v, err := engine.Run(ctx, engine.Input{
		Content: content,
		Subject: spec,
		Answers: answers,
		Batch:   batch,
	})
	if err != nil {
		var opErr *engine.OperationError
		if errors.As(err, &opErr) {
			log.Error("extraction panicked", "error", err, "stack", string(opErr.Stack))
		}
		w.fail(job, log, "extracting", err)
		return
	}
	job.SetVerdict(v)
	log.Info("extraction complete", "status", v.Status, "items", model.TotalItems(v.Data), "diagnostics", len(v.Diagnostics))

	if _, err := w.ws.WriteOutput(batch, v); err != nil {
		log.Warn("write output failed", "error", err)
		job.AddError(err.Error())
	}
	if w.results != nil {
		if err := w.results.Save(ctx, v); err != nil {
			log.Warn("save verdict failed", "error", err)
			job.AddError(fmt.Sprintf("save verdict: %s", err))
		}
	}

	if !v.Status {
		for _, d := range v.Diagnostics {
			if d.Kind.Fatal() {
				job.AddError(d.Message)
			}
		}
		w.archive(job, log, source, false)
		job.SetStatus(StatusRejected, "validating")
		return
	}

	status := StatusCompleted
	if w.publisher != nil {
		job.SetStatus(StatusPublishing, "publishing")
		res := w.publisher.Publish(ctx, batch, v.Units)
		job.AddPublished(res.Published, len(res.Failures))
		for _, f := range res.Failures {
			job.AddError(fmt.Sprintf("order %d: %s", f.Order, f.Error))
		}
		switch {
		case len(res.Failures) > 0 && res.Published > 0:
			status = StatusPartial
		case len(res.Failures) > 0:
			status = StatusFailed
		}
	}

	w.archive(job, log, source, true)
	if batchKey {
		if _, err := w.ws.ArchiveAnswerKey(keyPath); err != nil {
			log.Warn("archive answer key failed", "error", err)
		}
	}
	job.SetStatus(status, "done")
}

// fail records err and moves the source document to the failed archive.
func (w *Worker) fail(job *Job, log *slog.Logger, phase string, err error) {
	log.Error("job failed", "phase", phase, "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	w.archive(job, log, job.Source(), false)
	job.SetStatus(StatusFailed, phase)
}

func (w *Worker) archive(job *Job, log *slog.Logger, source string, ok bool) {
	if _, err := os.Stat(source); err != nil {
		return
	}
	dst, err := w.ws.Complete(source, ok)
	if err != nil {
		log.Warn("archive source failed", "error", err)
		return
	}
	job.setSource(dst)
}

func readAnswerKey(path string) (model.AnswerMap, error) {
	p, err := answerkey.ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open answer key: %w", err)
	}
	defer f.Close()
	answers, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse answer key %s: %w", path, err)
	}
	return answers, nil
}
