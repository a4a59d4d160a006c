// Package replay drives an instrumented page without a browser: it submits
// the page's forms and injects HTML fragments as DOM insertions, so the
// capture pipeline can be exercised against real markup.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vincentbai/getracker/internal/dom"
	"github.com/vincentbai/getracker/internal/tracker"
)

const pollInterval = 10 * time.Millisecond

type Runner struct {
	client *tracker.Client
	doc    *dom.Document
	logger *slog.Logger
	values map[string]string
}

// NewRunner expects client to be auto-capturing doc.
func NewRunner(client *tracker.Client, doc *dom.Document, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{client: client, doc: doc, logger: logger}
}

// SetValues sets control values to fill in, by control name, before each
// form is submitted.
func (r *Runner) SetValues(values map[string]string) {
	r.values = values
}

// SubmitForms fills and submits each form. Forms without an email are
// submitted too; the client decides what to capture.
func (r *Runner) SubmitForms(forms []*dom.Form) {
	for _, f := range forms {
		r.fill(f)
		r.logger.Debug("Submitting form", slog.String("id", f.ID()))
		f.Submit()
	}
}

func (r *Runner) fill(f *dom.Form) {
	for name, value := range r.values {
		if err := f.SetValue(name, value); err != nil {
			r.logger.Debug("Skipping fill value", slog.String("id", f.ID()), slog.String("error", err.Error()))
		}
	}
}

// Inject appends fragment to the body, waits until the client has
// instrumented every form it contains, then submits them.
func (r *Runner) Inject(ctx context.Context, fragment string) ([]*dom.Form, error) {
	nodes, err := r.doc.AppendHTML(fragment)
	if err != nil {
		return nil, fmt.Errorf("failed to append fragment: %w", err)
	}

	var forms []*dom.Form
	for _, n := range nodes {
		forms = append(forms, r.doc.FormsIn(n)...)
	}

	for _, f := range forms {
		if err := waitInstrumented(ctx, f); err != nil {
			return nil, err
		}
	}
	r.SubmitForms(forms)
	return forms, nil
}

// InjectFile is Inject with the contents of path.
func (r *Runner) InjectFile(ctx context.Context, path string) ([]*dom.Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment: %w", err)
	}
	return r.Inject(ctx, string(data))
}

// Replay injects every file the watcher reports until ctx is done.
func (r *Runner) Replay(ctx context.Context, w *Watcher) {
	for path := range w.Events() {
		forms, err := r.InjectFile(ctx, path)
		if err != nil {
			r.logger.Warn("Failed to inject fragment", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		r.logger.Info("Injected fragment", slog.String("path", path), slog.Int("forms", len(forms)))
	}
}

func waitInstrumented(ctx context.Context, f *dom.Form) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for !f.HasAttr(tracker.MarkerAttr) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("form %q was not instrumented: %w", f.ID(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
