package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vincentbai/getracker/internal/dom"
	"github.com/vincentbai/getracker/internal/formmap"
)

// MarkerAttr flags a form that already has a submit listener.
const MarkerAttr = "data-ge-capture"

// AutoCapture attaches submit listeners to every form in the document and
// keeps watching for forms added later, until ctx is done. Captures started
// by a submission are not tied to ctx.
func (c *Client) AutoCapture(ctx context.Context) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return fmt.Errorf("autoCapture: %w", ErrNotInitialized)
	}
	if c.document == nil {
		c.mu.Unlock()
		return ErrNoDocument
	}
	if c.formListenersAttached {
		c.mu.Unlock()
		c.logger.Debug("Auto-capture already enabled")
		return nil
	}
	c.formListenersAttached = true
	c.mu.Unlock()

	doc := c.document
	// Subscribe before the first scan so no inserted form falls in between.
	mutations := doc.Observe(ctx)

	attachAll := func() { c.attachToForms(ctx, doc.Forms()) }
	if !doc.OnContentLoaded(attachAll) {
		attachAll()
	}

	go c.observeDynamicForms(ctx, doc, mutations)

	c.logger.Debug("Auto-capture enabled")
	return nil
}

func (c *Client) attachToForms(ctx context.Context, forms []*dom.Form) {
	c.attachMu.Lock()
	defer c.attachMu.Unlock()

	c.logger.Debug("Found forms", slog.Int("count", len(forms)))
	for _, form := range forms {
		if form.HasAttr(MarkerAttr) {
			continue
		}
		form.SetAttr(MarkerAttr, "true")

		index := c.formCount
		c.formCount++
		form.AddSubmitListener(func(f *dom.Form) {
			c.handleSubmit(ctx, f, index)
		})
		c.metrics.formsInstrumented.Inc()
	}
}

func (c *Client) observeDynamicForms(ctx context.Context, doc *dom.Document, mutations <-chan dom.Mutation) {
	for m := range mutations {
		for _, node := range m.Added {
			if forms := doc.FormsIn(node); len(forms) > 0 {
				c.attachToForms(ctx, forms)
			}
		}
	}
}

// handleSubmit starts a capture for the submitted form and returns at once;
// the native submission is never held back.
func (c *Client) handleSubmit(ctx context.Context, form *dom.Form, index int) {
	c.logger.Debug("Form submitted", slog.Int("form", index), slog.String("id", form.ID()))

	extracted, ok := formmap.Extract(form.Fields())
	if !ok {
		c.metrics.submissions.WithLabelValues("skipped").Inc()
		c.logger.Debug("Form does not contain email field, skipping capture")
		return
	}
	c.metrics.submissions.WithLabelValues("captured").Inc()
	c.logger.Debug("Capturing lead data in parallel with form submission")

	captureCtx := context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		result, err := c.Capture(captureCtx, extracted.Lead, extracted.RawFields)
		switch {
		case err != nil:
			c.logger.Debug("Error capturing lead", slog.String("error", err.Error()))
		case result.Success:
			c.logger.Debug("Lead captured successfully")
		default:
			c.logger.Debug("Lead capture failed", slog.String("error", result.Error))
		}
	}()
}
