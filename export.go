// ABOUTME: Content export workflow for a single Canvas course.
// ABOUTME: Creates a zip export, polls progress and workflow state, then opens the attachment.

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	stateExporting = "exporting"
	stateExported  = "exported"
)

type Attachment struct {
	URL string `json:"url"`
}

type ContentExport struct {
	ID            int         `json:"id"`
	ProgressURL   string      `json:"progress_url"`
	WorkflowState string      `json:"workflow_state"`
	Attachment    *Attachment `json:"attachment"`
}

type Progress struct {
	Completion float64 `json:"completion"`
}

// ExportStateError reports an export that finished in a state other than
// "exported", or finished without an attachment to download.
type ExportStateError struct {
	CourseID int
	ExportID int
	State    string
	Reason   string
}

func (e *ExportStateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("course %d export %d: %s (workflow_state %q)", e.CourseID, e.ExportID, e.Reason, e.State)
	}
	return fmt.Sprintf("course %d export %d: illegal export workflow_state %q", e.CourseID, e.ExportID, e.State)
}

// ExportCourse requests a zip export of the course, waits for Canvas to
// finish building it and returns the attachment response with its body
// unread. onProgress, if set, receives the completion percentage after every
// progress poll.
func (c *CanvasClient) ExportCourse(ctx context.Context, courseID int, onProgress func(int)) (*http.Response, error) {
	log := logrus.WithField("course_id", courseID)

	var created ContentExport
	form := url.Values{"export_type": []string{"zip"}}
	_, err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/content_exports", courseID), &requestOptions{form: form}, &created)
	if err != nil {
		return nil, fmt.Errorf("creating export: %w", err)
	}
	log = log.WithField("export_id", created.ID)
	log.Debug("Export created")

	if err := c.waitForProgress(ctx, created.ProgressURL, onProgress); err != nil {
		return nil, err
	}

	export, err := c.waitForExport(ctx, courseID, created.ID)
	if err != nil {
		return nil, err
	}
	log.WithField("state", export.WorkflowState).Debug("Export finished")

	if export.WorkflowState != stateExported {
		return nil, &ExportStateError{CourseID: courseID, ExportID: created.ID, State: export.WorkflowState}
	}
	if export.Attachment == nil || export.Attachment.URL == "" {
		return nil, &ExportStateError{CourseID: courseID, ExportID: created.ID, State: export.WorkflowState, Reason: "no attachment to download"}
	}

	resp, err := c.request(ctx, http.MethodGet, export.Attachment.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching attachment: %w", err)
	}
	return resp, nil
}

func (c *CanvasClient) waitForProgress(ctx context.Context, progressURL string, onProgress func(int)) error {
	var completion float64
	for completion < 100 {
		if err := sleepContext(ctx, c.pollInterval); err != nil {
			return err
		}

		var p Progress
		if _, err := c.getJSON(ctx, progressURL, &p); err != nil {
			return fmt.Errorf("polling progress: %w", err)
		}
		completion = p.Completion

		if onProgress != nil {
			onProgress(int(completion))
		}
	}
	return nil
}

func (c *CanvasClient) waitForExport(ctx context.Context, courseID, exportID int) (ContentExport, error) {
	export := ContentExport{WorkflowState: stateExporting}
	path := fmt.Sprintf("/api/v1/courses/%d/content_exports/%d", courseID, exportID)

	for export.WorkflowState == stateExporting {
		if err := sleepContext(ctx, c.pollInterval); err != nil {
			return export, err
		}

		export = ContentExport{}
		if _, err := c.getJSON(ctx, path, &export); err != nil {
			return export, fmt.Errorf("polling export state: %w", err)
		}
	}
	return export, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
