// ABOUTME: Terminal output for canvas-export.
// ABOUTME: Prints the course catalog and per-course export progress, with color and a spinner on a TTY.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"
)

type Reporter struct {
	out         io.Writer
	errOut      io.Writer
	interactive bool
	spin        *spinner.Spinner

	heading *color.Color
	success *color.Color
	dim     *color.Color
}

func NewReporter(out, errOut io.Writer) *Reporter {
	r := &Reporter{
		out:         out,
		errOut:      errOut,
		interactive: isTerminal(out),
		heading:     color.New(color.FgCyan, color.Bold),
		success:     color.New(color.FgGreen, color.Bold),
		dim:         color.New(color.Faint),
	}
	if !r.interactive {
		r.heading.DisableColor()
		r.success.DisableColor()
		r.dim.DisableColor()
	}
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ListCourses prints every course that has a course code, in catalog order.
func (r *Reporter) ListCourses(courses []Course, asTable bool) error {
	if !asTable {
		for _, c := range courses {
			if c.CourseCode == nil {
				continue
			}
			fmt.Fprintf(r.out, "%s\t%s\n", *c.CourseCode, deref(c.Name))
		}
		return nil
	}

	table := tablewriter.NewWriter(r.out)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.PerColumn = []tw.Align{
			tw.AlignRight, // ID
			tw.AlignLeft,  // Code
			tw.AlignLeft,  // Name
		}
	})
	table.Header("ID", "Code", "Name")

	for _, c := range courses {
		if c.CourseCode == nil {
			continue
		}
		if err := table.Append(strconv.Itoa(c.ID), *c.CourseCode, deref(c.Name)); err != nil {
			return err
		}
	}

	return table.Render()
}

func (r *Reporter) Requesting(code string) {
	r.heading.Fprintf(r.out, "Requesting %s\n", code)

	if r.interactive {
		r.spin = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(r.errOut))
		r.spin.Suffix = " waiting for export..."
		r.spin.Start()
	}
}

func (r *Reporter) Progress(percent int) {
	if r.spin != nil {
		r.spin.Lock()
		r.spin.Suffix = fmt.Sprintf(" Export %d%% complete", percent)
		r.spin.Unlock()
		return
	}
	fmt.Fprintf(r.out, "Export %d%% complete\n", percent)
}

func (r *Reporter) Downloading(code string) {
	r.stopSpinner()
	r.heading.Fprintf(r.out, "Downloading %s\n", code)
}

func (r *Reporter) Complete(written int64) {
	r.success.Fprintf(r.out, "Download complete")
	r.dim.Fprintf(r.out, " (%s)\n", humanize.Bytes(uint64(written)))
}

func (r *Reporter) Skip(msg string) {
	r.dim.Fprintln(r.out, msg)
}

func (r *Reporter) Info(msg string) {
	fmt.Fprintln(r.out, msg)
}

// Abort clears the spinner after a failed export so the error is readable.
func (r *Reporter) Abort() {
	r.stopSpinner()
}

func (r *Reporter) stopSpinner() {
	if r.spin != nil {
		r.spin.Stop()
		r.spin = nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
