// ABOUTME: CLI entry point for canvas-export.
// ABOUTME: Parses flags, lists courses or exports the selected ones to <course_code>.zip files.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

type options struct {
	list      bool
	all       bool
	force     bool
	table     bool
	verbose   bool
	outputDir string
	courses   []string
}

func parseArgs(args []string, errOut io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("canvas-export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.BoolVar(&opts.list, "l", false, "")
	fs.BoolVar(&opts.list, "list", false, "")
	fs.BoolVar(&opts.all, "a", false, "")
	fs.BoolVar(&opts.all, "all", false, "")
	fs.BoolVar(&opts.force, "f", false, "")
	fs.BoolVar(&opts.force, "force", false, "")
	fs.BoolVar(&opts.table, "t", false, "")
	fs.BoolVar(&opts.table, "table", false, "")
	fs.BoolVar(&opts.verbose, "v", false, "")
	fs.BoolVar(&opts.verbose, "verbose", false, "")
	fs.StringVar(&opts.outputDir, "o", "", "")
	fs.StringVar(&opts.outputDir, "output", "", "")
	fs.Usage = func() {
		fmt.Fprint(errOut, `Export and download course files from Canvas LMS

Usage: canvas-export [flags] [COURSE...]

  COURSE            either the code or id of a course you want to export

Flags:
  -l, --list        list all available courses by code and name then exit
  -t, --table       with --list, print the courses as a table
  -a, --all         export all courses
  -f, --force       overwrite existing files rather than skipping them
  -o, --output DIR  directory to write archives to
  -v, --verbose     log every API request

Environment:
  CANVAS_ACCESS_TOKEN  API access token
  CANVAS_API_BASE      base URL of the Canvas instance
`)
	}

	// flag stops at the first positional, so keep parsing after each one to
	// allow flags after course arguments.
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		opts.courses = append(opts.courses, args[0])
		args = args[1:]
	}

	return opts, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}

	level := cfg.LogLevel
	if opts.verbose {
		level = "debug"
	}
	if err := setupLogging(os.Stderr, level, isTerminal(os.Stderr)); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: log_level: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep := NewReporter(os.Stdout, os.Stderr)
	if err := run(ctx, cfg, opts, rep); err != nil {
		rep.Abort()
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, opts *options, rep *Reporter) error {
	client, err := NewCanvasClient(cfg.BaseURL, cfg.AccessToken, WithPollInterval(cfg.PollInterval))
	if err != nil {
		return err
	}

	courses, err := client.Courses(ctx)
	if err != nil {
		return fmt.Errorf("listing courses: %w", err)
	}

	if opts.list {
		return rep.ListCourses(courses, opts.table)
	}

	available := catalogSet(courses)

	selected := available
	if !opts.all {
		selected = resolveCourses(opts.courses, available, rep.Skip)
	}

	if selected.Len() == 0 {
		rep.Info("No courses to export. Exiting.")
		return nil
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return err
	}

	for _, id := range selected.IDs() {
		code, _ := selected.Code(id)
		if err := exportOne(ctx, client, cfg, opts.force, rep, id, code); err != nil {
			return fmt.Errorf("exporting %s: %w", code, err)
		}
	}

	return nil
}

func exportOne(ctx context.Context, client *CanvasClient, cfg *Config, force bool, rep *Reporter, id int, code string) error {
	filename := filepath.Join(cfg.OutputDir, archiveName(code))

	if info, err := os.Stat(filename); err == nil && !info.IsDir() && !force {
		rep.Skip(fmt.Sprintf("Skipping '%s' because it already exists", filename))
		return nil
	}

	if cfg.ExportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ExportTimeout)
		defer cancel()
	}

	rep.Requesting(code)

	resp, err := client.ExportCourse(ctx, id, rep.Progress)
	if err != nil {
		rep.Abort()
		return err
	}

	rep.Downloading(code)

	written, err := saveResponse(resp, filename, cfg.ChunkSize)
	if err != nil {
		return err
	}

	rep.Complete(written)
	return nil
}

func archiveName(code string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(code) + ".zip"
}
