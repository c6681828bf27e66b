// Package main is a one-shot command line client for the attendance engine.
// It loads state from the remote store, runs one command, flushes whatever
// the command changed and exits.
//
// Usage:
//
//	attendctl [-env file] <command> [arguments]
//
// Run attendctl help for the command list.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/attendance-hub/attendance-tracker/config"
	"github.com/attendance-hub/attendance-tracker/internal/application/query"
	"github.com/attendance-hub/attendance-tracker/internal/application/store"
	"github.com/attendance-hub/attendance-tracker/internal/bootstrap"
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
	"github.com/attendance-hub/attendance-tracker/internal/domain/shared"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

var errUsage = errors.New("usage")

func main() {
	fs := flag.NewFlagSet("attendctl", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "dotenv file to load before the environment")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.LoadFrom(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attendctl: %v\n", err)
		os.Exit(1)
	}
	log := bootstrap.NewLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, fs.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "attendctl: %v\n", err)
		if shared.IsValidation(err) || shared.IsNotFound(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

type command struct {
	usage    string
	readOnly bool
	run      func(ctx context.Context, e *bootstrap.Engine, args []string, out io.Writer) error
}

var commands = map[string]command{
	"report":          {usage: "report [-from YYYY-MM-DD -to YYYY-MM-DD]", readOnly: true, run: cmdReport},
	"calendar":        {usage: "calendar YYYY-MM", readOnly: true, run: cmdCalendar},
	"status":          {usage: "status", readOnly: true, run: cmdStatus},
	"add-semester":    {usage: "add-semester [-copy-from ID] NAME", run: cmdAddSemester},
	"delete-semester": {usage: "delete-semester ID", run: cmdDeleteSemester},
	"use-semester":    {usage: "use-semester ID", run: cmdUseSemester},
	"add-subject":     {usage: "add-subject [-type theory|lab] NAME", run: cmdAddSubject},
	"remove-subject":  {usage: "remove-subject ID", run: cmdRemoveSubject},
	"mark":            {usage: "mark DATE present|absent|free|cancelled|holiday|exam", run: cmdMark},
	"mark-today":      {usage: "mark-today SUBJECT_ID present|absent|free|cancelled", run: cmdMarkToday},
	"clear-day":       {usage: "clear-day DATE", run: cmdClearDay},
	"add-reminder":    {usage: "add-reminder -date YYYY-MM-DD [-time HH:MM] TITLE", run: cmdAddReminder},
	"remove-reminder": {usage: "remove-reminder ID", run: cmdRemoveReminder},
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: attendctl [-env file] <command> [arguments]")
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

// run executes one command against a freshly loaded engine.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}

	engine, err := bootstrap.OpenEngine(ctx, cfg, log)
	if err != nil {
		return err
	}

	if _, err := engine.Coordinator.Load(ctx); err != nil && !cmd.readOnly {
		_ = engine.Close(ctx)
		return fmt.Errorf("refusing to modify built-in data: %w", err)
	}

	cmdErr := cmd.run(ctx, engine, args[1:], out)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Sync.SaveTimeout)
	defer cancel()
	if err := engine.Close(closeCtx); err != nil {
		return errors.Join(cmdErr, fmt.Errorf("save changes: %w", err))
	}
	return cmdErr
}

func exactArgs(args []string, n int) error {
	if len(args) != n {
		return errUsage
	}
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdReport(ctx context.Context, e *bootstrap.Engine, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	from := fs.String("from", "", "first date of the cumulative series")
	to := fs.String("to", "", "last date of the cumulative series")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return errUsage
	}

	report, err := query.NewGetAttendanceReportHandler(e.Store).Handle(ctx, query.GetAttendanceReportQuery{
		SeriesFrom: *from,
		SeriesTo:   *to,
	})
	if err != nil {
		return err
	}
	return printJSON(out, report)
}

func cmdCalendar(ctx context.Context, e *bootstrap.Engine, args []string, out io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	month, err := time.Parse("2006-01", args[0])
	if err != nil {
		return fmt.Errorf("month %q: expected YYYY-MM", args[0])
	}

	cal, err := query.NewGetCalendarMonthHandler(e.Store, e.Store.Location()).Handle(ctx, query.GetCalendarMonthQuery{
		Year:  month.Year(),
		Month: month.Month(),
	})
	if err != nil {
		return err
	}
	return printJSON(out, cal)
}

func cmdStatus(_ context.Context, e *bootstrap.Engine, args []string, out io.Writer) error {
	if err := exactArgs(args, 0); err != nil {
		return err
	}
	return printJSON(out, struct {
		Client    any `json:"client"`
		Resources any `json:"resources"`
	}{e.Client.Status(), e.Coordinator.Status()})
}

func cmdAddSemester(_ context.Context, e *bootstrap.Engine, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-semester", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	copyFrom := fs.String("copy-from", "", "semester whose subjects are copied")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}

	id, err := e.Store.AddSemester(strings.Join(fs.Args(), " "), store.AddSemesterOptions{SourceSemesterID: *copyFrom})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, id)
	return nil
}

func cmdDeleteSemester(_ context.Context, e *bootstrap.Engine, args []string, _ io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	return e.Store.DeleteSemester(args[0])
}

func cmdUseSemester(_ context.Context, e *bootstrap.Engine, args []string, _ io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	return e.Store.SetCurrentSemester(args[0])
}

func cmdAddSubject(_ context.Context, e *bootstrap.Engine, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-subject", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	kind := fs.String("type", string(attendance.SubjectTheory), "theory or lab")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}

	id, err := e.Store.AddSubject(strings.Join(fs.Args(), " "), attendance.SubjectType(*kind))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, id)
	return nil
}

func cmdRemoveSubject(_ context.Context, e *bootstrap.Engine, args []string, _ io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	return e.Store.RemoveSubject(args[0])
}

func cmdMark(_ context.Context, e *bootstrap.Engine, args []string, _ io.Writer) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	return e.Store.MarkDayStatus(args[0], attendance.Mark(args[1]))
}

func cmdMarkToday(_ context.Context, e *bootstrap.Engine, args []string, _ io.Writer) error {
	if err := exactArgs(args, 2); err != nil {
		return err
	}
	return e.Store.MarkTodayAttendance(args[0], attendance.LectureStatus(args[1]))
}

func cmdClearDay(_ context.Context, e *bootstrap.Engine, args []string, _ io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	return e.Store.RemoveDayAttendance(args[0])
}

func cmdAddReminder(_ context.Context, e *bootstrap.Engine, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-reminder", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	date := fs.String("date", "", "calendar date YYYY-MM-DD")
	at := fs.String("time", "", "optional time HH:MM")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}

	r, err := e.Store.AddReminder(reminder.Draft{
		Title: strings.Join(fs.Args(), " "),
		Date:  *date,
		Time:  *at,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, r.ID)
	return nil
}

func cmdRemoveReminder(_ context.Context, e *bootstrap.Engine, args []string, _ io.Writer) error {
	if err := exactArgs(args, 1); err != nil {
		return err
	}
	return e.Store.RemoveReminder(args[0])
}
