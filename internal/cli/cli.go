package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librecur/attendance"
	"github.com/cyp0633/librecur/event"
	"github.com/cyp0633/librecur/icalendar"
	"github.com/cyp0633/librecur/internal/config"
	"github.com/cyp0633/librecur/internal/xcal"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/timezone"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// app carries the settings shared by every subcommand.
type app struct {
	configPath string
	timezone   string
	allDay     bool
	verbose    bool
	format     string

	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(time.Now)
}

func newRootCmd(now func() time.Time) *cobra.Command {
	a := &app{now: now}

	cmd := &cobra.Command{
		Use:   "recurctl",
		Short: "Parse, check and serialize event recurrence rules",
		Long: `recurctl works with the RRULE/RDATE/EXDATE subset used by the event
backend: it parses and re-serializes recurrence lines, checks instants against
the quarter-hour scheduling grid and computes attendance windows.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.timezone, "tz", "", "Event timezone (overrides config)")
	cmd.PersistentFlags().BoolVar(&a.allDay, "all-day", false, "Treat values as all-day (overrides config)")
	cmd.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Enable debug logging on stderr")
	cmd.PersistentFlags().StringVar(&a.format, "format", "text", "Output format: text or json")

	cmd.AddCommand(
		a.parseCmd(),
		a.formatCmd(),
		a.validateCmd(),
		a.windowCmd(),
		a.icsCmd(),
		a.configCmd(),
	)
	return cmd
}

// setup loads the config file and lets explicitly set flags win over it.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("tz") {
		cfg.Timezone = a.timezone
	}
	if flags.Changed("all-day") {
		cfg.AllDay = a.allDay
	}
	if flags.Changed("verbose") {
		cfg.Verbose = a.verbose
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.logger.Debug("configuration loaded",
		"path", a.configPath,
		"timezone", cfg.Timezone,
		"all_day", cfg.AllDay)
	return nil
}

func (a *app) outputFormat() (OutputFormat, error) {
	return parseFormat(strings.ToLower(a.format))
}

func (a *app) location() (*time.Location, error) {
	return timezone.Load(a.cfg.Timezone)
}

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [LINE...]",
		Short: "Parse recurrence lines (from args or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			lines, err := inputLines(cmd, args)
			if err != nil {
				return err
			}

			rec, err := recurrence.ParseRecurrence(lines, a.cfg.AllDay)
			if err != nil {
				return err
			}
			result := ParseResult{Lines: recurrence.SerializeRecurrence(rec, a.cfg.AllDay)}
			if r, ok := rec.Get(); ok {
				result.Recurring = true
				result.Recurrence = &r
			}
			return writeParse(cmd.OutOrStdout(), result, format)
		},
	}
}

func (a *app) formatCmd() *cobra.Command {
	var asXCal bool
	cmd := &cobra.Command{
		Use:   "format [LINE...]",
		Short: "Normalize recurrence lines, optionally as xCal",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := inputLines(cmd, args)
			if err != nil {
				return err
			}
			rec, err := recurrence.ParseRecurrence(lines, a.cfg.AllDay)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asXCal {
				r, ok := rec.Get()
				if !ok {
					return errors.New("no recurrence to format")
				}
				data, err := xcal.Marshal(r, a.cfg.AllDay)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			for _, line := range recurrence.SerializeRecurrence(rec, a.cfg.AllDay) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asXCal, "xcal", false, "Write an RFC 6321 xCal document")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate INSTANT...",
		Short: "Check instants against the scheduling grid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			loc, err := a.location()
			if err != nil {
				return err
			}

			results := make([]ValidateResult, 0, len(args))
			failed := 0
			for _, arg := range args {
				r := ValidateResult{Input: arg, Valid: true}
				if err := recurrence.ValidateString(a.cfg.AllDay, arg, loc); err != nil {
					failed++
					r.Valid = false
					r.Error = err.Error()
					var rerr *recurrence.Error
					if errors.As(err, &rerr) {
						r.Violation = rerr.Violation
					}
				}
				results = append(results, r)
			}

			if err := writeValidate(cmd.OutOrStdout(), results, format); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d values are off the grid", failed, len(args))
			}
			return nil
		},
	}
}

// engine builds an occurrence engine from the cache section of the config.
func (a *app) engine() *recurrence.Engine {
	cfg := a.cfg.EngineConfig()
	cfg.Logger = a.logger
	engine := recurrence.NewEngineWithConfig(cfg)

	stats := engine.CacheStats()
	a.logger.Debug("occurrence engine ready",
		"cache_enabled", cfg.CacheEnabled,
		"max_entries", stats.MaxEntries,
		"ttl", stats.TTL)
	return engine
}

func (a *app) windowCmd() *cobra.Command {
	var start, end, occurrence, nowFlag string
	var recur []string
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Show the attend and leave windows of an occurrence",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			loc, err := a.location()
			if err != nil {
				return err
			}

			ev := event.Event{ID: "cli", AllDay: a.cfg.AllDay, Timezone: a.cfg.Timezone}
			if ev.Start, err = recurrence.ParseInstant(start, loc); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if ev.End, err = recurrence.ParseInstant(end, loc); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			if ev, err = ev.WithRecurrenceLines(recur); err != nil {
				return fmt.Errorf("--recur: %w", err)
			}
			if err := ev.Validate(timezone.Load); err != nil {
				return err
			}

			occ := ev.Start
			if occurrence != "" {
				if occ, err = recurrence.ParseInstant(occurrence, loc); err != nil {
					return fmt.Errorf("--occurrence: %w", err)
				}
			}
			if rec, ok := ev.Recurrence.Get(); ok {
				engine := a.engine()
				defer engine.Close()

				occurs, err := engine.HasOccurrence(ev.Start.In(loc), ev.AllDay, rec, occ)
				if err != nil {
					return err
				}
				if !occurs {
					return fmt.Errorf("%s is not an occurrence of the event", occ.In(loc).Format(time.RFC3339))
				}
			}
			now := a.now()
			if nowFlag != "" {
				if now, err = recurrence.ParseInstant(nowFlag, loc); err != nil {
					return fmt.Errorf("--now: %w", err)
				}
			}

			calc := attendance.NewCalculator(attendance.WithCalculatorLogger(a.logger))
			attend, err := calc.AttendWindow(ev, occ)
			if err != nil {
				return err
			}
			leave, err := calc.LeaveWindow(ev, occ)
			if err != nil {
				return err
			}

			return writeWindow(cmd.OutOrStdout(), WindowResult{
				Timezone:   loc.String(),
				Occurrence: occ.In(loc),
				Now:        now.In(loc),
				Attend:     newSpan(attend),
				Leave:      newSpan(leave),
				Attendable: attend.Contains(now),
				Leaveable:  leave.Contains(now),
			}, format)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Event start (required)")
	cmd.Flags().StringVar(&end, "end", "", "Event end (required)")
	cmd.Flags().StringVar(&occurrence, "occurrence", "", "Occurrence start (defaults to --start)")
	cmd.Flags().StringVar(&nowFlag, "now", "", "Instant to test (defaults to the current time)")
	cmd.Flags().StringArrayVar(&recur, "recur", nil, "Recurrence line of the event; the occurrence must belong to it (repeatable)")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func (a *app) icsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ics FILE",
		Short: "Read events from an iCalendar file and check them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			codec := icalendar.New(
				icalendar.WithDefaultTimezone(a.cfg.Timezone),
				icalendar.WithLogger(a.logger))
			events, err := codec.ReadEvents(r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			invalid := 0
			for _, ev := range events {
				status := "ok"
				if err := ev.Validate(timezone.Load); err != nil {
					invalid++
					status = err.Error()
					a.logger.Info("invalid event", "uid", ev.ID, "error", err)
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", ev.ID, ev.Start.Format(time.RFC3339), status)
				for _, line := range ev.RecurrenceLines() {
					fmt.Fprintf(out, "\t%s\n", line)
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d events are invalid", invalid, len(events))
			}
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "Write a default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	return cmd
}

// inputLines returns args, or the non-empty lines of stdin when there are none.
func inputLines(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	var lines []string
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
