package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cyp0633/librecur/attendance"
	"github.com/cyp0633/librecur/recurrence"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
}

// ParseResult is the output of the parse command.
type ParseResult struct {
	Recurring  bool                   `json:"recurring"`
	Recurrence *recurrence.Recurrence `json:"recurrence,omitempty"`
	Lines      []string               `json:"lines"`
}

// ValidateResult is one line of the validate command.
type ValidateResult struct {
	Input     string               `json:"input"`
	Valid     bool                 `json:"valid"`
	Violation recurrence.Violation `json:"violation,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// WindowResult is the output of the window command.
type WindowResult struct {
	Timezone   string    `json:"timezone"`
	Occurrence time.Time `json:"occurrence"`
	Now        time.Time `json:"now"`
	Attend     Span      `json:"attend"`
	Leave      Span      `json:"leave"`
	Attendable bool      `json:"attendable"`
	Leaveable  bool      `json:"leaveable"`
}

// Span is a window in output form.
type Span struct {
	Opens  time.Time `json:"opens"`
	Closes time.Time `json:"closes"`
}

func newSpan(w attendance.Window) Span {
	return Span{Opens: w.Opens, Closes: w.Closes}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeParse(w io.Writer, r ParseResult, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}
	if !r.Recurring {
		_, err := fmt.Fprintln(w, "no recurrence")
		return err
	}
	for _, line := range r.Lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeValidate(w io.Writer, results []ValidateResult, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, results)
	}
	for _, r := range results {
		var err error
		switch {
		case r.Valid:
			_, err = fmt.Fprintf(w, "%s\tok\n", r.Input)
		case r.Violation != "":
			_, err = fmt.Fprintf(w, "%s\t%s\n", r.Input, r.Violation)
		default:
			_, err = fmt.Fprintf(w, "%s\terror: %s\n", r.Input, r.Error)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeWindow(w io.Writer, r WindowResult, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}
	const layout = "2006-01-02 15:04 MST"
	_, err := fmt.Fprintf(w, "attend\t%s .. %s\t%s\nleave\t%s .. %s\t%s\n",
		r.Attend.Opens.Format(layout), r.Attend.Closes.Format(layout), yesNo(r.Attendable),
		r.Leave.Opens.Format(layout), r.Leave.Closes.Format(layout), yesNo(r.Leaveable))
	return err
}

func yesNo(b bool) string {
	if b {
		return "open"
	}
	return "closed"
}
