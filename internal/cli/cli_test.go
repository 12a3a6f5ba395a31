package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/librecur/recurrence"
)

var fixedNow = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithStderr(t, stdin, args...)
	return out, err
}

func runWithStderr(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd(func() time.Time { return fixedNow })

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestParseCmd(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{
			name: "args",
			args: []string{"parse", "RRULE:FREQ=WEEKLY;BYDAY=MO,WE"},
			want: "RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;WKST=MO\n",
		},
		{
			name:  "stdin all-day",
			stdin: "RRULE:FREQ=DAILY;UNTIL=20240110\n\nEXDATE;VALUE=DATE:20240105\n",
			args:  []string{"parse", "--all-day"},
			want:  "RRULE:FREQ=DAILY;UNTIL=20240110;INTERVAL=1;WKST=MO\nEXDATE;VALUE=DATE:20240105\n",
		},
		{
			name: "no lines",
			args: []string{"parse"},
			want: "no recurrence\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestParseCmd_JSON(t *testing.T) {
	out, err := run(t, "", "parse", "--format", "json", "RRULE:FREQ=MONTHLY;COUNT=3;BYDAY=-1FR")
	require.NoError(t, err)

	var result struct {
		Recurring  bool `json:"recurring"`
		Recurrence struct {
			Rule struct {
				Freq  string `json:"freq"`
				Count *int   `json:"count"`
			} `json:"rrule"`
		} `json:"recurrence"`
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Recurring)
	assert.Equal(t, "MONTHLY", result.Recurrence.Rule.Freq)
	require.NotNil(t, result.Recurrence.Rule.Count)
	assert.Equal(t, 3, *result.Recurrence.Rule.Count)
	assert.Equal(t, []string{"RRULE:FREQ=MONTHLY;COUNT=3;INTERVAL=1;BYDAY=-1FR;WKST=MO"}, result.Lines)
}

func TestParseCmd_Errors(t *testing.T) {
	_, err := run(t, "", "parse", "RRULE:FREQ=DAILY;COUNT=2;UNTIL=20240101T000000Z")
	assert.True(t, recurrence.IsType(err, recurrence.ErrConflictingBounds), "got %v", err)

	_, err = run(t, "", "parse", "EXDATE;VALUE=DATE:20240101")
	assert.True(t, recurrence.IsType(err, recurrence.ErrDateOnlyOnTimedEvent), "got %v", err)

	_, err = run(t, "", "parse", "--format", "yaml", "RRULE:FREQ=DAILY")
	assert.Error(t, err)
}

func TestFormatCmd_XCal(t *testing.T) {
	out, err := run(t, "", "format", "--xcal", "--all-day", "RRULE:FREQ=DAILY;UNTIL=20240110", "RDATE;VALUE=DATE:20240201")
	require.NoError(t, err)
	assert.Contains(t, out, "<freq>DAILY</freq>")
	assert.Contains(t, out, "<until>2024-01-10</until>")
	assert.Contains(t, out, "<date>2024-02-01</date>")

	_, err = run(t, "", "format", "--xcal")
	assert.Error(t, err)
}

func TestValidateCmd(t *testing.T) {
	out, err := run(t, "", "validate", "2024-01-01T09:15:00Z", "2024-01-01T00:10", "2024-01-01T09:15:30Z", "tomorrow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 4")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "2024-01-01T09:15:00Z\tok", lines[0])
	assert.Equal(t, "2024-01-01T00:10\tminute-off-grid", lines[1])
	assert.Equal(t, "2024-01-01T09:15:30Z\tseconds-not-zero", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "tomorrow\terror: "))

	out, err = run(t, "", "validate", "--all-day", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01\tok\n", out)
}

func TestWindowCmd(t *testing.T) {
	out, err := run(t, "", "window", "--format", "json",
		"--start", "2024-05-01T09:00", "--end", "2024-05-01T10:00")
	require.NoError(t, err)

	var result WindowResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Attend.Opens.Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, result.Attend.Closes.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, result.Leave.Closes.Equal(time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)))
	assert.True(t, result.Attendable)
	assert.False(t, result.Leaveable)

	out, err = run(t, "", "window", "--all-day",
		"--start", "2000-01-01", "--end", "2000-01-02", "--now", "2000-01-03T00:01")
	require.NoError(t, err)
	assert.Contains(t, out, "attend\t2000-01-01 00:00 UTC .. 2000-01-02 00:00 UTC\tclosed")

	_, err = run(t, "", "window", "--start", "2024-05-01T09:05", "--end", "2024-05-01T10:00")
	assert.True(t, recurrence.IsType(err, recurrence.ErrInvalidTimeSlot), "got %v", err)
}

func TestWindowCmd_Recurrence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recurctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verbose: true\ncache:\n  preset: high_traffic\n"), 0o600))

	standup := []string{"--config", path, "window",
		"--start", "2024-01-01T09:00", "--end", "2024-01-01T09:30",
		"--recur", "RRULE:FREQ=WEEKLY;COUNT=4;BYDAY=MO"}

	t.Run("third monday", func(t *testing.T) {
		args := append(append([]string{}, standup...), "--occurrence", "2024-01-15T09:00", "--now", "2024-01-15T09:10")
		out, stderr, err := runWithStderr(t, "", args...)
		require.NoError(t, err)
		assert.Contains(t, out, "attend\t2024-01-15 08:30 UTC .. 2024-01-15 09:30 UTC\topen")
		assert.Contains(t, stderr, "occurrence engine ready")
		assert.Contains(t, stderr, "max_entries=5000")
	})

	t.Run("tuesday is not an occurrence", func(t *testing.T) {
		args := append(append([]string{}, standup...), "--occurrence", "2024-01-16T09:00")
		_, err := run(t, "", args...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not an occurrence")
	})

	t.Run("past the count", func(t *testing.T) {
		args := append(append([]string{}, standup...), "--occurrence", "2024-01-29T09:00")
		_, err := run(t, "", args...)
		assert.Error(t, err)
	})

	t.Run("cache disabled by preset", func(t *testing.T) {
		disabled := filepath.Join(t.TempDir(), "disabled.yaml")
		require.NoError(t, os.WriteFile(disabled, []byte("verbose: true\ncache:\n  preset: disabled\n"), 0o600))

		args := append([]string{"--config", disabled}, standup[2:]...)
		_, stderr, err := runWithStderr(t, "", args...)
		require.NoError(t, err)
		assert.Contains(t, stderr, "cache_enabled=false")
	})

	t.Run("bad recurrence line", func(t *testing.T) {
		args := append(append([]string{}, standup[:len(standup)-1]...), "RRULE:FREQ=HOURLY;COUNT=2;UNTIL=20240301T000000Z")
		_, err := run(t, "", args...)
		assert.True(t, recurrence.IsType(err, recurrence.ErrConflictingBounds), "got %v", err)
	})
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recurctl.yaml")

	out, err := run(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	require.NoError(t, os.WriteFile(path, []byte("all_day: true\ntimezone: UTC\n"), 0o600))

	out, err = run(t, "", "--config", path, "parse", "RRULE:FREQ=DAILY;UNTIL=20240110")
	require.NoError(t, err)
	assert.Equal(t, "RRULE:FREQ=DAILY;UNTIL=20240110;INTERVAL=1;WKST=MO\n", out)

	// An explicit flag wins over the file.
	_, err = run(t, "", "--config", path, "--all-day=false", "parse", "RRULE:FREQ=DAILY;UNTIL=20240110")
	assert.True(t, recurrence.IsType(err, recurrence.ErrMalformedInstant), "got %v", err)
}

func TestICSCmd(t *testing.T) {
	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:ok@example.com",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240101T090000Z",
		"DTEND:20240101T100000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=MO",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:late@example.com",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240101T090500Z",
		"DTEND:20240101T100000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"

	out, err := run(t, ics, "ics", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out, "ok@example.com\t2024-01-01T09:00:00Z\tok\n")
	assert.Contains(t, out, "\tRRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO;WKST=MO\n")
	assert.Contains(t, out, "minute-off-grid")
}
