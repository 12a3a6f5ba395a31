// Package cli implements the recurctl command-line interface.
//
// recurctl exposes the recurrence engine on the command line: parsing and
// re-serializing RRULE/RDATE/EXDATE lines, checking instants against the
// scheduling grid, computing attendance windows and reading iCalendar files.
package cli
