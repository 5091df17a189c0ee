// Package parser turns the output of the remote optimize script into
// per-database results.
//
// The script prints one chunk per requested database, separated by a line of
// ten '=' characters:
//
//	==========
//	shop.orders
//	note     : Table does not support optimize, doing recreate + analyze instead
//	status   : OK
//	shop.customers
//	status   : OK
//	==========
//	mysqlcheck: Got error: 1049: Unknown database 'missingdb' when selecting the database
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

const (
	// Delimiter separates per-database chunks of output
	Delimiter = "=========="

	unknownDatabaseMarker = "Got error: 1049: Unknown database"
	unknownNameStart      = "database '"
	unknownNameEnd        = "' when"
	statusToken           = "status"
	statusOK              = "OK"
)

// Kind identifies which variant a Result holds
type Kind int

const (
	// TableReport is a per-table status tally for one database
	TableReport Kind = iota
	// UnknownDatabase means the database does not exist on the server
	UnknownDatabase
)

// String returns a string representation of the kind
func (k Kind) String() string {
	switch k {
	case TableReport:
		return "table_report"
	case UnknownDatabase:
		return "unknown_database"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome tallies table-level maintenance results for one database
type Outcome struct {
	OK   int `json:"ok" yaml:"ok"`
	Fail int `json:"fail" yaml:"fail"`
}

// Result is the parsed outcome of one output chunk
type Result struct {
	Kind     Kind
	Database string
	Outcome  Outcome // zero for UnknownDatabase
}

// NewTableReport builds a TableReport result
func NewTableReport(database string, ok, fail int) Result {
	return Result{Kind: TableReport, Database: database, Outcome: Outcome{OK: ok, Fail: fail}}
}

// NewUnknownDatabase builds an UnknownDatabase result
func NewUnknownDatabase(database string) Result {
	return Result{Kind: UnknownDatabase, Database: database}
}

// Parse splits lines into delimiter-bounded runs and classifies each run.
// Results keep the order of the runs. Empty input yields an empty slice.
func Parse(lines []string) []Result {
	runs := SplitRuns(lines)
	results := make([]Result, 0, len(runs))
	for _, run := range runs {
		results = append(results, parseRun(run))
	}
	return results
}

// ReadLines collects every line of r, without line terminators
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("error reading output: %w", err)
	}
	return lines, nil
}

// SplitRuns partitions lines into maximal runs of non-delimiter lines.
// Empty runs (leading, trailing, or adjacent delimiters) are dropped.
func SplitRuns(lines []string) [][]string {
	var runs [][]string
	var current []string

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r\n")
		if line == Delimiter {
			if len(current) > 0 {
				runs = append(runs, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}

	return runs
}

func parseRun(run []string) Result {
	first := run[0]
	if strings.Contains(first, unknownDatabaseMarker) {
		return NewUnknownDatabase(unknownDatabaseName(first))
	}

	// First line is "<database>.<table>".
	database, _, _ := strings.Cut(first, ".")

	var outcome Outcome
	for _, line := range run {
		if !strings.Contains(line, statusToken) {
			continue
		}
		fields := strings.Split(stripSpace(line), ":")
		if len(fields) > 1 && fields[1] == statusOK {
			outcome.OK++
		} else {
			outcome.Fail++
		}
	}

	return Result{Kind: TableReport, Database: database, Outcome: outcome}
}

// unknownDatabaseName extracts the name quoted between "database '" and "' when".
// Lines without the quotes fall back to whatever follows the error marker.
func unknownDatabaseName(line string) string {
	if _, rest, ok := strings.Cut(line, unknownNameStart); ok {
		name, _, _ := strings.Cut(rest, unknownNameEnd)
		return name
	}
	_, rest, _ := strings.Cut(line, unknownDatabaseMarker)
	return strings.TrimSpace(rest)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
