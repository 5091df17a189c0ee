package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Leonid-98/optimize-table/internal/metrics"
	"github.com/Leonid-98/optimize-table/internal/parser"
)

// OutputMode defines the available report formats
type OutputMode string

const (
	// TextMode prints the nested, human-readable report followed by the total time line
	TextMode OutputMode = "text"

	// JSONMode emits one indented JSON document for the whole fleet
	JSONMode OutputMode = "json"

	// YAMLMode emits one YAML document for the whole fleet
	YAMLMode OutputMode = "yaml"
)

// ParseMode validates a mode name
func ParseMode(name string) (OutputMode, error) {
	switch mode := OutputMode(name); mode {
	case TextMode, JSONMode, YAMLMode:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown output mode: %s", name)
	}
}

// Formatter renders a finished fleet report
type Formatter interface {
	// Write renders report to the formatter's writer
	Write(report *metrics.FleetReport) error
}

// DefaultFormatter implements Formatter for all output modes
type DefaultFormatter struct {
	mode   OutputMode
	writer io.Writer
}

// NewFormatter creates a new formatter with the specified mode and writer
func NewFormatter(mode OutputMode, writer io.Writer) Formatter {
	if writer == nil {
		writer = os.Stdout
	}
	return &DefaultFormatter{mode: mode, writer: writer}
}

// Write renders report in the configured mode
func (f *DefaultFormatter) Write(report *metrics.FleetReport) error {
	switch f.mode {
	case TextMode:
		return f.writeText(report)
	case JSONMode:
		return f.writeJSON(report)
	case YAMLMode:
		return f.writeYAML(report)
	default:
		return fmt.Errorf("unknown output mode: %s", f.mode)
	}
}

// writeText prints every server in inventory order:
//
//	root@db1.example.com:
//	  shop: {OK: 2, FAIL: 0}
//	  time: 0:00:01.200000
//	Total time: 0:00:01.210000
func (f *DefaultFormatter) writeText(report *metrics.FleetReport) error {
	for _, sr := range report.Servers {
		if _, err := fmt.Fprintf(f.writer, "%s:\n", sr.Target); err != nil {
			return fmt.Errorf("failed to write server header: %w", err)
		}

		if sr.Failure != nil {
			if _, err := fmt.Fprintf(f.writer, "  error: %s\n", sr.Failure.Reason); err != nil {
				return fmt.Errorf("failed to write error: %w", err)
			}
		}

		for _, entry := range sr.Entries {
			if _, err := fmt.Fprintf(f.writer, "  %s: %s\n", entry.Key, entryValue(entry.Result)); err != nil {
				return fmt.Errorf("failed to write entry: %w", err)
			}
		}

		if _, err := fmt.Fprintf(f.writer, "  time: %s\n", FormatDuration(sr.Elapsed)); err != nil {
			return fmt.Errorf("failed to write server time: %w", err)
		}
	}

	return WriteTotal(f.writer, report.TotalElapsed)
}

func entryValue(res parser.Result) string {
	if res.Kind == parser.UnknownDatabase {
		return res.Database
	}
	return fmt.Sprintf("{OK: %d, FAIL: %d}", res.Outcome.OK, res.Outcome.Fail)
}

// WriteTotal prints the closing "Total time:" line
func WriteTotal(w io.Writer, total time.Duration) error {
	if _, err := fmt.Fprintf(w, "Total time: %s\n", FormatDuration(total)); err != nil {
		return fmt.Errorf("failed to write total time: %w", err)
	}
	return nil
}

// FleetDocument is the structured form of a fleet report
type FleetDocument struct {
	Servers        []ServerDocument `json:"servers" yaml:"servers"`
	TotalTime      string           `json:"total_time" yaml:"total_time"`
	TotalElapsedMs int64            `json:"total_elapsed_ms" yaml:"total_elapsed_ms"`
}

// ServerDocument is the structured form of one server report
type ServerDocument struct {
	Server    string             `json:"server" yaml:"server"`
	Time      string             `json:"time" yaml:"time"`
	ElapsedMs int64              `json:"elapsed_ms" yaml:"elapsed_ms"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty"`
	Detail    string             `json:"detail,omitempty" yaml:"detail,omitempty"`
	Databases []DatabaseDocument `json:"databases" yaml:"databases"`
}

// DatabaseDocument is the structured form of one keyed database result
type DatabaseDocument struct {
	Key             string `json:"key" yaml:"key"`
	Database        string `json:"database,omitempty" yaml:"database,omitempty"`
	OK              *int   `json:"ok,omitempty" yaml:"ok,omitempty"`
	Fail            *int   `json:"fail,omitempty" yaml:"fail,omitempty"`
	UnknownDatabase string `json:"unknown_database,omitempty" yaml:"unknown_database,omitempty"`
}

// NewFleetDocument converts a report into its structured form
func NewFleetDocument(report *metrics.FleetReport) FleetDocument {
	doc := FleetDocument{
		Servers:        make([]ServerDocument, 0, len(report.Servers)),
		TotalTime:      FormatDuration(report.TotalElapsed),
		TotalElapsedMs: report.TotalElapsed.Milliseconds(),
	}

	for _, sr := range report.Servers {
		sd := ServerDocument{
			Server:    sr.Target.String(),
			Time:      FormatDuration(sr.Elapsed),
			ElapsedMs: sr.Elapsed.Milliseconds(),
			Databases: make([]DatabaseDocument, 0, len(sr.Entries)),
		}
		if sr.Failure != nil {
			sd.Error = sr.Failure.Reason.String()
			if sr.Failure.Err != nil {
				sd.Detail = sr.Failure.Err.Error()
			}
		}
		for _, entry := range sr.Entries {
			dd := DatabaseDocument{Key: entry.Key}
			if entry.Result.Kind == parser.UnknownDatabase {
				dd.UnknownDatabase = entry.Result.Database
			} else {
				ok, fail := entry.Result.Outcome.OK, entry.Result.Outcome.Fail
				dd.Database = entry.Result.Database
				dd.OK = &ok
				dd.Fail = &fail
			}
			sd.Databases = append(sd.Databases, dd)
		}
		doc.Servers = append(doc.Servers, sd)
	}

	return doc
}

// writeJSON outputs the report as one indented JSON document
func (f *DefaultFormatter) writeJSON(report *metrics.FleetReport) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(NewFleetDocument(report)); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// writeYAML outputs the report as one YAML document
func (f *DefaultFormatter) writeYAML(report *metrics.FleetReport) error {
	encoder := yaml.NewEncoder(f.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(NewFleetDocument(report)); err != nil {
		return fmt.Errorf("failed to write YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to flush YAML: %w", err)
	}
	return nil
}
