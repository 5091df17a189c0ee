// Package metrics aggregates per-server results into a fleet report.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/Leonid-98/optimize-table/internal/parser"
	"github.com/Leonid-98/optimize-table/internal/target"
)

// Reason classifies why a server could not be surveyed
type Reason int

const (
	// InvalidUser means the SSH server rejected the credentials
	InvalidUser Reason = iota
	// InvalidHost means the host name could not be resolved
	InvalidHost
	// Transport covers every other connection or session fault
	Transport
)

// String returns the label shown in reports
func (r Reason) String() string {
	switch r {
	case InvalidUser:
		return "Invalid user"
	case InvalidHost:
		return "Invalid host"
	case Transport:
		return "Transport error"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Failure describes a connection-level failure for one server
type Failure struct {
	Reason Reason
	Err    error
}

// Entry is one keyed database result inside a server report
type Entry struct {
	Key    string
	Result parser.Result
}

// ServerReport holds the outcome for one server. A nil Failure means the
// session succeeded and Entries holds its per-database results.
type ServerReport struct {
	Target  target.Target
	Entries []Entry
	Failure *Failure
	Elapsed time.Duration
}

// Succeeded reports whether the server was reached and its output parsed
func (sr *ServerReport) Succeeded() bool {
	return sr.Failure == nil
}

// FleetReport holds every server report in inventory order
type FleetReport struct {
	Servers      []*ServerReport
	TotalElapsed time.Duration
}

// Server returns the report for the "user@host" identity
func (fr *FleetReport) Server(identity string) (*ServerReport, bool) {
	for _, sr := range fr.Servers {
		if sr.Target.String() == identity {
			return sr, true
		}
	}
	return nil, false
}

// UnknownDatabaseKey returns the entry key for an unknown-database result at
// position index of a server's result sequence.
func UnknownDatabaseKey(index int) string {
	return fmt.Sprintf("Unknown db %d", index)
}

// BuildEntries keys results for one server. Unknown databases get a key
// derived from their position so repeats stay distinct. Table reports are
// keyed by database name, and a repeated name replaces the earlier value in
// place.
func BuildEntries(results []parser.Result) []Entry {
	entries := make([]Entry, 0, len(results))
	positions := make(map[string]int, len(results))

	for i, res := range results {
		key := res.Database
		if res.Kind == parser.UnknownDatabase {
			key = UnknownDatabaseKey(i)
		}

		if pos, ok := positions[key]; ok {
			entries[pos].Result = res
			continue
		}
		positions[key] = len(entries)
		entries = append(entries, Entry{Key: key, Result: res})
	}

	return entries
}

// Aggregator collects server reports into a FleetReport. It is safe for
// concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	report    FleetReport
	index     map[string]int
	finalized bool
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{index: make(map[string]int)}
}

// Record stores a successful server result
func (a *Aggregator) Record(t target.Target, results []parser.Result, elapsed time.Duration) (*ServerReport, error) {
	return a.add(&ServerReport{
		Target:  t,
		Entries: BuildEntries(results),
		Elapsed: elapsed,
	})
}

// RecordFailure stores a connection-level failure for a server
func (a *Aggregator) RecordFailure(t target.Target, reason Reason, err error, elapsed time.Duration) (*ServerReport, error) {
	return a.add(&ServerReport{
		Target:  t,
		Entries: []Entry{},
		Failure: &Failure{Reason: reason, Err: err},
		Elapsed: elapsed,
	})
}

func (a *Aggregator) add(sr *ServerReport) (*ServerReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return nil, fmt.Errorf("fleet report already finalized")
	}

	// A server listed twice keeps its first position and its latest report.
	identity := sr.Target.String()
	if pos, ok := a.index[identity]; ok {
		a.report.Servers[pos] = sr
		return sr, nil
	}
	a.index[identity] = len(a.report.Servers)
	a.report.Servers = append(a.report.Servers, sr)

	return sr, nil
}

// Finalize stamps the total elapsed time and returns the finished report.
// Calling Finalize twice is an error.
func (a *Aggregator) Finalize(total time.Duration) (*FleetReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return nil, fmt.Errorf("fleet report already finalized")
	}
	a.finalized = true
	a.report.TotalElapsed = total

	report := a.report
	return &report, nil
}
