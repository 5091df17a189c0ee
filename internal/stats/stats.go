// Package stats summarizes a finished fleet report.
package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/Leonid-98/optimize-table/internal/metrics"
	"github.com/Leonid-98/optimize-table/internal/parser"
)

// Statistics holds fleet-wide totals
type Statistics struct {
	TotalHosts       int
	SucceededHosts   int
	FailedHosts      int
	FailuresByReason map[metrics.Reason]int
	Databases        int
	UnknownDatabases int
	TablesOK         int
	TablesFailed     int
	TotalElapsed     time.Duration
	SlowestHost      string
	SlowestElapsed   time.Duration
}

// Summarize computes totals over every server in report
func Summarize(report *metrics.FleetReport) Statistics {
	s := Statistics{
		TotalHosts:       len(report.Servers),
		FailuresByReason: make(map[metrics.Reason]int),
		TotalElapsed:     report.TotalElapsed,
	}

	for _, sr := range report.Servers {
		if sr.Failure != nil {
			s.FailedHosts++
			s.FailuresByReason[sr.Failure.Reason]++
		} else {
			s.SucceededHosts++
		}

		if sr.Elapsed > s.SlowestElapsed {
			s.SlowestElapsed = sr.Elapsed
			s.SlowestHost = sr.Target.String()
		}

		for _, entry := range sr.Entries {
			if entry.Result.Kind == parser.UnknownDatabase {
				s.UnknownDatabases++
				continue
			}
			s.Databases++
			s.TablesOK += entry.Result.Outcome.OK
			s.TablesFailed += entry.Result.Outcome.Fail
		}
	}

	return s
}

// Write prints the summary block
func (s Statistics) Write(w io.Writer) {
	fmt.Fprintf(w, "Final Statistics:\n")
	fmt.Fprintf(w, "   Total Hosts: %d\n", s.TotalHosts)
	fmt.Fprintf(w, "   Successful: %d (%.1f%%)\n", s.SucceededHosts, percent(s.SucceededHosts, s.TotalHosts))
	fmt.Fprintf(w, "   Failed: %d (%.1f%%)\n", s.FailedHosts, percent(s.FailedHosts, s.TotalHosts))
	for _, reason := range []metrics.Reason{metrics.InvalidUser, metrics.InvalidHost, metrics.Transport} {
		if n := s.FailuresByReason[reason]; n > 0 {
			fmt.Fprintf(w, "     %s: %d\n", reason, n)
		}
	}
	fmt.Fprintf(w, "   Databases: %d (%d unknown)\n", s.Databases, s.UnknownDatabases)
	fmt.Fprintf(w, "   Tables OK: %d\n", s.TablesOK)
	fmt.Fprintf(w, "   Tables FAIL: %d\n", s.TablesFailed)
	if s.SlowestHost != "" {
		fmt.Fprintf(w, "   Slowest Host: %s (%v)\n", s.SlowestHost, s.SlowestElapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "   Execution Time: %v\n", s.TotalElapsed.Round(time.Second))
	if s.TotalElapsed.Seconds() > 0 {
		fmt.Fprintf(w, "   Average Rate: %.2f hosts/second\n", float64(s.TotalHosts)/s.TotalElapsed.Seconds())
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
