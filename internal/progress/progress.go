// Package progress reports per-server progress of a fleet run on stderr.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Leonid-98/optimize-table/internal/metrics"
)

const barWidth = 20

// ProgressTracker counts finished servers and prints one line per server
type ProgressTracker struct {
	total     int
	completed int
	failed    int
	startTime time.Time
	mu        sync.RWMutex
	writer    io.Writer
	enabled   bool
	now       func() time.Time
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int, writer io.Writer, enabled bool) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
		writer:    writer,
		enabled:   enabled,
		now:       time.Now,
	}
}

// SetClock replaces the clock used for elapsed and ETA figures
func (p *ProgressTracker) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
	p.startTime = now()
}

// Observe records a finished server. It matches the executor observer signature.
func (p *ProgressTracker) Observe(sr *metrics.ServerReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sr.Succeeded() {
		p.completed++
	} else {
		p.failed++
	}

	if p.enabled {
		p.draw(sr)
	}
}

// Finish prints the closing summary line
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.enabled {
		p.drawFinal()
	}
}

// draw prints a line such as:
//
//	[#####...............] 1/4 root@db1 ok 1.2s ETA: 4s
func (p *ProgressTracker) draw(sr *metrics.ServerReport) {
	done := p.completed + p.failed
	if p.total == 0 {
		return
	}

	elapsed := p.now().Sub(p.startTime)
	remaining := p.total - done
	eta := "ETA: 0s"
	if remaining > 0 {
		avg := elapsed / time.Duration(done)
		eta = fmt.Sprintf("ETA: %v", (avg * time.Duration(remaining)).Round(time.Second))
	}

	status := "ok"
	if sr.Failure != nil {
		status = sr.Failure.Reason.String()
	}

	fmt.Fprintf(p.writer, "[%s] %d/%d %s %s %v %s\n",
		bar(done, p.total), done, p.total, sr.Target, status,
		sr.Elapsed.Round(100*time.Millisecond), eta)
}

func bar(done, total int) string {
	filled := barWidth * done / total
	b := make([]byte, barWidth)
	for i := range b {
		if i < filled {
			b[i] = '#'
		} else {
			b[i] = '.'
		}
	}
	return string(b)
}

// drawFinal renders the final progress summary
func (p *ProgressTracker) drawFinal() {
	elapsed := p.now().Sub(p.startTime).Round(time.Second)
	if p.failed == 0 {
		fmt.Fprintf(p.writer, "Surveyed %d/%d servers successfully in %v\n",
			p.completed, p.total, elapsed)
		return
	}
	fmt.Fprintf(p.writer, "Surveyed %d/%d servers (%d ok, %d failed) in %v\n",
		p.completed+p.failed, p.total, p.completed, p.failed, elapsed)
}

// GetStats returns current progress counters
func (p *ProgressTracker) GetStats() (completed, failed, total int, elapsed time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.completed, p.failed, p.total, p.now().Sub(p.startTime)
}
