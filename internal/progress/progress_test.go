package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Leonid-98/optimize-table/internal/metrics"
	"github.com/Leonid-98/optimize-table/internal/target"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(t *testing.T, spec string, failure *metrics.Failure) *metrics.ServerReport {
	t.Helper()
	tgt, err := target.ParseServerSpec(spec, target.DefaultPort)
	require.NoError(t, err)
	return &metrics.ServerReport{Target: tgt, Failure: failure, Elapsed: time.Second}
}

func fixedClock() func() time.Time {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now := current
		current = current.Add(2 * time.Second)
		return now
	}
}

func TestProgressTracker_Observe(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(2, &buf, true)
	p.SetClock(fixedClock())

	p.Observe(report(t, "root@db1", nil))
	p.Observe(report(t, "root@db2", &metrics.Failure{Reason: metrics.InvalidHost, Err: errors.New("no such host")}))
	p.Finish()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[##########..........] 1/2 root@db1 ok 1s ETA: 2s", lines[0])
	assert.Equal(t, "[####################] 2/2 root@db2 Invalid host 1s ETA: 0s", lines[1])
	assert.Equal(t, "Surveyed 2/2 servers (1 ok, 1 failed) in 6s", lines[2])

	completed, failed, total, _ := p.GetStats()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, total)
}

func TestProgressTracker_AllSucceeded(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(1, &buf, true)
	p.SetClock(fixedClock())

	p.Observe(report(t, "root@db1", nil))
	p.Finish()

	assert.Contains(t, buf.String(), "Surveyed 1/1 servers successfully")
}

func TestProgressTracker_Disabled(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressTracker(1, &buf, false)

	p.Observe(report(t, "root@db1", nil))
	p.Finish()

	assert.Empty(t, buf.String())
	completed, _, _, _ := p.GetStats()
	assert.Equal(t, 1, completed)
}
