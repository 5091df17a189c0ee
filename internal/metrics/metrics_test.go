package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/Leonid-98/optimize-table/internal/parser"
	"github.com/Leonid-98/optimize-table/internal/target"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTarget(t *testing.T, spec string) target.Target {
	t.Helper()
	tg, err := target.ParseServerSpec(spec, target.DefaultPort)
	require.NoError(t, err)
	return tg
}

func TestBuildEntries_UnknownDatabasesStayDistinct(t *testing.T) {
	entries := BuildEntries([]parser.Result{
		parser.NewUnknownDatabase("missing"),
		parser.NewTableReport("shop", 3, 0),
		parser.NewUnknownDatabase("missing"),
	})

	require.Len(t, entries, 3)
	assert.Equal(t, "Unknown db 0", entries[0].Key)
	assert.Equal(t, "shop", entries[1].Key)
	assert.Equal(t, "Unknown db 2", entries[2].Key)
	assert.Equal(t, "missing", entries[0].Result.Database)
	assert.Equal(t, "missing", entries[2].Result.Database)
}

func TestBuildEntries_RepeatedDatabaseOverwritesInPlace(t *testing.T) {
	entries := BuildEntries([]parser.Result{
		parser.NewTableReport("shop", 1, 0),
		parser.NewTableReport("blog", 2, 0),
		parser.NewTableReport("shop", 0, 4),
	})

	require.Len(t, entries, 2)
	assert.Equal(t, "shop", entries[0].Key)
	assert.Equal(t, parser.Outcome{OK: 0, Fail: 4}, entries[0].Result.Outcome)
	assert.Equal(t, "blog", entries[1].Key)
}

func TestAggregator_TwoUnknownDatabasesSameServer(t *testing.T) {
	agg := NewAggregator()
	srv := mustTarget(t, "root@db1.example.com")

	_, err := agg.Record(srv, []parser.Result{
		parser.NewUnknownDatabase("a"),
		parser.NewUnknownDatabase("b"),
	}, time.Second)
	require.NoError(t, err)

	report, err := agg.Finalize(2 * time.Second)
	require.NoError(t, err)

	sr, ok := report.Server("root@db1.example.com")
	require.True(t, ok)
	require.Len(t, sr.Entries, 2)

	assert.Equal(t, "Unknown db 0", sr.Entries[0].Key)
	assert.Equal(t, "a", sr.Entries[0].Result.Database)
	assert.Equal(t, "Unknown db 1", sr.Entries[1].Key)
	assert.Equal(t, "b", sr.Entries[1].Result.Database)
}

func TestAggregator_SuccessAndFailureInInventoryOrder(t *testing.T) {
	agg := NewAggregator()
	good := mustTarget(t, "root@db1.example.com")
	bad := mustTarget(t, "root@badhost")

	_, err := agg.Record(good, []parser.Result{parser.NewTableReport("shop", 2, 0)}, 1200*time.Millisecond)
	require.NoError(t, err)
	dnsErr := errors.New("lookup badhost: no such host")
	_, err = agg.RecordFailure(bad, InvalidHost, dnsErr, 10*time.Millisecond)
	require.NoError(t, err)

	report, err := agg.Finalize(1210 * time.Millisecond)
	require.NoError(t, err)

	require.Len(t, report.Servers, 2)
	assert.Equal(t, "root@db1.example.com", report.Servers[0].Target.String())
	assert.True(t, report.Servers[0].Succeeded())
	assert.Equal(t, 1200*time.Millisecond, report.Servers[0].Elapsed)

	assert.Equal(t, "root@badhost", report.Servers[1].Target.String())
	assert.False(t, report.Servers[1].Succeeded())
	assert.Equal(t, InvalidHost, report.Servers[1].Failure.Reason)
	assert.ErrorIs(t, report.Servers[1].Failure.Err, dnsErr)
	assert.Empty(t, report.Servers[1].Entries)

	assert.Equal(t, 1210*time.Millisecond, report.TotalElapsed)
}

func TestAggregator_DuplicateServerKeepsPosition(t *testing.T) {
	agg := NewAggregator()
	a := mustTarget(t, "root@a")
	b := mustTarget(t, "root@b")

	_, err := agg.Record(a, []parser.Result{parser.NewTableReport("shop", 1, 0)}, time.Second)
	require.NoError(t, err)
	_, err = agg.Record(b, nil, time.Second)
	require.NoError(t, err)
	_, err = agg.RecordFailure(a, InvalidUser, errors.New("denied"), time.Second)
	require.NoError(t, err)

	report, err := agg.Finalize(3 * time.Second)
	require.NoError(t, err)
	require.Len(t, report.Servers, 2)
	assert.Equal(t, "root@a", report.Servers[0].Target.String())
	assert.Equal(t, InvalidUser, report.Servers[0].Failure.Reason)
}

func TestAggregator_RejectsWritesAfterFinalize(t *testing.T) {
	agg := NewAggregator()
	_, err := agg.Finalize(time.Second)
	require.NoError(t, err)

	_, err = agg.Record(mustTarget(t, "root@a"), nil, time.Second)
	assert.Error(t, err)
	_, err = agg.Finalize(time.Second)
	assert.Error(t, err)
}

func TestServerLookupMissing(t *testing.T) {
	report := &FleetReport{}
	_, ok := report.Server("root@nowhere")
	assert.False(t, ok)

}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "Invalid user", InvalidUser.String())
	assert.Equal(t, "Invalid host", InvalidHost.String())
	assert.Equal(t, "Transport error", Transport.String())
	assert.Equal(t, "reason(9)", Reason(9).String())
}
