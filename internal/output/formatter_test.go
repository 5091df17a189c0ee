package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Leonid-98/optimize-table/internal/metrics"
	"github.com/Leonid-98/optimize-table/internal/parser"
	"github.com/Leonid-98/optimize-table/internal/target"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(t *testing.T) *metrics.FleetReport {
	t.Helper()
	agg := metrics.NewAggregator()

	good, err := target.ParseServerSpec("root@db1.example.com", target.DefaultPort)
	require.NoError(t, err)
	bad, err := target.ParseServerSpec("root@badhost", target.DefaultPort)
	require.NoError(t, err)

	_, err = agg.Record(good, []parser.Result{
		parser.NewTableReport("shop", 2, 0),
		parser.NewUnknownDatabase("missingdb"),
	}, 1200*time.Millisecond)
	require.NoError(t, err)
	_, err = agg.RecordFailure(bad, metrics.InvalidHost, errors.New("lookup badhost: no such host"), 10*time.Millisecond)
	require.NoError(t, err)

	report, err := agg.Finalize(1210 * time.Millisecond)
	require.NoError(t, err)
	return report
}

func TestFormatter_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(TextMode, &buf).Write(sampleReport(t)))

	want := `root@db1.example.com:
  shop: {OK: 2, FAIL: 0}
  Unknown db 1: missingdb
  time: 0:00:01.200000
root@badhost:
  error: Invalid host
  time: 0:00:00.010000
Total time: 0:00:01.210000
`
	assert.Equal(t, want, buf.String())
}

func TestFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(JSONMode, &buf).Write(sampleReport(t)))

	var doc FleetDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	require.Len(t, doc.Servers, 2)
	assert.Equal(t, "root@db1.example.com", doc.Servers[0].Server)
	require.Len(t, doc.Servers[0].Databases, 2)
	assert.Equal(t, "shop", doc.Servers[0].Databases[0].Key)
	require.NotNil(t, doc.Servers[0].Databases[0].OK)
	assert.Equal(t, 2, *doc.Servers[0].Databases[0].OK)
	assert.Equal(t, 0, *doc.Servers[0].Databases[0].Fail)
	assert.Equal(t, "missingdb", doc.Servers[0].Databases[1].UnknownDatabase)

	assert.Equal(t, "Invalid host", doc.Servers[1].Error)
	assert.Contains(t, doc.Servers[1].Detail, "no such host")
	assert.Empty(t, doc.Servers[1].Databases)

	assert.Equal(t, "0:00:01.210000", doc.TotalTime)
	assert.EqualValues(t, 1210, doc.TotalElapsedMs)
}

func TestFormatter_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(YAMLMode, &buf).Write(sampleReport(t)))

	var doc FleetDocument
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Servers, 2)
	assert.Equal(t, "root@badhost", doc.Servers[1].Server)
	assert.Equal(t, "0:00:00.010000", doc.Servers[1].Time)
}

func TestFormatter_UnknownMode(t *testing.T) {
	err := NewFormatter(OutputMode("xml"), &bytes.Buffer{}).Write(&metrics.FleetReport{})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"text", "json", "yaml"} {
		mode, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, OutputMode(name), mode)
	}
	_, err := ParseMode("pretty")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00"},
		{-time.Second, "0:00:00"},
		{5 * time.Second, "0:00:05"},
		{1500 * time.Millisecond, "0:00:01.500000"},
		{time.Hour + 2*time.Minute + 3*time.Second + 4*time.Microsecond, "1:02:03.000004"},
		{1234567 * time.Nanosecond, "0:00:00.001235"},
		{25 * time.Hour, "1 day, 1:00:00"},
		{50*time.Hour + time.Second, "2 days, 2:00:01"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestWriteTotal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTotal(&buf, 90*time.Second))
	assert.Equal(t, "Total time: 0:01:30\n", buf.String())
}
