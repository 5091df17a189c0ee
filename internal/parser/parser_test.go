package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Empty(t *testing.T) {
	results := Parse(nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	assert.Empty(t, Parse([]string{"==========\n", "==========\n"}))
}

func TestParse_SingleRun(t *testing.T) {
	results := Parse([]string{"db1.table1\n", "status   : OK\n", "status   : FAIL\n"})

	require.Len(t, results, 1)
	assert.Equal(t, NewTableReport("db1", 1, 1), results[0])
}

func TestParse_UnknownDatabase(t *testing.T) {
	results := Parse([]string{
		"mysqlcheck: Got error: 1049: Unknown database 'missingdb' when selecting the database\n",
	})

	require.Len(t, results, 1)
	assert.Equal(t, UnknownDatabase, results[0].Kind)
	assert.Equal(t, "missingdb", results[0].Database)
	assert.Equal(t, Outcome{}, results[0].Outcome)
}

func TestParse_UnknownDatabaseWithoutQuotes(t *testing.T) {
	results := Parse([]string{"mysqlcheck: Got error: 1049: Unknown database missingdb"})

	require.Len(t, results, 1)
	assert.Equal(t, NewUnknownDatabase("missingdb"), results[0])
}

func TestParse_RunsInOrderSkippingEmpty(t *testing.T) {
	lines := []string{
		"==========\n",
		"shop.orders\n",
		"note     : Table does not support optimize, doing recreate + analyze instead\n",
		"status   : OK\n",
		"shop.customers\n",
		"status   : OK\n",
		"==========\n",
		"==========\n",
		"mysqlcheck: Got error: 1049: Unknown database 'nope' when selecting the database\n",
		"==========\n",
		"blog.posts\n",
		"status   : Operation failed\n",
		"==========\n",
	}

	results := Parse(lines)

	assert.Equal(t, []Result{
		NewTableReport("shop", 2, 0),
		NewUnknownDatabase("nope"),
		NewTableReport("blog", 0, 1),
	}, results)
}

func TestParse_StatusLineVariants(t *testing.T) {
	results := Parse([]string{
		"db.t1",
		"status : OK",
		"status\t:\tOK\r",
		"status",
		"Error    : Table 'db.t2' doesn't exist",
		"status   : Operation failed",
	})

	require.Len(t, results, 1)
	assert.Equal(t, Outcome{OK: 2, Fail: 2}, results[0].Outcome)
}

func TestParse_MultipleTablesFoldIntoOneOutcome(t *testing.T) {
	results := Parse([]string{
		"shop.a", "status : OK",
		"shop.b", "status : OK",
		"shop.c", "status : FAIL",
	})

	assert.Equal(t, []Result{NewTableReport("shop", 2, 1)}, results)
}

func TestParse_FirstLineWithoutDot(t *testing.T) {
	results := Parse([]string{"shop", "status : OK"})
	assert.Equal(t, []Result{NewTableReport("shop", 1, 0)}, results)
}

func TestSplitRuns(t *testing.T) {
	runs := SplitRuns([]string{"==========", "a", "b", "==========\r\n", "==========", "c\n"})

	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, runs)
	assert.Empty(t, SplitRuns(nil))
}

func TestReadLinesThenParse(t *testing.T) {
	out := "==========\nshop.orders\nstatus   : OK\nshop.items\nstatus   : OK\n==========\n"

	lines, err := ReadLines(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, []Result{NewTableReport("shop", 2, 0)}, Parse(lines))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "table_report", TableReport.String())
	assert.Equal(t, "unknown_database", UnknownDatabase.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}
