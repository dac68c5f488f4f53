package sqlsource

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colxfer/internal/sqlquery"
	"colxfer/internal/typesystem"
	"colxfer/internal/xerrors"
)

func TestFetchMetadataProbeSucceeds(t *testing.T) {
	query := "SELECT id, name FROM users"
	dsn := registerFakeDB("dsn-probe", map[string]fakeResult{
		sqlquery.Limit1Query(query): {
			cols: []fakeColumn{
				{name: "id", dbType: "BIGINT", nullable: false},
				{name: "name", dbType: "VARCHAR", nullable: true},
			},
			rows: [][]driver.Value{{int64(1), "alice"}},
		},
	})

	src := New("colxfer_fake", dsn, 0)
	require.NoError(t, src.Connect(context.Background()))
	defer src.Close()

	src.SetQueries([]string{query})
	require.NoError(t, src.FetchMetadata(context.Background()))

	assert.Equal(t, []string{"id", "name"}, src.Names())
	assert.Equal(t, typesystem.Int64, src.Schema()[0].Type.Kind)
	assert.False(t, src.Schema()[0].Type.Nullable)
	assert.Equal(t, typesystem.Utf8, src.Schema()[1].Type.Kind)
	assert.True(t, src.Schema()[1].Type.Nullable)
}

func TestFetchMetadataRejectsNonSelectQuery(t *testing.T) {
	dsn := registerFakeDB("dsn-non-select", map[string]fakeResult{})

	src := New("colxfer_fake", dsn, 0)
	require.NoError(t, src.Connect(context.Background()))
	defer src.Close()

	src.SetQueries([]string{"DELETE FROM users"})
	err := src.FetchMetadata(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrSQLQueryNotSupported,
		"a non-SELECT partition query must be rejected before any probe reaches the driver")
}

func TestFetchMetadataZeroRowFallback(t *testing.T) {
	query := "SELECT id, name FROM users WHERE 1=0"
	dsn := registerFakeDB("dsn-fallback", map[string]fakeResult{
		sqlquery.Limit1Query(query): {
			cols: []fakeColumn{{name: "id", dbType: "BIGINT"}, {name: "name", dbType: "VARCHAR"}},
			rows: nil,
		},
	})

	src := New("colxfer_fake", dsn, 0)
	require.NoError(t, src.Connect(context.Background()))
	defer src.Close()

	src.SetQueries([]string{query})
	require.NoError(t, src.FetchMetadata(context.Background()))

	for _, col := range src.Schema() {
		assert.Equal(t, typesystem.Utf8, col.Type.Kind, "S4: zero-row fallback declares every column Utf8")
		assert.True(t, col.Type.Nullable, "S4: zero-row fallback declares every column nullable")
	}
}

func TestPreparePreferExplicitLimit(t *testing.T) {
	query := "SELECT id FROM users LIMIT 7"
	dsn := registerFakeDB("dsn-limit", map[string]fakeResult{
		sqlquery.Limit1Query(query): {
			cols: []fakeColumn{{name: "id", dbType: "BIGINT"}},
			rows: [][]driver.Value{{int64(1)}},
		},
	})

	src := New("colxfer_fake", dsn, 0)
	require.NoError(t, src.Connect(context.Background()))
	defer src.Close()
	src.SetQueries([]string{query})
	require.NoError(t, src.FetchMetadata(context.Background()))

	parts, err := src.Partition(context.Background())
	require.NoError(t, err)
	require.Len(t, parts, 1)

	require.NoError(t, parts[0].Prepare(context.Background()))
	assert.Equal(t, 7, parts[0].Nrows(), "S2: explicit LIMIT is authoritative, COUNT(*) is never issued")
}

func TestPrepareFallsBackToCount(t *testing.T) {
	query := "SELECT id FROM users"
	dsn := registerFakeDB("dsn-count", map[string]fakeResult{
		sqlquery.Limit1Query(query): {
			cols: []fakeColumn{{name: "id", dbType: "BIGINT"}},
			rows: [][]driver.Value{{int64(1)}},
		},
		sqlquery.CountQuery(query): {
			cols: []fakeColumn{{name: "count", dbType: "BIGINT"}},
			rows: [][]driver.Value{{int64(12)}},
		},
	})

	src := New("colxfer_fake", dsn, 0)
	require.NoError(t, src.Connect(context.Background()))
	defer src.Close()
	src.SetQueries([]string{query})
	require.NoError(t, src.FetchMetadata(context.Background()))

	parts, err := src.Partition(context.Background())
	require.NoError(t, err)

	require.NoError(t, parts[0].Prepare(context.Background()))
	assert.Equal(t, 12, parts[0].Nrows())
}

func TestPartitionParserProducesRowMajorAndRefillsAcrossBufSizeBoundary(t *testing.T) {
	query := "SELECT id, name FROM users"
	dsn := registerFakeDB("dsn-stream", map[string]fakeResult{
		sqlquery.Limit1Query(query): {
			cols: []fakeColumn{{name: "id", dbType: "BIGINT"}, {name: "name", dbType: "VARCHAR"}},
			rows: [][]driver.Value{{int64(1), "a"}},
		},
		query: {
			cols: []fakeColumn{{name: "id", dbType: "BIGINT"}, {name: "name", dbType: "VARCHAR"}},
			rows: [][]driver.Value{
				{int64(1), "a"}, {int64(2), "b"}, {int64(3), "c"},
				{int64(4), "d"}, {int64(5), "e"},
			},
		},
	})

	// bufSize smaller than the row count forces at least two refills.
	src := New("colxfer_fake", dsn, 2)
	require.NoError(t, src.Connect(context.Background()))
	defer src.Close()
	src.SetQueries([]string{query})
	require.NoError(t, src.FetchMetadata(context.Background()))

	parts, err := src.Partition(context.Background())
	require.NoError(t, err)
	part := parts[0]

	parser, err := part.Parser(context.Background())
	require.NoError(t, err)
	defer parser.Close()

	var got [][2]any
	for r := 0; r < 5; r++ {
		id, err := parser.Produce(context.Background())
		require.NoError(t, err)
		name, err := parser.Produce(context.Background())
		require.NoError(t, err)
		got = append(got, [2]any{id, name})
	}

	assert.Equal(t, int64(1), got[0][0])
	assert.Equal(t, "a", got[0][1])
	assert.Equal(t, int64(5), got[4][0])
	assert.Equal(t, "e", got[4][1])

	_, err = parser.Produce(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrUnexpectedEOF,
		"requesting a cell past the precomputed row count is malformed input, not silent stop")
}
