package sqlsource

import (
	"context"
	"database/sql"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"colxfer/internal/dataorder"
	"colxfer/internal/destination/arrowdest"
	"colxfer/internal/transport"
	"colxfer/internal/typesystem"
)

type testMySQLContainer struct {
	container *mysql.MySQLContainer
	dsn       string
	db        *sql.DB
}

func TestSourceAgainstRealMySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupMySQL(t)
	ctx := context.Background()

	_, err := tc.db.ExecContext(ctx, `CREATE TABLE widgets (
		id INT NOT NULL PRIMARY KEY,
		label VARCHAR(64),
		weight DOUBLE
	)`)
	require.NoError(t, err)

	_, err = tc.db.ExecContext(ctx,
		`INSERT INTO widgets (id, label, weight) VALUES (1, 'a', 1.5), (2, NULL, 2.5), (3, 'c', NULL)`)
	require.NoError(t, err)

	t.Run("fetch metadata and partition a full table scan", func(t *testing.T) {
		src := New("mysql", tc.dsn, 0)
		require.NoError(t, src.Connect(ctx))
		defer src.Close()

		require.NoError(t, src.SetDataOrder(dataorder.RowMajor))
		src.SetQueries([]string{"SELECT id, label, weight FROM widgets ORDER BY id"})
		require.NoError(t, src.FetchMetadata(ctx))

		assert.Equal(t, []string{"id", "label", "weight"}, src.Names())
		assert.Equal(t, typesystem.Int64, src.Schema()[0].Type.Kind)
		assert.False(t, src.Schema()[0].Type.Nullable)
		assert.Equal(t, typesystem.Utf8, src.Schema()[1].Type.Kind)
		assert.True(t, src.Schema()[1].Type.Nullable)

		parts, err := src.Partition(ctx)
		require.NoError(t, err)
		require.Len(t, parts, 1)
		part := parts[0]
		defer part.Close()

		require.NoError(t, part.Prepare(ctx))
		assert.Equal(t, 3, part.Nrows())

		parser, err := part.Parser(ctx)
		require.NoError(t, err)
		defer parser.Close()

		table := arrowdest.Rules()
		dst := arrowdest.New(nil)
		plan, err := transport.Build(src.Schema(), src.DataOrders(), dst.DataOrders(), table)
		require.NoError(t, err)

		require.NoError(t, dst.Allocate([]int{part.Nrows()}, src.Names(), plan.DestSchema, dataorder.RowMajor))
		consumer, err := dst.Partition(0)
		require.NoError(t, err)

		var ids []int64
		var labels []any
		for r := 0; r < part.Nrows(); r++ {
			id, err := parser.Produce(ctx)
			require.NoError(t, err)
			ids = append(ids, id.(int64))
			converted, err := plan.Columns[0].Convert(id)
			require.NoError(t, err)
			require.NoError(t, consumer.Consume(converted))

			label, err := parser.Produce(ctx)
			require.NoError(t, err)
			labels = append(labels, label)
			converted, err = plan.Columns[1].Convert(label)
			require.NoError(t, err)
			// Consume runs the boxed value through Type.Check: a driver
			// that scanned VARCHAR as []byte instead of string would fail
			// here with ErrTypeCheckFailed before this assertion ever ran.
			require.NoError(t, consumer.Consume(converted), "label cell must narrow to string before reaching the destination")

			weight, err := parser.Produce(ctx)
			require.NoError(t, err)
			converted, err = plan.Columns[2].Convert(weight)
			require.NoError(t, err)
			require.NoError(t, consumer.Consume(converted))
		}
		assert.Equal(t, []int64{1, 2, 3}, ids)
		if labels[0] != nil {
			assert.IsType(t, "", labels[0], "a VARCHAR cell must narrow to string, not []byte")
		}

		_, handles, err := dst.Finish()
		require.NoError(t, err)
		nameCol := handles[1].(arrowdest.Column).Array().(*array.String)
		assert.Equal(t, "a", nameCol.Value(0))
		assert.True(t, nameCol.IsNull(1))
		assert.Equal(t, "c", nameCol.Value(2))
	})

	t.Run("explicit LIMIT is authoritative over COUNT", func(t *testing.T) {
		src := New("mysql", tc.dsn, 0)
		require.NoError(t, src.Connect(ctx))
		defer src.Close()

		src.SetQueries([]string{"SELECT id FROM widgets LIMIT 2"})
		require.NoError(t, src.FetchMetadata(ctx))

		parts, err := src.Partition(ctx)
		require.NoError(t, err)
		require.NoError(t, parts[0].Prepare(ctx))
		assert.Equal(t, 2, parts[0].Nrows())
		require.NoError(t, parts[0].Close())
	})
}

func setupMySQL(t *testing.T) *testMySQLContainer {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "failed to open direct DB connection")
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close DB connection: %v", err)
		}
	})

	return &testMySQLContainer{
		container: mysqlContainer,
		dsn:       dsn,
		db:        db,
	}
}
