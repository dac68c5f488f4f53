package sqlquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colxfer/internal/xerrors"
)

func TestValidateSelectAccepts(t *testing.T) {
	_, err := ValidateSelect("SELECT id, name FROM users WHERE id > 10")
	assert.NoError(t, err)
}

func TestValidateSelectRejectsNonSelect(t *testing.T) {
	_, err := ValidateSelect("DELETE FROM users")
	assert.ErrorIs(t, err, xerrors.ErrSQLQueryNotSupported)
}

func TestValidateSelectRejectsMultipleStatements(t *testing.T) {
	_, err := ValidateSelect("SELECT 1; SELECT 2")
	assert.ErrorIs(t, err, xerrors.ErrSQLQueryNotSupported)
}

func TestValidatePartitionableAcceptsJoin(t *testing.T) {
	_, err := ValidatePartitionable("SELECT a.id, b.name FROM a JOIN b ON a.id = b.a_id")
	assert.NoError(t, err)
}

func TestValidatePartitionableRejectsSubquery(t *testing.T) {
	_, err := ValidatePartitionable("SELECT * FROM (SELECT id FROM users) AS sub")
	assert.ErrorIs(t, err, xerrors.ErrSQLQueryPartitionNotSupported)
}

func TestExplicitLimit(t *testing.T) {
	n, ok := ExplicitLimit("SELECT * FROM users LIMIT 7")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = ExplicitLimit("SELECT * FROM users")
	assert.False(t, ok)
}

func TestCountAndLimit1Query(t *testing.T) {
	assert.Contains(t, CountQuery("SELECT * FROM users"), "COUNT(*)")
	assert.Contains(t, Limit1Query("SELECT * FROM users"), "LIMIT 1")
}
