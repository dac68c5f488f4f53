package dataorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colxfer/internal/xerrors"
)

func TestNegotiatePrefersSourceOrder(t *testing.T) {
	order, err := Negotiate([]Order{ColumnMajor, RowMajor}, []Order{RowMajor, ColumnMajor})
	require.NoError(t, err)
	assert.Equal(t, ColumnMajor, order, "first source-preferred order supported by destination wins")
}

func TestNegotiateNoCommonOrder(t *testing.T) {
	_, err := Negotiate([]Order{RowMajor}, []Order{ColumnMajor})
	assert.ErrorIs(t, err, xerrors.ErrCannotResolveDataOrder)
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports([]Order{RowMajor, ColumnMajor}, ColumnMajor))
	assert.False(t, Supports([]Order{RowMajor}, ColumnMajor))
}

func TestOrderString(t *testing.T) {
	assert.Equal(t, "RowMajor", RowMajor.String())
	assert.Equal(t, "ColumnMajor", ColumnMajor.String())
}
