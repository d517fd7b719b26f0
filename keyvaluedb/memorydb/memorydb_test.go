package memorydb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testRow struct {
	_     struct{} `cbor:",toarray"`
	Nonce uint64
}

func TestMemoryDB_ReadMissingKey(t *testing.T) {
	db := New()
	require.True(t, db.Empty())

	var row testRow
	found, err := db.Read([]byte("missing"), &row)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryDB_WriteReadDelete(t *testing.T) {
	db := New()
	require.NoError(t, db.Write([]byte("acc"), &testRow{Nonce: 7}))
	require.False(t, db.Empty())

	var row testRow
	found, err := db.Read([]byte("acc"), &row)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 7, row.Nonce)

	require.NoError(t, db.Delete([]byte("acc")))
	found, err = db.Read([]byte("acc"), &row)
	require.NoError(t, err)
	require.False(t, found)

	// deleting a missing key is not an error
	require.NoError(t, db.Delete([]byte("acc")))
}

func TestMemoryDB_EmptyKeyRejected(t *testing.T) {
	db := New()
	require.Error(t, db.Write(nil, &testRow{}))
	_, err := db.Read(nil, &testRow{})
	require.Error(t, err)
}

func TestMemoryDB_NilValueRejected(t *testing.T) {
	db := New()
	require.Error(t, db.Write([]byte("acc"), nil))
	var row *testRow
	require.Error(t, db.Write([]byte("acc"), row))
}

func TestMemoryDB_FailingWrites(t *testing.T) {
	db := NewWithFailingWrites()
	require.ErrorContains(t, db.Write([]byte("acc"), &testRow{Nonce: 1}), "write failed")
	require.True(t, db.Empty())
}
