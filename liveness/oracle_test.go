package liveness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guardline-io/guardline/keyvaluedb/memorydb"
)

func TestFlag_InitiallyAlive(t *testing.T) {
	f := NewFlag()
	require.True(t, f.IsAlive())
}

func TestFlag_SetAlive(t *testing.T) {
	f := NewFlag()
	require.NoError(t, f.SetAlive(false))
	require.False(t, f.IsAlive())
	require.NoError(t, f.SetAlive(true))
	require.True(t, f.IsAlive())
}

func TestStore_InitiallyAlive(t *testing.T) {
	s, err := NewStore(memorydb.New())
	require.NoError(t, err)
	require.True(t, s.IsAlive())
}

func TestStore_FlagSurvivesReload(t *testing.T) {
	db := memorydb.New()
	s, err := NewStore(db)
	require.NoError(t, err)
	require.NoError(t, s.SetAlive(false))

	// new Store over the same db sees the operator decision
	s2, err := NewStore(db)
	require.NoError(t, err)
	require.False(t, s2.IsAlive())
}

func TestStore_WriteFailureKeepsCachedValue(t *testing.T) {
	db := memorydb.New()
	s, err := NewStore(db)
	require.NoError(t, err)

	s.db = memorydb.NewWithFailingWrites()
	require.Error(t, s.SetAlive(false))
	require.True(t, s.IsAlive())
}
