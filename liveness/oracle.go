/*
Package liveness implements the oracle reporting whether the trusted
off-chain signer's infrastructure is currently reachable. The flag is shared
by every protected account and every executor reading it.

The reference behavior puts no access control on SetAlive — any caller may
flip the flag. A production deployment almost certainly wants this restricted
to a designated operator; that policy is deliberately left to the integrator.
*/
package liveness

import (
	"fmt"
	"sync/atomic"

	"github.com/guardline-io/guardline/keyvaluedb"
)

type Oracle interface {
	// IsAlive reports whether the trusted signer is reachable. Pure read.
	IsAlive() bool
	// SetAlive records the operator's availability decision.
	SetAlive(alive bool) error
}

// Flag is the in-memory Oracle. The zero value reports not alive, use
// NewFlag to get one in the initial alive state.
type Flag struct {
	alive atomic.Bool
}

func NewFlag() *Flag {
	f := &Flag{}
	f.alive.Store(true)
	return f
}

func (f *Flag) IsAlive() bool {
	return f.alive.Load()
}

func (f *Flag) SetAlive(alive bool) error {
	f.alive.Store(alive)
	return nil
}

var flagKey = []byte("signer_alive")

// Store is an Oracle persisting the flag so that an operator decision
// survives a process restart. Reads are served from memory, writes go
// through to the db before the cached value is updated.
type Store struct {
	db    keyvaluedb.KeyValueDB
	alive atomic.Bool
}

func NewStore(db keyvaluedb.KeyValueDB) (*Store, error) {
	s := &Store{db: db}
	alive := true
	found, err := db.Read(flagKey, &alive)
	if err != nil {
		return nil, fmt.Errorf("reading liveness flag: %w", err)
	}
	if !found {
		if err := db.Write(flagKey, alive); err != nil {
			return nil, fmt.Errorf("storing initial liveness flag: %w", err)
		}
	}
	s.alive.Store(alive)
	return s, nil
}

func (s *Store) IsAlive() bool {
	return s.alive.Load()
}

func (s *Store) SetAlive(alive bool) error {
	if err := s.db.Write(flagKey, alive); err != nil {
		return fmt.Errorf("storing liveness flag: %w", err)
	}
	s.alive.Store(alive)
	return nil
}
