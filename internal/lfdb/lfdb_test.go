// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lfdb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"rina.dev/ipcpd/internal/addr"
)

func TestAdd_InsertUnknownKey(t *testing.T) {
	db := New(1)
	mutated := db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 1, State: StateUp})
	require.True(t, mutated)

	lf, ok := db.Get(1, 2)
	require.True(t, ok)
	require.EqualValues(t, 0, lf.Age)
}

// TestScenario_S3StaleAdvertisementIgnored covers spec.md §8 scenario S3.
func TestScenario_S3StaleAdvertisementIgnored(t *testing.T) {
	db := New(0)
	require.True(t, db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 5, State: StateUp}))
	require.False(t, db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 9, Seqnum: 3, State: StateUp}))

	lf, ok := db.Get(1, 2)
	require.True(t, ok)
	require.EqualValues(t, 1, lf.Cost)
	require.EqualValues(t, 5, lf.Seqnum)
}

func TestAdd_IdempotentSameSeqnum(t *testing.T) {
	db := New(0)
	require.True(t, db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 1, State: StateUp}))
	require.False(t, db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 1, State: StateUp}))
}

func TestDel(t *testing.T) {
	db := New(0)
	db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 1, State: StateUp})
	require.True(t, db.Del(1, 2))
	require.False(t, db.Del(1, 2))

	_, ok := db.Get(1, 2)
	require.False(t, ok)
}

func TestHasReverse(t *testing.T) {
	db := New(0)
	db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 3, Seqnum: 1, State: StateUp})
	require.False(t, db.HasReverse(1, 2, 3), "no reverse entry yet")

	db.Add(LowerFlow{Local: 2, Remote: 1, Cost: 3, Seqnum: 1, State: StateUp})
	require.True(t, db.HasReverse(1, 2, 3))
	require.False(t, db.HasReverse(1, 2, 4), "cost mismatch must not count")
}

// TestOwnerEntriesNeverAgeOut covers the invariant that entries whose
// local_addr == myaddr are never aged out locally (spec.md §3, §8).
func TestOwnerEntriesNeverAgeOut(t *testing.T) {
	const myAddr = addr.Addr(1)
	db := New(myAddr)
	db.Add(LowerFlow{Local: myAddr, Remote: 2, Cost: 1, Seqnum: 1, State: StateUp})
	db.Add(LowerFlow{Local: 2, Remote: myAddr, Cost: 1, Seqnum: 1, State: StateUp})

	discarded := db.IncrAge(1000, 10)
	require.Len(t, discarded, 1)
	require.Equal(t, addr.Addr(2), discarded[0].Local)

	_, ok := db.Get(myAddr, 2)
	require.True(t, ok, "owner's own entry must survive aging")
}

func TestIncrAge_ResetOnWrite(t *testing.T) {
	db := New(0)
	db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 1, State: StateUp})
	db.IncrAge(5, 100)
	lf, _ := db.Get(1, 2)
	require.EqualValues(t, 5, lf.Age)

	db.Add(LowerFlow{Local: 1, Remote: 2, Cost: 1, Seqnum: 2, State: StateUp})
	lf, _ = db.Get(1, 2)
	require.EqualValues(t, 0, lf.Age, "age must reset on write")
}
