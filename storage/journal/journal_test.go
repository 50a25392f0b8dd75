package journal

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vstreet/core/events"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalAppendAndList(t *testing.T) {
	j := openJournal(t)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	j.SetClock(func() time.Time { return fixed })

	j.Emit(events.LendingDeposited{Amount: big.NewInt(10)})
	j.Emit(events.LendingWithdrawn{Amount: big.NewInt(4)})
	rec, err := j.Append(events.LendingPriceUpdated{Price: 7})
	require.NoError(t, err)
	require.Equal(t, uint64(3), rec.Sequence)
	require.NotEmpty(t, rec.ID)

	all, err := j.List(0, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, events.TypeLendingDeposited, all[0].Type)
	require.Equal(t, "10", all[0].Attributes["amount"])
	require.True(t, fixed.Equal(all[0].RecordedAt))

	page, err := j.List(1, 1, "")
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, events.TypeLendingWithdrawn, page[0].Type)
}

func TestJournalReopenKeepsSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	_, err = j.Append(events.LendingPriceUpdated{Price: 1})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer j.Close()
	rec, err := j.Append(events.LendingPriceUpdated{Price: 2})
	require.NoError(t, err)
	require.Equal(t, uint64(2), rec.Sequence)
}

func TestJournalListFiltersByModule(t *testing.T) {
	j := openJournal(t)
	j.Emit(events.LendingDeposited{Amount: big.NewInt(10)})
	j.Emit(events.VaultStaked{Amount: big.NewInt(3), Power: big.NewInt(3)})
	j.Emit(events.AdminChanged{Module: "vault", Added: true})
	j.Emit(events.ModulePauseChanged{Module: "lending", Paused: true})

	vaultOnly, err := j.List(0, 0, "vault")
	require.NoError(t, err)
	require.Len(t, vaultOnly, 2)
	require.Equal(t, events.TypeVaultStaked, vaultOnly[0].Type)
	require.Equal(t, events.TypeAdminAdded, vaultOnly[1].Type)

	lendingPage, err := j.List(0, 1, "lending")
	require.NoError(t, err)
	require.Len(t, lendingPage, 1)
	require.Equal(t, events.TypeLendingDeposited, lendingPage[0].Type)

	rest, err := j.List(lendingPage[0].Sequence, 0, "lending")
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, events.TypeModulePaused, rest[0].Type)
	require.Equal(t, "lending", rest[0].Module)
}
