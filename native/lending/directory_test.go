package lending

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vstreet/crypto"
)

func TestDirectoryOrderAndClone(t *testing.T) {
	dir := NewDirectory()
	for _, b := range []byte{0x30, 0x10, 0x20} {
		dir.GetOrCreate(makeAddress(b), 5)
	}
	again := dir.GetOrCreate(makeAddress(0x10), 9)
	require.Equal(t, uint64(5), again.SupplyCheckpoint, "existing row must be returned")
	require.Equal(t, 3, dir.Len())

	var order []byte
	dir.Range(func(addr crypto.Address, _ *UserAccount) bool {
		order = append(order, addr.Raw()[0])
		return true
	})
	require.Equal(t, []byte{0x10, 0x20, 0x30}, order)

	clone := dir.Clone()
	row, _ := clone.Get(makeAddress(0x20))
	row.Balance.SetUint64(77)
	orig, _ := dir.Get(makeAddress(0x20))
	require.True(t, orig.Balance.IsZero(), "clone must not share rows")
}
