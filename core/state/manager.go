package state

import (
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"vstreet/native/lending"
	"vstreet/native/vault"
	"vstreet/storage"
)

// StateVersion identifies the on-disk snapshot layout. Increment it whenever
// the stored structures change incompatibly.
const StateVersion uint64 = 1

var (
	stateVersionKey = []byte("state/version")
	lendingPoolKey  = []byte("lending/pool")
	vaultStateKey   = []byte("vault/state")
	rootKey         = []byte("state/root")

	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// Manager persists engine snapshots as RLP documents in a key-value store. It
// satisfies lending.Store and vault.Store.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager creates a state manager on db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// EnsureVersion records StateVersion on a fresh database and rejects
// databases written by a different layout.
func (m *Manager) EnsureVersion() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored uint64
	ok, err := m.get(stateVersionKey, &stored)
	if err != nil {
		return err
	}
	if !ok {
		return m.put(stateVersionKey, StateVersion)
	}
	if stored != StateVersion {
		return fmt.Errorf("%w: stored %d, supported %d", ErrStateVersionMismatch, stored, StateVersion)
	}
	return nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

// updateRoot stores the keccak digest over both snapshots.
func (m *Manager) updateRoot() error {
	var buf []byte
	for _, key := range [][]byte{lendingPoolKey, vaultStateKey} {
		data, err := m.db.Get(key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		buf = append(buf, ethcrypto.Keccak256(data)...)
	}
	return m.db.Put(rootKey, ethcrypto.Keccak256(buf))
}

// Root returns the digest of the last persisted snapshots.
func (m *Manager) Root() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, err := m.db.Get(rootKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return root, err
}

// PutLendingPool implements lending.Store.
func (m *Manager) PutLendingPool(pool *lending.PoolState) error {
	if pool == nil {
		return errors.New("state: nil lending pool")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.put(lendingPoolKey, encodePool(pool)); err != nil {
		return err
	}
	return m.updateRoot()
}

// LendingPool loads the persisted pool. The boolean is false when nothing
// was stored yet.
func (m *Manager) LendingPool() (*lending.PoolState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored storedPool
	ok, err := m.get(lendingPoolKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	pool, err := decodePool(&stored)
	if err != nil {
		return nil, false, err
	}
	return pool, true, nil
}

// PutVault implements vault.Store.
func (m *Manager) PutVault(st *vault.State) error {
	if st == nil {
		return errors.New("state: nil vault state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.put(vaultStateKey, encodeVault(st)); err != nil {
		return err
	}
	return m.updateRoot()
}

// Vault loads the persisted vault state.
func (m *Manager) Vault() (*vault.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored storedVault
	ok, err := m.get(vaultStateKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	st, err := decodeVault(&stored)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}
