package state

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type slotKey struct {
	contract common.Address
	slot     common.Hash
}

type change struct {
	block uint64
	word  *uint256.Int
}

// MemoryStore keeps storage changes in memory. A value written at block N is
// visible from N onwards until the next change.
type MemoryStore struct {
	mu      sync.RWMutex
	changes map[slotKey][]change
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{changes: make(map[slotKey][]change)}
}

// Put records the value of a slot as of the end of block.
func (m *MemoryStore) Put(contract common.Address, slot common.Hash, block uint64, word *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey{contract: contract, slot: slot}
	list := m.changes[key]
	i := sort.Search(len(list), func(i int) bool { return list[i].block >= block })
	if i < len(list) && list[i].block == block {
		list[i].word = word.Clone()
		return
	}
	list = append(list, change{})
	copy(list[i+1:], list[i:])
	list[i] = change{block: block, word: word.Clone()}
	m.changes[key] = list
}

func (m *MemoryStore) At(_ context.Context, block uint64) (View, error) {
	return memoryView{store: m, block: block}, nil
}

type memoryView struct {
	store *MemoryStore
	block uint64
}

func (v memoryView) Storage(_ context.Context, contract common.Address, slot common.Hash) (*uint256.Int, bool, error) {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()

	list := v.store.changes[slotKey{contract: contract, slot: slot}]
	i := sort.Search(len(list), func(i int) bool { return list[i].block > v.block })
	if i == 0 {
		return nil, false, nil
	}
	return list[i-1].word.Clone(), true, nil
}
