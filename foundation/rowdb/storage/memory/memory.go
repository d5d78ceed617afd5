// Package memory implements the ability to read and write blocks to memory
// using a slice.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/todochain/foundation/rowdb"
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory using a slice. This implements the rowdb.Serializer
// interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []rowdb.Block
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the specified block and stores it in memory.
func (m *Memory) Write(block rowdb.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if next := uint64(len(m.blocks)) + 1; block.Header.Number != next {
		return fmt.Errorf("block %d is out of order, expected %d", block.Header.Number, next)
	}

	m.blocks = append(m.blocks, block)

	return nil
}

// GetBlock locates and returns the contents of the specified block by
// number. Block numbers start at 1.
func (m *Memory) GetBlock(num uint64) (rowdb.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if num == 0 || num > uint64(len(m.blocks)) {
		return rowdb.Block{}, errors.New("block does not exist")
	}

	return m.blocks[num-1], nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (m *Memory) ForEach() rowdb.Iterator {
	return &memoryIterator{storage: m}
}

// Reset will clear out the ledger in memory.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil
	return nil
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking
// through the blocks in memory. This implements the rowdb.Iterator
// interface.
type memoryIterator struct {
	storage *Memory // Access to the storage API.
	current uint64  // Current block number being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from memory.
func (mi *memoryIterator) Next() (rowdb.Block, error) {
	if mi.eoc {
		return rowdb.Block{}, errors.New("end of chain")
	}

	mi.current++
	block, err := mi.storage.GetBlock(mi.current)
	if err != nil {
		mi.eoc = true
		return rowdb.Block{}, nil
	}

	return block, nil
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}
