package state

import (
	"errors"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// ErrNotFound is returned when a block or transaction does not exist.
var ErrNotFound = errors.New("not found")

// =============================================================================

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, block := range s.chain {
		if block.Hash == hash {
			return block, nil
		}
	}

	return database.Block{}, ErrNotFound
}

// QueryTransaction returns the committed transaction with the specified id
// and the block it was committed in.
func (s *State) QueryTransaction(id string) (database.Tx, database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.chain) - 1; i >= 0; i-- {
		for _, tx := range s.chain[i].Transactions {
			if tx.ID == id {
				return tx, s.chain[i], nil
			}
		}
	}

	return database.Tx{}, database.Block{}, ErrNotFound
}

// QueryBalance returns the balance for the specified address.
func (s *State) QueryBalance(address string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.utxos.Balance(address)
}

// QueryBalances returns the balance of every address holding an output.
func (s *State) QueryBalances() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.utxos.Balances()
}

// QueryUTXOsByAddress returns the unspent outputs owned by the address.
func (s *State) QueryUTXOsByAddress(address string) database.UTXOSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.utxos.Owned(address)
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}
