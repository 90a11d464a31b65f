// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// Set of errors the mempool reports when a transaction is refused.
var (
	ErrDuplicate = errors.New("transaction already in the mempool")
	ErrConflict  = errors.New("input already spent by a transaction in the mempool")
)

// Mempool represents the set of transactions waiting to be mined. The
// insertion order is kept so blocks are built in arrival order.
type Mempool struct {
	mu   sync.RWMutex
	pool []database.Tx
}

// New constructs a new, empty mempool.
func New() *Mempool {
	return &Mempool{}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert validates the transaction against the unspent set and adds it to
// the pool. A transaction spending an output another pool transaction
// already spends is refused. The new size of the pool is returned.
func (mp *Mempool) Upsert(tx database.Tx, utxos database.UTXOSet) (int, error) {
	if err := database.ValidateTx(tx, utxos); err != nil {
		return 0, fmt.Errorf("tx[%s]: %w", tx.ID, err)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	spent := make(map[database.OutPoint]struct{})
	for _, ptx := range mp.pool {
		if ptx.ID == tx.ID {
			return 0, fmt.Errorf("tx[%s]: %w", tx.ID, ErrDuplicate)
		}

		for _, in := range ptx.TxIns {
			spent[database.OutPoint{TxOutID: in.TxOutID, TxOutIndex: in.TxOutIndex}] = struct{}{}
		}
	}

	for _, in := range tx.TxIns {
		op := database.OutPoint{TxOutID: in.TxOutID, TxOutIndex: in.TxOutIndex}
		if _, exists := spent[op]; exists {
			return 0, fmt.Errorf("tx[%s]: %s: %w", tx.ID, op, ErrConflict)
		}
	}

	mp.pool = append(mp.pool, tx)

	return len(mp.pool), nil
}

// Copy returns the transactions in the pool in arrival order.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	cpy := make([]database.Tx, len(mp.pool))
	copy(cpy, mp.pool)

	return cpy
}

// SpentOutPoints returns the outputs consumed by transactions in the pool.
func (mp *Mempool) SpentOutPoints() map[database.OutPoint]struct{} {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	spent := make(map[database.OutPoint]struct{})
	for _, tx := range mp.pool {
		for _, in := range tx.TxIns {
			spent[database.OutPoint{TxOutID: in.TxOutID, TxOutIndex: in.TxOutIndex}] = struct{}{}
		}
	}

	return spent
}

// Reconcile drops every transaction with an input that is no longer in the
// unspent set. The dropped transactions are returned.
func (mp *Mempool) Reconcile(utxos database.UTXOSet) []database.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var dropped []database.Tx
	keep := mp.pool[:0]

next:
	for _, tx := range mp.pool {
		for _, in := range tx.TxIns {
			if _, exists := utxos.Find(in.TxOutID, in.TxOutIndex); !exists {
				dropped = append(dropped, tx)
				continue next
			}
		}
		keep = append(keep, tx)
	}

	// Clear the tail so dropped transactions can be collected.
	for i := len(keep); i < len(mp.pool); i++ {
		mp.pool[i] = database.Tx{}
	}
	mp.pool = keep

	return dropped
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = nil
}
