package database

import (
	"errors"
	"fmt"
	"math"
)

// OutPoint uniquely identifies an output by transaction id and position.
type OutPoint struct {
	TxOutID    string
	TxOutIndex uint64
}

// String implements the fmt.Stringer interface for logging.
func (op OutPoint) String() string {
	return fmt.Sprintf("%s:%d", op.TxOutID, op.TxOutIndex)
}

// UnspentTxOut represents an output that can still be spent.
type UnspentTxOut struct {
	TxOutID    string `json:"txOutId"`
	TxOutIndex uint64 `json:"txOutIndex"`
	Address    string `json:"address"`
	Amount     uint64 `json:"amount"`
}

// OutPoint returns the key of the unspent output.
func (u UnspentTxOut) OutPoint() OutPoint {
	return OutPoint{TxOutID: u.TxOutID, TxOutIndex: u.TxOutIndex}
}

// =============================================================================

// UTXOSet is the set of all spendable outputs. It is the only
// representation of balances. A set is never changed in place, DeriveNext
// produces a new one.
type UTXOSet []UnspentTxOut

// Find locates the unspent output for the specified reference.
func (us UTXOSet) Find(txOutID string, txOutIndex uint64) (UnspentTxOut, bool) {
	if i := us.index(txOutID, txOutIndex); i >= 0 {
		return us[i], true
	}

	return UnspentTxOut{}, false
}

// Balance returns the sum of all unspent outputs owned by the address.
// The sum stops at math.MaxUint64 instead of wrapping.
func (us UTXOSet) Balance(address string) uint64 {
	var total uint64
	for _, u := range us {
		if u.Address == address {
			total = saturatingAdd(total, u.Amount)
		}
	}

	return total
}

// Balances returns the balance of every address owning an output. Like
// Balance, a sum stops at math.MaxUint64 instead of wrapping.
func (us UTXOSet) Balances() map[string]uint64 {
	balances := make(map[string]uint64)
	for _, u := range us {
		balances[u.Address] = saturatingAdd(balances[u.Address], u.Amount)
	}

	return balances
}

// Owned returns the unspent outputs owned by the address.
func (us UTXOSet) Owned(address string) UTXOSet {
	owned := UTXOSet{}
	for _, u := range us {
		if u.Address == address {
			owned = append(owned, u)
		}
	}

	return owned
}

// Copy returns a copy of the set.
func (us UTXOSet) Copy() UTXOSet {
	cpy := make(UTXOSet, len(us))
	copy(cpy, us)

	return cpy
}

func saturatingAdd(total, amount uint64) uint64 {
	sum, overflow := addAmount(total, amount)
	if overflow {
		return math.MaxUint64
	}
	return sum
}

// index returns the position of the referenced output or -1.
func (us UTXOSet) index(txOutID string, txOutIndex uint64) int {
	for i, u := range us {
		if u.TxOutID == txOutID && u.TxOutIndex == txOutIndex {
			return i
		}
	}

	return -1
}

// =============================================================================

// DeriveNext replays the transactions of the block at blockIndex against
// the unspent set and returns the resulting set. Every regular transaction
// is validated against the same pre-block snapshot, so two transactions in
// one block spending the same output fail the whole derivation. The input
// set is never modified.
func DeriveNext(utxos UTXOSet, txs []Tx, blockIndex uint64) (UTXOSet, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: block has no coinbase transaction", ErrInvalidBlockTransactions)
	}

	coinbase := txs[0]
	if err := ValidateCoinbaseTx(coinbase, blockIndex); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBlockTransactions, err)
	}

	next := utxos.Copy()
	next = append(next, UnspentTxOut{
		TxOutID:    coinbase.ID,
		TxOutIndex: 0,
		Address:    coinbase.TxOuts[0].Address,
		Amount:     coinbase.TxOuts[0].Amount,
	})

	for _, tx := range txs[1:] {
		if err := ValidateTx(tx, utxos); err != nil {
			return nil, fmt.Errorf("%w: tx[%s]: %w", ErrInvalidBlockTransactions, tx.ID, err)
		}

		for _, txIn := range tx.TxIns {
			i := next.index(txIn.TxOutID, txIn.TxOutIndex)
			if i < 0 {
				err := errors.New("output already spent in this block")
				return nil, fmt.Errorf("%w: tx[%s]: %s:%d: %w", ErrInvalidBlockTransactions, tx.ID, txIn.TxOutID, txIn.TxOutIndex, err)
			}
			next = append(next[:i], next[i+1:]...)
		}

		for j, txOut := range tx.TxOuts {
			next = append(next, UnspentTxOut{
				TxOutID:    tx.ID,
				TxOutIndex: uint64(j),
				Address:    txOut.Address,
				Amount:     txOut.Amount,
			})
		}
	}

	return next, nil
}
