// Package database provides the ledger data model: transactions, the set
// of unspent outputs and the blocks that make up a chain, along with the
// validation rules that tie them together. Nothing in this package holds
// state, every function returns new values.
package database

import (
	"errors"
	"fmt"
)

// ValidateChain checks the full candidate chain starting from the genesis
// block. Each block is validated against its predecessor inside the
// candidate, replaying the unspent set as it goes. The unspent set for the
// tip of the chain is returned.
func ValidateChain(chain []Block) (UTXOSet, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: chain is empty", ErrInvalidChain)
	}

	if !IsGenesis(chain[0]) {
		return nil, fmt.Errorf("%w: genesis block does not match", ErrInvalidChain)
	}

	utxos := UTXOSet{}
	for i := 1; i < len(chain); i++ {
		next, err := ValidateNextBlock(chain[i], chain[i-1], utxos)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidChain, err)
		}
		utxos = next
	}

	return utxos, nil
}

// IsValidChain reports whether the candidate chain passes ValidateChain.
func IsValidChain(chain []Block) bool {
	_, err := ValidateChain(chain)
	return err == nil
}

// IsValidationError reports whether the error came from rejecting a
// transaction, block or chain. These errors are never fatal to the node.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidBlock),
		errors.Is(err, ErrInvalidBlockTransactions),
		errors.Is(err, ErrInvalidChain):
		return true
	}

	return false
}
