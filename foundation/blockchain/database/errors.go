package database

import "errors"

// Set of errors reported while validating transactions, blocks and chains.
// Callers use errors.Is to classify a failure. None of them are fatal to
// the node, only the candidate being checked is rejected.
var (
	// ErrInvalidBlock is returned when a block's shape, hash, difficulty
	// or link to its parent is wrong.
	ErrInvalidBlock = errors.New("invalid block")

	// ErrInvalidBlockTransactions is returned when the coinbase or balance
	// rules fail for the transactions inside a block.
	ErrInvalidBlockTransactions = errors.New("invalid block transactions")

	// ErrInvalidChain is returned when a candidate chain has the wrong
	// genesis block or any block fails validation.
	ErrInvalidChain = errors.New("invalid chain")

	// ErrReferenceNotFound is returned when an input references an output
	// that is not in the unspent set.
	ErrReferenceNotFound = errors.New("referenced output not found")

	// ErrKeyMismatch is returned when the signing key does not own the
	// output an input references.
	ErrKeyMismatch = errors.New("key does not match the referenced output address")

	// ErrAmountOverflow is returned when the amounts of a transaction's
	// inputs or outputs add up to more than an amount can hold.
	ErrAmountOverflow = errors.New("amount total overflows")
)
