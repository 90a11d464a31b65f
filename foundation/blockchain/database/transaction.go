package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
)

// BlockReward is the fixed amount paid to the miner by the coinbase
// transaction of every block.
const BlockReward uint64 = 50

// =============================================================================

// TxOut represents value assigned to an address by a transaction.
type TxOut struct {
	Address string `json:"address"` // Hex-encoded public key of the owner.
	Amount  uint64 `json:"amount"`  // Value paid to the owner.
}

// TxIn references a previous output being spent and carries the proof the
// spender owns it.
type TxIn struct {
	TxOutID    string `json:"txOutId"`    // Id of the transaction holding the output.
	TxOutIndex uint64 `json:"txOutIndex"` // Position of the output. Holds the block height for coinbase.
	Signature  string `json:"signature"`  // Signature of the transaction id. Empty until signed.
}

// Tx is a transfer of value from a set of unspent outputs to a set of new
// outputs.
type Tx struct {
	ID     string  `json:"id"`
	TxIns  []TxIn  `json:"txIns"`
	TxOuts []TxOut `json:"txOuts"`
}

// NewTx constructs an unsigned transaction and assigns its id.
func NewTx(txIns []TxIn, txOuts []TxOut) Tx {
	tx := Tx{
		TxIns:  txIns,
		TxOuts: txOuts,
	}
	tx.ID = DeriveTxID(tx)

	return tx
}

// NewCoinbaseTx constructs the reward transaction for the block at the
// specified height. The single input carries the height so every coinbase
// gets a unique id.
func NewCoinbaseTx(address string, blockIndex uint64) Tx {
	return NewTx(
		[]TxIn{{TxOutIndex: blockIndex}},
		[]TxOut{{Address: address, Amount: BlockReward}},
	)
}

// DeriveTxID calculates the id for the transaction from the input
// references and the output contents. Signatures are not part of the id.
func DeriveTxID(tx Tx) string {
	var b strings.Builder

	for _, in := range tx.TxIns {
		b.WriteString(in.TxOutID)
		b.WriteString(strconv.FormatUint(in.TxOutIndex, 10))
	}

	for _, out := range tx.TxOuts {
		b.WriteString(out.Address)
		b.WriteString(strconv.FormatUint(out.Amount, 10))
	}

	return signature.Hash(b.String())
}

// SignTxIn produces the signature for the input at the specified index.
// The caller is responsible for assigning it to the input.
func SignTxIn(tx Tx, txInIndex int, privateKey *ecdsa.PrivateKey, utxos UTXOSet) (string, error) {
	if txInIndex < 0 || txInIndex >= len(tx.TxIns) {
		return "", fmt.Errorf("input index %d out of range, tx has %d inputs", txInIndex, len(tx.TxIns))
	}

	txIn := tx.TxIns[txInIndex]

	utxo, exists := utxos.Find(txIn.TxOutID, txIn.TxOutIndex)
	if !exists {
		return "", fmt.Errorf("%w: %s:%d", ErrReferenceNotFound, txIn.TxOutID, txIn.TxOutIndex)
	}

	if signature.PublicKeyToAddress(privateKey.PublicKey) != utxo.Address {
		return "", fmt.Errorf("%w: %s:%d", ErrKeyMismatch, txIn.TxOutID, txIn.TxOutIndex)
	}

	return signature.Sign(tx.ID, privateKey)
}

// VerifyTxIn checks the input's signature against the owner of the output
// it references. An input referencing an unknown output is invalid.
func VerifyTxIn(txIn TxIn, tx Tx, utxos UTXOSet) bool {
	utxo, exists := utxos.Find(txIn.TxOutID, txIn.TxOutIndex)
	if !exists {
		return false
	}

	return signature.Verify(utxo.Address, tx.ID, txIn.Signature)
}

// ValidateTx performs the full validation of a regular transaction
// against the specified unspent set.
func ValidateTx(tx Tx, utxos UTXOSet) error {
	if DeriveTxID(tx) != tx.ID {
		return fmt.Errorf("invalid tx id %s", tx.ID)
	}

	if len(tx.TxIns) == 0 {
		return errors.New("tx has no inputs")
	}

	seen := make(map[OutPoint]struct{}, len(tx.TxIns))
	var totalIn uint64

	for i, txIn := range tx.TxIns {
		op := OutPoint{TxOutID: txIn.TxOutID, TxOutIndex: txIn.TxOutIndex}
		if _, exists := seen[op]; exists {
			return fmt.Errorf("input %d spends %s more than once", i, op)
		}
		seen[op] = struct{}{}

		utxo, exists := utxos.Find(txIn.TxOutID, txIn.TxOutIndex)
		if !exists {
			return fmt.Errorf("input %d: %w: %s", i, ErrReferenceNotFound, op)
		}

		if !signature.Verify(utxo.Address, tx.ID, txIn.Signature) {
			return fmt.Errorf("input %d has an invalid signature", i)
		}

		var overflow bool
		if totalIn, overflow = addAmount(totalIn, utxo.Amount); overflow {
			return fmt.Errorf("input %d: %w", i, ErrAmountOverflow)
		}
	}

	var totalOut uint64
	for i, txOut := range tx.TxOuts {
		var overflow bool
		if totalOut, overflow = addAmount(totalOut, txOut.Amount); overflow {
			return fmt.Errorf("output %d: %w", i, ErrAmountOverflow)
		}
	}

	if totalIn != totalOut {
		return fmt.Errorf("inputs total %d, outputs total %d", totalIn, totalOut)
	}

	return nil
}

// ValidateCoinbaseTx checks the transaction is a well formed coinbase for
// the block at the specified height.
func ValidateCoinbaseTx(tx Tx, blockIndex uint64) error {
	if DeriveTxID(tx) != tx.ID {
		return fmt.Errorf("invalid coinbase tx id %s", tx.ID)
	}

	if len(tx.TxIns) != 1 {
		return errors.New("coinbase must have exactly one input")
	}

	if tx.TxIns[0].TxOutIndex != blockIndex {
		return fmt.Errorf("coinbase input must hold the block height, got %d, exp %d", tx.TxIns[0].TxOutIndex, blockIndex)
	}

	if len(tx.TxOuts) != 1 {
		return errors.New("coinbase must have exactly one output")
	}

	if tx.TxOuts[0].Amount != BlockReward {
		return fmt.Errorf("invalid coinbase amount, got %d, exp %d", tx.TxOuts[0].Amount, BlockReward)
	}

	return nil
}

// addAmount adds the two amounts, reporting if the sum does not fit.
func addAmount(total, amount uint64) (uint64, bool) {
	sum, carry := bits.Add64(total, amount, 0)
	return sum, carry != 0
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:in[%d]:out[%d]", tx.ID, len(tx.TxIns), len(tx.TxOuts))
}
