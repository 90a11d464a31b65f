// Package wallet manages the private key a node or user spends with and
// builds signed transactions from the unspent set.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInsufficientFunds is returned when the unspent outputs owned by the
// sender can't cover the amount being sent.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Wallet holds a private key and the address derived from it.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// Load reads the private key stored in hex at the specified path.
func Load(path string) (*Wallet, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading key[%s]: %w", path, err)
	}

	return New(privateKey), nil
}

// Generate creates a new private key and stores it at the specified path.
func Generate(path string) (*Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating key folder: %w", err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, fmt.Errorf("saving key[%s]: %w", path, err)
	}

	return New(privateKey), nil
}

// LoadOrGenerate loads the key at the specified path, creating one when
// the file does not exist.
func LoadOrGenerate(path string) (*Wallet, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Generate(path)
		}
		return nil, err
	}

	return Load(path)
}

// New constructs a wallet for the specified key.
func New(privateKey *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		privateKey: privateKey,
		address:    signature.PublicKeyToAddress(privateKey.PublicKey),
	}
}

// PublicAddress returns the address that owns outputs paid to this wallet.
func (w *Wallet) PublicAddress() string {
	return w.address
}

// SigningKey returns the private key used to sign transaction inputs.
func (w *Wallet) SigningKey() *ecdsa.PrivateKey {
	return w.privateKey
}

// Balance returns the sum of the outputs owned by the wallet.
func (w *Wallet) Balance(utxos database.UTXOSet) uint64 {
	return utxos.Balance(w.address)
}

// CreateTransaction builds a signed transaction paying amount to the
// specified address. See CreateTransaction.
func (w *Wallet) CreateTransaction(to string, amount uint64, utxos database.UTXOSet, pending []database.Tx) (database.Tx, error) {
	return CreateTransaction(to, amount, w.privateKey, utxos, pending)
}

// =============================================================================

// CreateTransaction builds a transaction paying amount to the specified
// address, funded by the outputs the key owns. Outputs already spent by a
// pending transaction are skipped. Outputs are taken in order until the
// amount is covered, any leftover is paid back to the sender as change.
// Every input is signed.
func CreateTransaction(to string, amount uint64, privateKey *ecdsa.PrivateKey, utxos database.UTXOSet, pending []database.Tx) (database.Tx, error) {
	if amount == 0 {
		return database.Tx{}, errors.New("amount must be greater than zero")
	}

	if _, err := signature.AddressToPublicKey(to); err != nil {
		return database.Tx{}, fmt.Errorf("invalid address[%s]: %w", to, err)
	}

	from := signature.PublicKeyToAddress(privateKey.PublicKey)

	spent := make(map[database.OutPoint]struct{})
	for _, tx := range pending {
		for _, in := range tx.TxIns {
			spent[database.OutPoint{TxOutID: in.TxOutID, TxOutIndex: in.TxOutIndex}] = struct{}{}
		}
	}

	var txIns []database.TxIn
	var total uint64

	for _, u := range utxos.Owned(from) {
		if _, exists := spent[u.OutPoint()]; exists {
			continue
		}

		txIns = append(txIns, database.TxIn{TxOutID: u.TxOutID, TxOutIndex: u.TxOutIndex})
		total += u.Amount

		if total >= amount {
			break
		}
	}

	if total < amount {
		return database.Tx{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, amount)
	}

	txOuts := []database.TxOut{{Address: to, Amount: amount}}
	if change := total - amount; change > 0 {
		txOuts = append(txOuts, database.TxOut{Address: from, Amount: change})
	}

	tx := database.NewTx(txIns, txOuts)

	for i := range tx.TxIns {
		sig, err := database.SignTxIn(tx, i, privateKey, utxos)
		if err != nil {
			return database.Tx{}, fmt.Errorf("signing input %d: %w", i, err)
		}
		tx.TxIns[i].Signature = sig
	}

	return tx, nil
}
