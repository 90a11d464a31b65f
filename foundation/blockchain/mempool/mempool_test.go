package mempool_test

import (
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/mempool"
	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pkHexA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	toAddr = "04aa"
)

func TestCRUD(t *testing.T) {
	pk, err := crypto.HexToECDSA(pkHexA)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %v", err)
	}
	addr := signature.PublicKeyToAddress(pk.PublicKey)

	// Two blocks worth of rewards for the same address.
	utxos, err := database.DeriveNext(database.UTXOSet{}, []database.Tx{database.NewCoinbaseTx(addr, 1)}, 1)
	if err != nil {
		t.Fatalf("Should be able to derive the first block: %v", err)
	}
	utxos, err = database.DeriveNext(utxos, []database.Tx{database.NewCoinbaseTx(addr, 2)}, 2)
	if err != nil {
		t.Fatalf("Should be able to derive the second block: %v", err)
	}

	tx1 := spend(t, pk, utxos, utxos[0], 10)
	tx2 := spend(t, pk, utxos, utxos[1], 20)
	conflict := spend(t, pk, utxos, utxos[0], 30)

	t.Log("Given the need to validate mempool api.")
	{
		mp := mempool.New()

		t.Log("\tWhen adding valid transactions.")
		{
			for i, tx := range []database.Tx{tx1, tx2} {
				n, err := mp.Upsert(tx, utxos)
				if err != nil {
					t.Fatalf("\t%s\tShould be able to add tx %d: %v", failed, i, err)
				}
				if n != i+1 {
					t.Fatalf("\t%s\tShould get back a pool size of %d, got %d.", failed, i+1, n)
				}
			}
			t.Logf("\t%s\tShould be able to add the transactions.", success)

			txs := mp.Copy()
			if len(txs) != 2 || txs[0].ID != tx1.ID || txs[1].ID != tx2.ID {
				t.Fatalf("\t%s\tShould get the transactions back in arrival order.", failed)
			}
			t.Logf("\t%s\tShould get the transactions back in arrival order.", success)

			if len(mp.SpentOutPoints()) != 2 {
				t.Fatalf("\t%s\tShould report two spent outputs.", failed)
			}
			t.Logf("\t%s\tShould report two spent outputs.", success)
		}

		t.Log("\tWhen adding transactions the pool must refuse.")
		{
			if _, err := mp.Upsert(tx1, utxos); !errors.Is(err, mempool.ErrDuplicate) {
				t.Fatalf("\t%s\tShould refuse a duplicate transaction: %v", failed, err)
			}
			t.Logf("\t%s\tShould refuse a duplicate transaction.", success)

			if _, err := mp.Upsert(conflict, utxos); !errors.Is(err, mempool.ErrConflict) {
				t.Fatalf("\t%s\tShould refuse a conflicting transaction: %v", failed, err)
			}
			t.Logf("\t%s\tShould refuse a conflicting transaction.", success)

			bad := tx2
			bad.TxOuts = []database.TxOut{{Address: toAddr, Amount: 1000}}
			if _, err := mp.Upsert(bad, utxos); err == nil {
				t.Fatalf("\t%s\tShould refuse an invalid transaction.", failed)
			}
			t.Logf("\t%s\tShould refuse an invalid transaction.", success)

			if mp.Count() != 2 {
				t.Fatalf("\t%s\tShould still have two transactions, got %d.", failed, mp.Count())
			}
			t.Logf("\t%s\tShould still have two transactions.", success)
		}

		t.Log("\tWhen the unspent set moves on.")
		{
			next := database.UTXOSet{utxos[1]}

			dropped := mp.Reconcile(next)
			if len(dropped) != 1 || dropped[0].ID != tx1.ID {
				t.Fatalf("\t%s\tShould drop the transaction with a spent input.", failed)
			}
			t.Logf("\t%s\tShould drop the transaction with a spent input.", success)

			txs := mp.Copy()
			if len(txs) != 1 || txs[0].ID != tx2.ID {
				t.Fatalf("\t%s\tShould keep the transaction still spendable.", failed)
			}
			t.Logf("\t%s\tShould keep the transaction still spendable.", success)

			mp.Truncate()
			if mp.Count() != 0 {
				t.Fatalf("\t%s\tShould be able to truncate the pool.", failed)
			}
			t.Logf("\t%s\tShould be able to truncate the pool.", success)
		}
	}
}

// =============================================================================

func spend(t *testing.T, pk *ecdsa.PrivateKey, utxos database.UTXOSet, from database.UnspentTxOut, amount uint64) database.Tx {
	tx := database.NewTx(
		[]database.TxIn{{TxOutID: from.TxOutID, TxOutIndex: from.TxOutIndex}},
		[]database.TxOut{{Address: toAddr, Amount: amount}, {Address: from.Address, Amount: from.Amount - amount}},
	)

	sig, err := database.SignTxIn(tx, 0, pk, utxos)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %v", err)
	}
	tx.TxIns[0].Signature = sig

	return tx
}
