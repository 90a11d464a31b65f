package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	minerECDSA = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	otherECDSA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
)

// =============================================================================

func Test_NextDifficulty(t *testing.T) {
	type table struct {
		name       string
		difficulty uint
		taken      int64
		exp        uint
	}

	tt := []table{
		{"fast", 3, 40, 4},
		{"slow", 3, 250, 2},
		{"in-range-low", 3, 50, 3},
		{"in-range-high", 3, 200, 3},
		{"floor", 0, 250, 0},
	}

	t.Log("Given the need to retarget the difficulty.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				chain := syntheticChain(state.DifficultyAdjustmentInterval+1, tst.difficulty, 1000)

				// Spread the interval so the latest block lands at the wanted time.
				chain[len(chain)-1].Timestamp = chain[1].Timestamp + tst.taken

				got := state.NextDifficulty(chain)
				if got != tst.exp {
					t.Logf("\t\tTest %d:\tgot: %d", testID, got)
					t.Logf("\t\tTest %d:\texp: %d", testID, tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get back the right difficulty.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the right difficulty.", success, testID)
			}

			t.Run(tst.name, f)
		}

		chain := syntheticChain(state.DifficultyAdjustmentInterval, 5, 1000)
		chain[len(chain)-1].Difficulty = 7
		if got := state.NextDifficulty(chain); got != 7 {
			t.Fatalf("\t%s\tShould keep the latest difficulty between adjustments, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould keep the latest difficulty between adjustments.", success)

		if got := state.NextDifficulty([]database.Block{database.Genesis()}); got != 0 {
			t.Fatalf("\t%s\tShould start from the genesis difficulty, got %d.", failed, got)
		}
		t.Logf("\t%s\tShould start from the genesis difficulty.", success)
	}
}

func Test_MineAndSpend(t *testing.T) {
	miner := mustWallet(t, minerECDSA)
	other := mustWallet(t, otherECDSA)

	st := newState(t, miner)
	w := &fakeWorker{}
	st.SetWorker(w)

	t.Log("Given the need to mine blocks and move value.")
	{
		t.Log("\tWhen mining a block with an empty mempool.")
		{
			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
			}
			t.Logf("\t%s\tShould be able to mine a block.", success)

			if block.Index != 1 || len(block.Transactions) != 1 {
				t.Fatalf("\t%s\tShould get a block at index 1 with only a coinbase.", failed)
			}
			t.Logf("\t%s\tShould get a block at index 1 with only a coinbase.", success)

			if bal := st.QueryBalance(miner.PublicAddress()); bal != database.BlockReward {
				t.Fatalf("\t%s\tShould have a balance of %d, got %d.", failed, database.BlockReward, bal)
			}
			t.Logf("\t%s\tShould have a balance of %d.", success, database.BlockReward)
		}

		t.Log("\tWhen sending value to another address.")
		{
			tx, err := st.SendTransaction(other.PublicAddress(), 30)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to send a transaction: %v", failed, err)
			}
			t.Logf("\t%s\tShould be able to send a transaction.", success)

			if w.shared() != 1 || st.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tShould share the transaction and hold it in the mempool.", failed)
			}
			t.Logf("\t%s\tShould share the transaction and hold it in the mempool.", success)

			if _, err := st.MineNewBlock(context.Background()); err != nil {
				t.Fatalf("\t%s\tShould be able to mine the transaction: %v", failed, err)
			}

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tShould empty the mempool after mining.", failed)
			}
			t.Logf("\t%s\tShould empty the mempool after mining.", success)

			if bal := st.QueryBalance(other.PublicAddress()); bal != 30 {
				t.Fatalf("\t%s\tShould have a balance of 30 for the receiver, got %d.", failed, bal)
			}
			if bal := st.QueryBalance(miner.PublicAddress()); bal != 70 {
				t.Fatalf("\t%s\tShould have a balance of 70 for the miner, got %d.", failed, bal)
			}
			t.Logf("\t%s\tShould have the right balances.", success)

			got, block, err := st.QueryTransaction(tx.ID)
			if err != nil || got.ID != tx.ID || block.Index != 2 {
				t.Fatalf("\t%s\tShould find the transaction in block 2: %v", failed, err)
			}
			t.Logf("\t%s\tShould find the transaction in block 2.", success)

			if !database.IsValidChain(st.RetrieveChain()) {
				t.Fatalf("\t%s\tShould hold a valid chain.", failed)
			}
			t.Logf("\t%s\tShould hold a valid chain.", success)
		}

		t.Log("\tWhen sending more than the balance.")
		{
			if _, err := st.SendTransaction(other.PublicAddress(), 1000); !errors.Is(err, wallet.ErrInsufficientFunds) {
				t.Fatalf("\t%s\tShould fail with insufficient funds: %v", failed, err)
			}
			t.Logf("\t%s\tShould fail with insufficient funds.", success)
		}
	}
}

func Test_ProcessPeerBlock(t *testing.T) {
	miner := mustWallet(t, minerECDSA)

	src := newState(t, miner)
	dst := newState(t, miner)
	w := &fakeWorker{}
	dst.SetWorker(w)

	block, err := src.MineNewBlock(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %v", err)
	}

	t.Log("Given the need to accept blocks from peers.")
	{
		if err := dst.ProcessPeerBlock(block); err != nil {
			t.Fatalf("\t%s\tShould accept a block linked to the tip: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a block linked to the tip.", success)

		if w.cancelled() != 1 {
			t.Fatalf("\t%s\tShould cancel any mining operation.", failed)
		}
		t.Logf("\t%s\tShould cancel any mining operation.", success)

		if err := dst.ProcessPeerBlock(block); !errors.Is(err, database.ErrInvalidBlock) {
			t.Fatalf("\t%s\tShould reject the same block twice: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject the same block twice.", success)

		if dst.RetrieveLatestBlock().Hash != block.Hash {
			t.Fatalf("\t%s\tShould have the block as the tip.", failed)
		}
		t.Logf("\t%s\tShould have the block as the tip.", success)
	}
}

func Test_ReplaceChain(t *testing.T) {
	miner := mustWallet(t, minerECDSA)
	other := mustWallet(t, otherECDSA)

	local := newState(t, miner)
	for range 3 {
		if _, err := local.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("Should be able to mine a local block: %v", err)
		}
	}

	remote := newState(t, other)
	for range 5 {
		if _, err := remote.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("Should be able to mine a remote block: %v", err)
		}
	}

	t.Log("Given the need to choose between competing chains.")
	{
		t.Log("\tWhen the candidate is not longer.")
		{
			before := snapshot(t, local)

			for _, n := range []int{1, 3, 4} {
				err := local.ReplaceChain(remote.RetrieveChain()[:n])
				if !errors.Is(err, state.ErrChainNotLonger) {
					t.Fatalf("\t%s\tShould not replace with a chain of length %d: %v", failed, n, err)
				}
			}
			t.Logf("\t%s\tShould not replace with a chain of equal or smaller length.", success)

			if snapshot(t, local) != before {
				t.Fatalf("\t%s\tShould leave the local chain unchanged.", failed)
			}
			t.Logf("\t%s\tShould leave the local chain unchanged.", success)
		}

		t.Log("\tWhen the candidate is longer but fails the replay.")
		{
			before := snapshot(t, local)

			bad := remote.RetrieveChain()
			last := bad[len(bad)-1]
			last.Transactions = []database.Tx{database.NewCoinbaseTx(other.PublicAddress(), last.Index+1)}
			last.Hash = last.ComputeHash()
			bad[len(bad)-1] = last

			if err := local.ReplaceChain(bad); !errors.Is(err, database.ErrInvalidChain) {
				t.Fatalf("\t%s\tShould reject an invalid chain: %v", failed, err)
			}
			t.Logf("\t%s\tShould reject an invalid chain.", success)

			if snapshot(t, local) != before {
				t.Fatalf("\t%s\tShould leave the local chain byte for byte unchanged.", failed)
			}
			t.Logf("\t%s\tShould leave the local chain byte for byte unchanged.", success)
		}

		t.Log("\tWhen the candidate is longer and valid.")
		{
			w := &fakeWorker{}
			local.SetWorker(w)

			if err := local.ReplaceChain(remote.RetrieveChain()); err != nil {
				t.Fatalf("\t%s\tShould replace the chain: %v", failed, err)
			}
			t.Logf("\t%s\tShould replace the chain.", success)

			if snapshot(t, local) != snapshot(t, remote) {
				t.Fatalf("\t%s\tShould hold the remote chain.", failed)
			}
			t.Logf("\t%s\tShould hold the remote chain.", success)

			if bal := local.QueryBalance(miner.PublicAddress()); bal != 0 {
				t.Fatalf("\t%s\tShould drop the rewards of the replaced chain, got %d.", failed, bal)
			}
			if bal := local.QueryBalance(other.PublicAddress()); bal != 5*database.BlockReward {
				t.Fatalf("\t%s\tShould re-derive the unspent set, got %d.", failed, bal)
			}
			t.Logf("\t%s\tShould re-derive the unspent set.", success)

			if w.cancelled() != 1 {
				t.Fatalf("\t%s\tShould cancel any mining operation.", failed)
			}
			t.Logf("\t%s\tShould cancel any mining operation.", success)
		}
	}
}

func Test_ReplaceChainReconcilesMempool(t *testing.T) {
	miner := mustWallet(t, minerECDSA)
	other := mustWallet(t, otherECDSA)

	local := newState(t, miner)
	if _, err := local.MineNewBlock(context.Background()); err != nil {
		t.Fatalf("Should be able to mine a block: %v", err)
	}
	if _, err := local.SendTransaction(other.PublicAddress(), 10); err != nil {
		t.Fatalf("Should be able to send a transaction: %v", err)
	}

	remote := newState(t, other)
	for range 3 {
		if _, err := remote.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("Should be able to mine a remote block: %v", err)
		}
	}

	if err := local.ReplaceChain(remote.RetrieveChain()); err != nil {
		t.Fatalf("Should replace the chain: %v", err)
	}

	if n := local.QueryMempoolLength(); n != 0 {
		t.Fatalf("Should drop the transaction spending an output that no longer exists, got %d.", n)
	}
}

// =============================================================================

type fakeWorker struct {
	mu      sync.Mutex
	cancels int
	txs     []database.Tx
}

func (w *fakeWorker) Shutdown()          {}
func (w *fakeWorker) SignalStartMining() {}

func (w *fakeWorker) SignalCancelMining() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancels++
}

func (w *fakeWorker) SignalShareTx(tx database.Tx) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.txs = append(w.txs, tx)
}

func (w *fakeWorker) cancelled() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancels
}

func (w *fakeWorker) shared() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.txs)
}

func mustWallet(t *testing.T, hexKey string) *wallet.Wallet {
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %v", err)
	}

	return wallet.New(pk)
}

func newState(t *testing.T, w *wallet.Wallet) *state.State {
	st, err := state.New(state.Config{
		Wallet: w,
		Host:   "localhost:9080",
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	return st
}

func snapshot(t *testing.T, st *state.State) string {
	data, err := json.Marshal(st.RetrieveChain())
	if err != nil {
		t.Fatalf("Should be able to marshal the chain: %v", err)
	}

	return string(data)
}

// syntheticChain builds a chain of the specified length for difficulty
// checks. Only the index, timestamp and difficulty are set.
func syntheticChain(length int, difficulty uint, start int64) []database.Block {
	chain := make([]database.Block, length)
	for i := range chain {
		chain[i] = database.Block{
			Index:      uint64(i),
			Timestamp:  start + int64(i)*state.BlockGenerationInterval,
			Difficulty: difficulty,
		}
	}

	return chain
}
