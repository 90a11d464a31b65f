package gossip_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/gossip"
	"github.com/ardanlabs/utxochain/foundation/blockchain/protocol"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const peerID = "peer-1"

// =============================================================================

func Test_Queries(t *testing.T) {
	local := newState(t, 2)
	tr := &fakeTransport{}
	s := gossip.New(gossip.Config{Ledger: local, Transport: tr})
	defer s.Shutdown()

	t.Log("Given the need to answer peer queries.")
	{
		s.HandleMessage(peerID, protocol.QueryLatest{})
		m, ok := tr.lastSent().(protocol.ResponseChain)
		if !ok || len(m.Blocks) != 1 || m.Blocks[0].Index != 2 {
			t.Fatalf("\t%s\tShould answer QUERY_LATEST with the latest block.", failed)
		}
		t.Logf("\t%s\tShould answer QUERY_LATEST with the latest block.", success)

		s.HandleMessage(peerID, protocol.QueryAll{})
		m, ok = tr.lastSent().(protocol.ResponseChain)
		if !ok || len(m.Blocks) != 3 {
			t.Fatalf("\t%s\tShould answer QUERY_ALL with the full chain.", failed)
		}
		t.Logf("\t%s\tShould answer QUERY_ALL with the full chain.", success)

		s.HandleMessage(peerID, protocol.QueryPool{})
		if _, ok := tr.lastSent().(protocol.ResponsePool); !ok {
			t.Fatalf("\t%s\tShould answer QUERY_POOL with the mempool.", failed)
		}
		t.Logf("\t%s\tShould answer QUERY_POOL with the mempool.", success)
	}
}

func Test_PeerConnected(t *testing.T) {
	local := newState(t, 0)
	tr := &fakeTransport{}
	s := gossip.New(gossip.Config{Ledger: local, Transport: tr, PoolQueryDelay: 10 * time.Millisecond})
	defer s.Shutdown()

	t.Log("Given the need to start the protocol with a new peer.")
	{
		s.PeerConnected(peerID)

		if _, ok := tr.lastSent().(protocol.QueryLatest); !ok {
			t.Fatalf("\t%s\tShould ask the peer for its latest block.", failed)
		}
		t.Logf("\t%s\tShould ask the peer for its latest block.", success)

		deadline := time.Now().Add(2 * time.Second)
		for {
			if _, ok := tr.lastBroadcast().(protocol.QueryPool); ok {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("\t%s\tShould broadcast QUERY_POOL after the delay.", failed)
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Logf("\t%s\tShould broadcast QUERY_POOL after the delay.", success)
	}
}

func Test_ChainResponse(t *testing.T) {
	t.Log("Given the need to reconcile with a peer's chain.")
	{
		t.Log("\tWhen the response is empty or not ahead.")
		{
			local := newState(t, 2)
			remote := newState(t, 2)
			tr := &fakeTransport{}
			s := gossip.New(gossip.Config{Ledger: local, Transport: tr})
			defer s.Shutdown()

			before := local.RetrieveLatestBlock()

			s.HandleMessage(peerID, protocol.ResponseChain{})
			s.HandleMessage(peerID, protocol.ResponseChain{Blocks: remote.RetrieveChain()})

			if tr.count() != 0 || local.RetrieveLatestBlock().Hash != before.Hash {
				t.Fatalf("\t%s\tShould do nothing.", failed)
			}
			t.Logf("\t%s\tShould do nothing.", success)
		}

		t.Log("\tWhen the peer is one block ahead of our tip.")
		{
			local := newState(t, 0)
			tr := &fakeTransport{}
			s := gossip.New(gossip.Config{Ledger: local, Transport: tr})
			defer s.Shutdown()

			block, err := local.MineNextBlock(context.Background(), coinbase(t, 1))
			if err != nil {
				t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
			}

			// Build the peer's chain on top of ours.
			remote := newState(t, 0)
			if err := remote.AddBlock(block); err != nil {
				t.Fatalf("\t%s\tShould be able to copy the block: %v", failed, err)
			}
			next, err := remote.MineNextBlock(context.Background(), coinbase(t, 2))
			if err != nil {
				t.Fatalf("\t%s\tShould be able to mine a second block: %v", failed, err)
			}

			s.HandleMessage(peerID, protocol.ResponseChain{Blocks: []database.Block{next}})

			if local.RetrieveLatestBlock().Hash != next.Hash {
				t.Fatalf("\t%s\tShould append the block.", failed)
			}
			t.Logf("\t%s\tShould append the block.", success)

			m, ok := tr.lastBroadcast().(protocol.ResponseChain)
			if !ok || len(m.Blocks) != 1 || m.Blocks[0].Hash != next.Hash {
				t.Fatalf("\t%s\tShould broadcast the new latest block.", failed)
			}
			t.Logf("\t%s\tShould broadcast the new latest block.", success)
		}

		t.Log("\tWhen a single unlinked block is received.")
		{
			local := newState(t, 1)
			remote := newState(t, 3)
			tr := &fakeTransport{}
			s := gossip.New(gossip.Config{Ledger: local, Transport: tr})
			defer s.Shutdown()

			latest := remote.RetrieveLatestBlock()
			s.HandleMessage(peerID, protocol.ResponseChain{Blocks: []database.Block{latest}})

			if _, ok := tr.lastSent().(protocol.QueryAll); !ok || tr.lastPeer() != peerID {
				t.Fatalf("\t%s\tShould ask the peer for its full chain.", failed)
			}
			t.Logf("\t%s\tShould ask the peer for its full chain.", success)

			s.HandleMessage(peerID, protocol.ResponseChain{Blocks: []database.Block{latest}})
			if tr.count() != 1 {
				t.Fatalf("\t%s\tShould not ask again for the same block.", failed)
			}
			t.Logf("\t%s\tShould not ask again for the same block.", success)

			s.HandleMessage(peerID, protocol.ResponseChain{Blocks: remote.RetrieveChain()})
			if local.RetrieveLatestBlock().Hash != latest.Hash {
				t.Fatalf("\t%s\tShould replace the chain with the full chain.", failed)
			}
			t.Logf("\t%s\tShould replace the chain with the full chain.", success)

			if _, ok := tr.lastBroadcast().(protocol.ResponseChain); !ok {
				t.Fatalf("\t%s\tShould broadcast the new latest block.", failed)
			}
			t.Logf("\t%s\tShould broadcast the new latest block.", success)
		}

		t.Log("\tWhen an invalid longer chain is received.")
		{
			local := newState(t, 1)
			remote := newState(t, 3)
			tr := &fakeTransport{}
			s := gossip.New(gossip.Config{Ledger: local, Transport: tr})
			defer s.Shutdown()

			before := local.RetrieveLatestBlock()

			chain := remote.RetrieveChain()
			chain[2].Nonce++

			s.HandleMessage(peerID, protocol.ResponseChain{Blocks: chain})
			if local.RetrieveLatestBlock().Hash != before.Hash || tr.count() != 0 {
				t.Fatalf("\t%s\tShould keep the local chain.", failed)
			}
			t.Logf("\t%s\tShould keep the local chain.", success)
		}
	}
}

func Test_PoolResponse(t *testing.T) {
	pk, err := crypto.HexToECDSA("8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0")
	if err != nil {
		t.Fatalf("Should be able to load the private key: %v", err)
	}
	w := wallet.New(pk)

	local, err := state.New(state.Config{Wallet: w})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}
	if _, err := local.MineNewBlock(context.Background()); err != nil {
		t.Fatalf("Should be able to mine a block: %v", err)
	}

	tr := &fakeTransport{}
	s := gossip.New(gossip.Config{Ledger: local, Transport: tr})
	defer s.Shutdown()

	tx, err := w.CreateTransaction(w.PublicAddress(), 10, local.RetrieveUTXOs(), nil)
	if err != nil {
		t.Fatalf("Should be able to create a transaction: %v", err)
	}

	s.HandleMessage(peerID, protocol.ResponsePool{Transactions: []database.Tx{tx, tx}})

	if n := local.QueryMempoolLength(); n != 1 {
		t.Fatalf("Should add the transaction to the mempool once, got %d.", n)
	}

	if tr.count() != 0 {
		t.Fatalf("Should not share a transaction received from a peer.")
	}
}

// =============================================================================

type sent struct {
	peerID string
	msg    protocol.Message
}

type fakeTransport struct {
	mu         sync.Mutex
	sent       []sent
	broadcasts []protocol.Message
}

func (f *fakeTransport) Send(peerID string, msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, sent{peerID: peerID, msg: msg})
	return nil
}

func (f *fakeTransport) Broadcast(msg protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.broadcasts = append(f.broadcasts, msg)
}

func (f *fakeTransport) lastSent() protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1].msg
}

func (f *fakeTransport) lastPeer() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].peerID
}

func (f *fakeTransport) lastBroadcast() protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.broadcasts) == 0 {
		return nil
	}
	return f.broadcasts[len(f.broadcasts)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sent) + len(f.broadcasts)
}

// newState constructs a state and mines the specified number of blocks
// with a fresh key, so no two states share a chain.
func newState(t *testing.T, blocks int) *state.State {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %v", err)
	}

	st, err := state.New(state.Config{Wallet: wallet.New(pk)})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	for range blocks {
		if _, err := st.MineNewBlock(context.Background()); err != nil {
			t.Fatalf("Should be able to mine a block: %v", err)
		}
	}

	return st
}

func coinbase(t *testing.T, index uint64) []database.Tx {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %v", err)
	}

	return []database.Tx{database.NewCoinbaseTx(wallet.New(pk).PublicAddress(), index)}
}
