package state

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
)

// AddKnownPeer provides the ability to add a new peer.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer provides the ability to remove a peer.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}

// AddBlock validates the block against the tip of the chain and, if that
// passes, appends it. The mempool is reconciled with the new unspent set.
func (s *State) AddBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.chain[len(s.chain)-1]

	s.evHandler("state: AddBlock: validate: prevBlk[%s]: newBlk[%s]: txs[%d]", prev, block, len(block.Transactions))

	utxos, err := database.ValidateNextBlock(block, prev, s.utxos)
	if err != nil {
		prometheusRejected.WithLabelValues("block").Inc()
		return err
	}

	chain := make([]database.Block, len(s.chain), len(s.chain)+1)
	copy(chain, s.chain)
	s.swap(append(chain, block), utxos)

	prometheusBlocksAccepted.Inc()
	s.blockEvent(block)

	return nil
}

// ProcessPeerBlock takes a block received from a peer that links to the
// tip of the chain, validates it and if that passes, appends it. Any
// mining operation in progress is abandoned.
func (s *State) ProcessPeerBlock(block database.Block) error {
	s.evHandler("state: ProcessPeerBlock: started: prevBlk[%s]: newBlk[%s]", block.PreviousHash, block)
	defer s.evHandler("state: ProcessPeerBlock: completed: newBlk[%s]", block)

	if err := s.AddBlock(block); err != nil {
		return err
	}

	s.signalCancelMining()

	return nil
}

// =============================================================================

// swap replaces the chain and unspent set as a pair and reconciles the
// mempool. The caller must hold the write lock.
func (s *State) swap(chain []database.Block, utxos database.UTXOSet) {
	s.chain = chain
	s.utxos = utxos

	for _, tx := range s.mempool.Reconcile(utxos) {
		s.evHandler("state: swap: mempool: dropped tx[%s]", tx.ID)
	}

	latest := chain[len(chain)-1]
	prometheusChainHeight.Set(float64(latest.Index))
	prometheusDifficulty.Set(float64(latest.Difficulty))
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: %s`, string(blockJSON))
}
