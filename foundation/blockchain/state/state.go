// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"sync"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/mempool"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and transaction sharing.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
	SignalShareTx(tx database.Tx)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Wallet     *wallet.Wallet
	Host       string
	KnownPeers *peer.PeerSet
	EvHandler  EventHandler
}

// State manages the chain and the unspent set that goes with it. The two
// are only ever replaced together under the mutex.
type State struct {
	mu sync.RWMutex

	wallet     *wallet.Wallet
	host       string
	evHandler  EventHandler
	knownPeers *peer.PeerSet
	mempool    *mempool.Mempool

	chain []database.Block
	utxos database.UTXOSet

	worker Worker
}

// New constructs a new blockchain holding only the genesis block.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	state := State{
		wallet:     cfg.Wallet,
		host:       cfg.Host,
		evHandler:  ev,
		knownPeers: knownPeers,
		mempool:    mempool.New(),
		chain:      []database.Block{database.Genesis()},
		utxos:      database.UTXOSet{},
	}

	initPrometheusMetrics()
	prometheusChainHeight.Set(0)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// SetWorker registers the worker that runs the background operations.
func (s *State) SetWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.worker = w
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if w := s.retrieveWorker(); w != nil {
		w.Shutdown()
	}

	return nil
}

// SignalMining asks the worker to start a mining operation.
func (s *State) SignalMining() {
	s.signalStartMining()
}

// =============================================================================

// retrieveWorker returns the registered worker or nil.
func (s *State) retrieveWorker() Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.worker
}

// signalStartMining asks the worker to start a mining operation.
func (s *State) signalStartMining() {
	if w := s.retrieveWorker(); w != nil {
		w.SignalStartMining()
	}
}

// signalCancelMining asks the worker to abandon the current mining operation.
func (s *State) signalCancelMining() {
	if w := s.retrieveWorker(); w != nil {
		w.SignalCancelMining()
	}
}

// signalShareTx asks the worker to share the transaction with peers.
func (s *State) signalShareTx(tx database.Tx) {
	if w := s.retrieveWorker(); w != nil {
		w.SignalShareTx(tx)
	}
}
