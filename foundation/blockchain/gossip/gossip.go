// Package gossip implements the synchronization protocol run over every
// peer connection. It propagates new blocks and transactions and decides
// how to reconcile a chain that diverges from a peer's.
package gossip

import (
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/protocol"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/jellydator/ttlcache/v3"
)

// Default timings used when the config leaves them zero.
const (
	defaultPoolQueryDelay = 500 * time.Millisecond
	defaultQueryAllTTL    = 10 * time.Second
)

// Transport represents the behavior required to deliver messages to peers.
// Messages to a single peer must be delivered in order.
type Transport interface {
	Send(peerID string, msg protocol.Message) error
	Broadcast(msg protocol.Message)
}

// Ledger represents the behavior required from the node's chain state.
type Ledger interface {
	RetrieveLatestBlock() database.Block
	RetrieveChain() []database.Block
	RetrieveMempool() []database.Tx
	ProcessPeerBlock(block database.Block) error
	ReplaceChain(chain []database.Block) error
	UpsertNodeTransaction(tx database.Tx) error
}

// Config represents the configuration required to construct a Syncer.
type Config struct {
	Ledger         Ledger
	Transport      Transport
	PoolQueryDelay time.Duration
	QueryAllTTL    time.Duration
	EvHandler      func(v string, args ...any)
}

// Syncer drives the synchronization protocol for a node.
type Syncer struct {
	ledger         Ledger
	transport      Transport
	poolQueryDelay time.Duration
	evHandler      func(v string, args ...any)

	// queried remembers the unlinked blocks a full chain was already
	// requested for, so a chatty peer does not trigger a flood of requests.
	queried *ttlcache.Cache[string, struct{}]

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	shut   bool
}

// New constructs a Syncer for the ledger and transport.
func New(cfg Config) *Syncer {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	poolQueryDelay := cfg.PoolQueryDelay
	if poolQueryDelay == 0 {
		poolQueryDelay = defaultPoolQueryDelay
	}

	queryAllTTL := cfg.QueryAllTTL
	if queryAllTTL == 0 {
		queryAllTTL = defaultQueryAllTTL
	}

	queried := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](queryAllTTL),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go queried.Start()

	return &Syncer{
		ledger:         cfg.Ledger,
		transport:      cfg.Transport,
		poolQueryDelay: poolQueryDelay,
		evHandler:      ev,
		queried:        queried,
		timers:         make(map[*time.Timer]struct{}),
	}
}

// Shutdown stops any pending timers and the cache cleanup.
func (s *Syncer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shut {
		return
	}
	s.shut = true

	for t := range s.timers {
		t.Stop()
	}
	s.timers = nil

	s.queried.Stop()
}

// =============================================================================

// PeerConnected starts the protocol with a new peer. The peer is asked for
// its latest block right away. After a short delay every peer is asked for
// its mempool.
func (s *Syncer) PeerConnected(peerID string) {
	s.evHandler("gossip: PeerConnected: peer[%s]", peerID)

	if err := s.transport.Send(peerID, protocol.QueryLatest{}); err != nil {
		s.evHandler("gossip: PeerConnected: peer[%s]: QUERY_LATEST: ERROR: %s", peerID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shut {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(s.poolQueryDelay, func() {
		s.mu.Lock()
		delete(s.timers, t)
		shut := s.shut
		s.mu.Unlock()

		if !shut {
			s.transport.Broadcast(protocol.QueryPool{})
		}
	})
	s.timers[t] = struct{}{}
}

// PeerDisconnected is called once a peer is removed from the transport.
func (s *Syncer) PeerDisconnected(peerID string) {
	s.evHandler("gossip: PeerDisconnected: peer[%s]", peerID)
}

// HandleMessage processes a message received from the peer.
func (s *Syncer) HandleMessage(peerID string, msg protocol.Message) {
	s.evHandler("gossip: HandleMessage: peer[%s]: type[%s]", peerID, msg.Type())

	switch m := msg.(type) {
	case protocol.QueryLatest:
		s.reply(peerID, protocol.ResponseChain{Blocks: []database.Block{s.ledger.RetrieveLatestBlock()}})

	case protocol.QueryAll:
		s.reply(peerID, protocol.ResponseChain{Blocks: s.ledger.RetrieveChain()})

	case protocol.QueryPool:
		s.reply(peerID, protocol.ResponsePool{Transactions: s.ledger.RetrieveMempool()})

	case protocol.ResponseChain:
		s.handleChainResponse(peerID, m.Blocks)

	case protocol.ResponsePool:
		s.handlePoolResponse(peerID, m.Transactions)

	default:
		s.evHandler("gossip: HandleMessage: peer[%s]: unknown message %T", peerID, msg)
	}
}

// BroadcastLatest sends the latest block to every peer.
func (s *Syncer) BroadcastLatest() {
	s.transport.Broadcast(protocol.ResponseChain{Blocks: []database.Block{s.ledger.RetrieveLatestBlock()}})
}

// BroadcastTransaction sends the transaction to every peer.
func (s *Syncer) BroadcastTransaction(tx database.Tx) {
	s.transport.Broadcast(protocol.ResponsePool{Transactions: []database.Tx{tx}})
}

// BroadcastQueryLatest asks every peer for its latest block.
func (s *Syncer) BroadcastQueryLatest() {
	s.transport.Broadcast(protocol.QueryLatest{})
}

// =============================================================================

// handleChainResponse reconciles the local chain with blocks received
// from a peer.
func (s *Syncer) handleChainResponse(peerID string, blocks []database.Block) {
	if len(blocks) == 0 {
		s.evHandler("gossip: handleChainResponse: peer[%s]: empty chain received", peerID)
		return
	}

	received := blocks[len(blocks)-1]
	held := s.ledger.RetrieveLatestBlock()

	if received.Index <= held.Index {
		s.evHandler("gossip: handleChainResponse: peer[%s]: not behind: held[%d]: received[%d]", peerID, held.Index, received.Index)
		return
	}

	s.evHandler("gossip: handleChainResponse: peer[%s]: possibly behind: held[%d]: received[%d]", peerID, held.Index, received.Index)

	switch {
	case held.Hash == received.PreviousHash:
		if err := s.ledger.ProcessPeerBlock(received); err != nil {
			s.evHandler("gossip: handleChainResponse: peer[%s]: append: blk[%s]: ERROR: %s", peerID, received, err)
			return
		}
		s.BroadcastLatest()

	case len(blocks) == 1:
		key := peerID + ":" + received.Hash
		if s.queried.Has(key) {
			s.evHandler("gossip: handleChainResponse: peer[%s]: full chain already requested for blk[%s]", peerID, received)
			return
		}
		s.queried.Set(key, struct{}{}, ttlcache.DefaultTTL)

		s.reply(peerID, protocol.QueryAll{})

	default:
		if err := s.ledger.ReplaceChain(blocks); err != nil {
			if !errors.Is(err, state.ErrChainNotLonger) {
				s.evHandler("gossip: handleChainResponse: peer[%s]: replace: ERROR: %s", peerID, err)
			}
			return
		}
		s.BroadcastLatest()
	}
}

// handlePoolResponse adds the transactions to the mempool. Transactions
// that fail validation or are already known are skipped.
func (s *Syncer) handlePoolResponse(peerID string, txs []database.Tx) {
	for _, tx := range txs {
		if err := s.ledger.UpsertNodeTransaction(tx); err != nil {
			s.evHandler("gossip: handlePoolResponse: peer[%s]: skip tx[%s]: %s", peerID, tx.ID, err)
		}
	}
}

// reply sends the message back to the peer, logging any failure.
func (s *Syncer) reply(peerID string, msg protocol.Message) {
	if err := s.transport.Send(peerID, msg); err != nil {
		s.evHandler("gossip: reply: peer[%s]: %s: ERROR: %s", peerID, msg.Type(), err)
	}
}
