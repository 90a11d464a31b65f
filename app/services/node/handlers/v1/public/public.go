// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/gossip"
	"github.com/ardanlabs/utxochain/foundation/blockchain/p2p"
	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
	"github.com/ardanlabs/utxochain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	State  *state.State
	NS     *nameservice.NameService
	Syncer *gossip.Syncer
	Hub    *p2p.Hub
	WS     websocket.Upgrader
	Evts   *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Subscribe()
	defer h.Evts.Release(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Blocks returns the full chain.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveChain(), http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.QueryBlockByHash(web.Param(r, "hash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// Transaction returns the committed transaction with the specified id.
func (h Handlers) Transaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tx, block, err := h.State.QueryTransaction(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	info := txInfo{
		Tx:         tx,
		BlockHash:  block.Hash,
		BlockIndex: block.Index,
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// UTXOs returns the full set of unspent outputs.
func (h Handlers) UTXOs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveUTXOs(), http.StatusOK)
}

// UTXOsByAddress returns the unspent outputs owned by the address.
func (h Handlers) UTXOsByAddress(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")
	return web.Respond(ctx, w, h.State.QueryUTXOsByAddress(address), http.StatusOK)
}

// MyUTXOs returns the unspent outputs owned by the node's wallet.
func (h Handlers) MyUTXOs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := h.State.RetrieveAddress()
	if address == "" {
		return errs.NewTrusted(state.ErrNoWallet, http.StatusConflict)
	}

	return web.Respond(ctx, w, h.State.QueryUTXOsByAddress(address), http.StatusOK)
}

// Balance returns the balance for the specified address, or for the node's
// wallet when no address is given.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")
	if address == "" {
		address = h.State.RetrieveAddress()
		if address == "" {
			return errs.NewTrusted(state.ErrNoWallet, http.StatusConflict)
		}
	}

	bal := balance{
		Address: address,
		Name:    h.NS.Lookup(address),
		Balance: h.State.QueryBalance(address),
	}

	return web.Respond(ctx, w, bal, http.StatusOK)
}

// Balances returns the current balance of every address holding value.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	all := h.State.QueryBalances()

	bals := make([]balance, 0, len(all))
	for address, amount := range all {
		bals = append(bals, balance{
			Address: address,
			Name:    h.NS.Lookup(address),
			Balance: amount,
		})
	}
	sort.Slice(bals, func(i, j int) bool { return bals[i].Address < bals[j].Address })

	resp := balances{
		LatestBlock: h.State.RetrieveLatestBlock().Hash,
		Uncommitted: h.State.QueryMempoolLength(),
		Balances:    bals,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Address returns the address of the node's wallet.
func (h Handlers) Address(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := h.State.RetrieveAddress()
	if address == "" {
		return errs.NewTrusted(state.ErrNoWallet, http.StatusConflict)
	}

	resp := struct {
		Address string `json:"address"`
	}{
		Address: address,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveMempool(), http.StatusOK)
}

// SendTransaction uses the node's wallet to pay an address.
func (h Handlers) SendTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req sendTx
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("send tran", "traceid", web.GetTraceID(ctx), "to", req.Address, "amount", req.Amount)

	tx, err := h.State.SendTransaction(req.Address, req.Amount)
	if err != nil {
		if errors.Is(err, state.ErrNoWallet) {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, tx, http.StatusOK)
}

// SubmitWalletTransaction adds a signed transaction from a wallet to the
// mempool.
func (h Handlers) SubmitWalletTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var tx database.Tx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("add user tran", "traceid", web.GetTraceID(ctx), "tx", tx)

	if err := h.State.SubmitWalletTransaction(tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, status{Status: "transaction added to mempool"}, http.StatusOK)
}

// SignalMining asks the worker to start a mining operation.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.RetrieveAddress() == "" {
		return errs.NewTrusted(state.ErrNoWallet, http.StatusConflict)
	}

	h.State.SignalMining()

	return web.Respond(ctx, w, status{Status: "mining signalled"}, http.StatusAccepted)
}

// MineBlock mines a block holding the coinbase and the mempool
// transactions and responds once it's on the chain.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, err := h.State.MineNewBlock(ctx)
	if err != nil {
		return h.mineError(err)
	}

	h.Syncer.BroadcastLatest()

	return web.Respond(ctx, w, block, http.StatusOK)
}

// MineRawBlock mines a block holding exactly the posted transactions. The
// caller is responsible for putting the coinbase transaction first.
func (h Handlers) MineRawBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var txs []database.Tx
	if err := web.Decode(r, &txs); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, err := h.State.MineNextBlock(ctx, txs)
	if err != nil {
		return h.mineError(err)
	}

	h.Syncer.BroadcastLatest()

	return web.Respond(ctx, w, block, http.StatusOK)
}

// Peers returns the known peers and the live connections.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	known := h.State.RetrieveKnownPeers()

	resp := peers{
		Known:     make([]string, len(known)),
		Connected: []peerInfo{},
	}
	for i, p := range known {
		resp.Known[i] = p.Host
	}
	for _, pi := range h.Hub.Peers() {
		resp.Connected = append(resp.Connected, peerInfo(pi))
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// AddPeer connects to a new peer and remembers it.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req addPeer
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	p := peer.New(req.Peer)

	if _, err := h.Hub.Connect(ctx, p.URL()); err != nil {
		return errs.NewTrusted(fmt.Errorf("connecting to peer: %w", err), http.StatusBadGateway)
	}
	h.State.AddKnownPeer(p)

	return web.Respond(ctx, w, status{Status: "peer added"}, http.StatusOK)
}

// =============================================================================

func (h Handlers) mineError(err error) error {
	switch {
	case errors.Is(err, state.ErrNoWallet):
		return errs.NewTrusted(err, http.StatusConflict)
	case database.IsValidationError(err):
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return err
}
