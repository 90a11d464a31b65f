// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"net/http"

	"github.com/ardanlabs/utxochain/foundation/blockchain/p2p"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Hub   *p2p.Hub
}

// P2P upgrades the connection and serves the peer protocol on it until the
// peer goes away.
func (h Handlers) P2P(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Log.Infow("peer connected", "traceid", web.GetTraceID(ctx), "remoteaddr", r.RemoteAddr)

	if err := h.Hub.Accept(w, r); err != nil {
		h.Log.Infow("peer rejected", "traceid", web.GetTraceID(ctx), "remoteaddr", r.RemoteAddr, "ERROR", err)
		return nil
	}

	return nil
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveStatus(), http.StatusOK)
}
