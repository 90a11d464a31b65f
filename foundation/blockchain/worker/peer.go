package worker

import (
	"context"
	"time"
)

// dialTimeout bounds how long a single reconnect attempt may take.
const dialTimeout = 5 * time.Second

// peerOperations handles keeping in touch with the known peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation reconnects to any known peer we lost the connection
// to, then asks everyone for their latest block.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	if w.network != nil {
		for _, peer := range w.state.RetrieveKnownPeers() {
			url := peer.URL()
			if w.network.Connected(url) {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
			_, err := w.network.Connect(ctx, url)
			cancel()

			if err != nil {
				w.evHandler("worker: runPeersOperation: connect: %s: ERROR: %s", peer.Host, err)
			}
		}
	}

	w.syncer.BroadcastQueryLatest()
}
