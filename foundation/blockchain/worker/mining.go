package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
)

// miningOperations waits for mining signals and runs one POW search per
// signal.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
				w.rescheduleMining()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines a block holding the coinbase and the valid
// transactions from the mempool, then announces it to the peers. A block
// accepted from a peer while the search runs abandons it.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// A cancel left over from a search that already ended must not stop
	// this one.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: stale cancel dropped")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := w.watchCancel(ctx, cancel)

	start := time.Now()
	block, err := w.state.MineNewBlock(ctx)
	w.evHandler("worker: runMiningOperation: MINING: duration[%v]", time.Since(start))

	cancel()
	<-done

	switch {
	case err == nil:
		w.evHandler("worker: runMiningOperation: MINING: SOLVED: blk[%s]: broadcast", block)
		w.syncer.BroadcastLatest()

	case errors.Is(err, state.ErrNoWallet):
		w.evHandler("worker: runMiningOperation: MINING: WARNING: no wallet configured")

	case ctx.Err() != nil:
		w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")

	default:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
	}
}

// watchCancel cancels the search when a cancel signal or shutdown arrives.
// The returned channel is closed once the watcher has exited.
func (w *Worker) watchCancel(ctx context.Context, cancel context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		select {
		case <-w.cancelMining:
			w.evHandler("worker: watchCancel: MINING: CANCEL: requested")
			cancel()
		case <-w.shut:
			cancel()
		case <-ctx.Done():
		}
	}()

	return done
}

// rescheduleMining keeps the miner busy while auto mining is on or while
// transactions are still waiting in the mempool.
func (w *Worker) rescheduleMining() {
	if w.isShutdown() {
		return
	}

	pending := w.state.QueryMempoolLength()
	if w.autoMine || pending > 0 {
		w.evHandler("worker: rescheduleMining: MINING: signal next block: mempool[%d]", pending)
		w.SignalStartMining()
	}
}
