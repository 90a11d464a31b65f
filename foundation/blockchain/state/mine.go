package state

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// ErrNoWallet is returned when the node is asked to mine or send value
// without a wallet configured.
var ErrNoWallet = errors.New("node has no wallet configured")

// =============================================================================

// MineNewBlock attempts to create a new block paying the mining reward to
// the node's wallet and holding the transactions from the mempool that are
// still valid against the current unspent set.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	if s.wallet == nil {
		return database.Block{}, ErrNoWallet
	}

	s.mu.RLock()
	prev := s.chain[len(s.chain)-1]
	difficulty := NextDifficulty(s.chain)
	utxos := s.utxos
	s.mu.RUnlock()

	s.evHandler("state: MineNewBlock: MINING: select transactions: mempool[%d]", s.mempool.Count())

	txs := []database.Tx{database.NewCoinbaseTx(s.wallet.PublicAddress(), prev.Index+1)}
	txs = append(txs, s.selectTransactions(utxos)...)

	return s.mineBlock(ctx, prev, difficulty, txs)
}

// MineNextBlock attempts to create a new block holding the specified
// transactions. The caller is responsible for putting the coinbase
// transaction first.
func (s *State) MineNextBlock(ctx context.Context, txs []database.Tx) (database.Block, error) {
	s.mu.RLock()
	prev := s.chain[len(s.chain)-1]
	difficulty := NextDifficulty(s.chain)
	s.mu.RUnlock()

	return s.mineBlock(ctx, prev, difficulty, txs)
}

// =============================================================================

// mineBlock performs the POW search on top of the specified block and
// appends the result to the chain. The search runs without holding the
// lock, so the chain may have moved on by the time a solution is found. In
// that case the block fails validation and is discarded.
func (s *State) mineBlock(ctx context.Context, prev database.Block, difficulty uint, txs []database.Tx) (database.Block, error) {
	s.evHandler("state: mineBlock: MINING: perform POW: prevBlk[%s]: difficulty[%d]: txs[%d]", prev, difficulty, len(txs))

	start := time.Now()

	block, err := database.POW(ctx, database.POWArgs{
		PrevBlock:    prev,
		Difficulty:   difficulty,
		Transactions: txs,
		EvHandler:    s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: mineBlock: MINING: duration[%v]", time.Since(start))

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	if err := s.AddBlock(block); err != nil {
		return database.Block{}, err
	}

	prometheusBlocksMined.Inc()

	return block, nil
}

// selectTransactions returns the mempool transactions that are valid
// against the unspent set and don't spend the same output twice.
func (s *State) selectTransactions(utxos database.UTXOSet) []database.Tx {
	var txs []database.Tx
	spent := make(map[database.OutPoint]struct{})

next:
	for _, tx := range s.mempool.Copy() {
		if err := database.ValidateTx(tx, utxos); err != nil {
			s.evHandler("state: selectTransactions: skip tx[%s]: %s", tx.ID, err)
			continue
		}

		for _, in := range tx.TxIns {
			if _, exists := spent[database.OutPoint{TxOutID: in.TxOutID, TxOutIndex: in.TxOutIndex}]; exists {
				continue next
			}
		}

		for _, in := range tx.TxIns {
			spent[database.OutPoint{TxOutID: in.TxOutID, TxOutIndex: in.TxOutIndex}] = struct{}{}
		}
		txs = append(txs, tx)
	}

	return txs
}
