package state

import (
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
)

// SubmitWalletTransaction accepts a signed transaction from a wallet for
// inclusion. Accepted transactions are shared with the peers.
func (s *State) SubmitWalletTransaction(tx database.Tx) error {
	if err := s.upsertMempool(tx); err != nil {
		return err
	}

	s.signalShareTx(tx)
	s.signalStartMining()

	return nil
}

// SendTransaction uses the node's wallet to build a transaction paying
// amount to the address, then submits it like a wallet transaction.
func (s *State) SendTransaction(to string, amount uint64) (database.Tx, error) {
	if s.wallet == nil {
		return database.Tx{}, ErrNoWallet
	}

	tx, err := wallet.CreateTransaction(to, amount, s.wallet.SigningKey(), s.RetrieveUTXOs(), s.mempool.Copy())
	if err != nil {
		return database.Tx{}, err
	}

	if err := s.SubmitWalletTransaction(tx); err != nil {
		return database.Tx{}, err
	}

	return tx, nil
}

// UpsertNodeTransaction accepts a transaction shared by a peer. These
// transactions are not shared again.
func (s *State) UpsertNodeTransaction(tx database.Tx) error {
	return s.upsertMempool(tx)
}

// =============================================================================

// upsertMempool validates the transaction against the current unspent set
// and adds it to the mempool. The read lock is held so the chain can't move
// on between validation and insertion.
func (s *State) upsertMempool(tx database.Tx) error {
	s.mu.RLock()
	_, err := s.mempool.Upsert(tx, s.utxos)
	s.mu.RUnlock()

	if err != nil {
		prometheusRejected.WithLabelValues("tx").Inc()
		return err
	}

	s.evHandler("state: upsertMempool: added tx[%s]", tx)
	prometheusMempoolAccepted.Inc()

	return nil
}
