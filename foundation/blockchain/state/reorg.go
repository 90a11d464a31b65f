package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

// ErrChainNotLonger is returned when a candidate chain is not strictly
// longer than the local chain.
var ErrChainNotLonger = errors.New("candidate chain is not longer than the local chain")

// ReplaceChain replaces the local chain with the candidate when the
// candidate is strictly longer and fully valid, including a replay of the
// unspent set from genesis. On any failure the local chain is left
// untouched. Any mining operation in progress is abandoned on success.
func (s *State) ReplaceChain(candidate []database.Block) error {
	s.evHandler("state: ReplaceChain: started: candidate length[%d]", len(candidate))
	defer s.evHandler("state: ReplaceChain: completed")

	if len(candidate) <= s.RetrieveChainLength() {
		return ErrChainNotLonger
	}

	// Validation replays the whole candidate and does not depend on the
	// local chain, so it runs without holding the lock.
	utxos, err := database.ValidateChain(candidate)
	if err != nil {
		prometheusRejected.WithLabelValues("chain").Inc()
		return err
	}

	chain := make([]database.Block, len(candidate))
	copy(chain, candidate)

	s.mu.Lock()
	{
		// The local chain may have grown while the candidate was validated.
		if len(chain) <= len(s.chain) {
			s.mu.Unlock()
			return fmt.Errorf("after validation: %w", ErrChainNotLonger)
		}

		s.evHandler("state: ReplaceChain: replace: oldTip[%s]: newTip[%s]", s.chain[len(s.chain)-1], chain[len(chain)-1])
		s.swap(chain, utxos)
	}
	s.mu.Unlock()

	prometheusChainsReplaced.Inc()
	s.signalCancelMining()

	return nil
}
