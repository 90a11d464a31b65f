// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"go.uber.org/zap"
)

// Chain downloads the node's chain, validates it and replays the unspent
// outputs locally.
func Chain(log *zap.SugaredLogger, url string) error {
	chain, utxos, err := replay(log, url)
	if err != nil {
		return err
	}

	latest := chain[len(chain)-1]

	fmt.Printf("Blocks: %d\n", len(chain))
	fmt.Printf("Latest: %s\n", latest)
	fmt.Printf("Difficulty: %d\n", latest.Difficulty)
	fmt.Printf("UTXOs: %d\n", len(utxos))

	return nil
}

// replay fetches the chain from the node and derives its unspent set.
func replay(log *zap.SugaredLogger, url string) ([]database.Block, database.UTXOSet, error) {
	log.Infow("admin", "status", "fetching chain", "url", url)

	resp, err := http.Get(fmt.Sprintf("%s/v1/blocks", url))
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var chain []database.Block
	if err := json.NewDecoder(resp.Body).Decode(&chain); err != nil {
		return nil, nil, fmt.Errorf("decoding chain: %w", err)
	}

	log.Infow("admin", "status", "validating chain", "blocks", len(chain))

	utxos, err := database.ValidateChain(chain)
	if err != nil {
		return nil, nil, err
	}

	return chain, utxos, nil
}
