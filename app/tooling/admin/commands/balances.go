package commands

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Balances returns the current set of balances replayed from the node's
// chain.
func Balances(log *zap.SugaredLogger, url string) error {
	chain, utxos, err := replay(log, url)
	if err != nil {
		return err
	}

	fmt.Printf("LatestBlockHash: %s\n\n", chain[len(chain)-1].Hash)

	bals := make(map[string]uint64)
	for _, u := range utxos {
		bals[u.Address] += u.Amount
	}

	addresses := make([]string, 0, len(bals))
	for address := range bals {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	for _, address := range addresses {
		fmt.Printf("Address: %s  Balance: %d\n", address, bals[address])
	}

	return nil
}
