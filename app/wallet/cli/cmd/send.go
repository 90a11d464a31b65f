package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount uint64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send value to an address",
	Run: func(cmd *cobra.Command, args []string) {
		w, err := wallet.Load(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		tx, err := sendWithDetails(w)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(tx.ID)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address to send to.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
}

// sendWithDetails builds and signs the transaction locally against the
// node's view of our unspent outputs and mempool, then submits it.
func sendWithDetails(w *wallet.Wallet) (database.Tx, error) {
	var utxos database.UTXOSet
	if err := get(fmt.Sprintf("%s/v1/utxos/%s", url, w.PublicAddress()), &utxos); err != nil {
		return database.Tx{}, fmt.Errorf("retrieving utxos: %w", err)
	}

	var pending []database.Tx
	if err := get(fmt.Sprintf("%s/v1/tx/uncommitted/list", url), &pending); err != nil {
		return database.Tx{}, fmt.Errorf("retrieving mempool: %w", err)
	}

	tx, err := w.CreateTransaction(to, amount, utxos, pending)
	if err != nil {
		return database.Tx{}, err
	}

	if err := post(fmt.Sprintf("%s/v1/tx/submit", url), tx); err != nil {
		return database.Tx{}, fmt.Errorf("submitting tx: %w", err)
	}

	return tx, nil
}
