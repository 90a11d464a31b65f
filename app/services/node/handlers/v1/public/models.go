package public

import (
	"github.com/ardanlabs/utxochain/business/sys/validate"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
)

type sendTx struct {
	Address string `json:"address" validate:"required,address"`
	Amount  uint64 `json:"amount" validate:"required,gt=0"`
}

// Validate checks the data in the model is considered clean.
func (st sendTx) Validate() error {
	return validate.Check(st)
}

type addPeer struct {
	Peer string `json:"peer" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (ap addPeer) Validate() error {
	return validate.Check(ap)
}

type balance struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Balance uint64 `json:"balance"`
}

type balances struct {
	LatestBlock string    `json:"latestBlock"`
	Uncommitted int       `json:"uncommitted"`
	Balances    []balance `json:"balances"`
}

type txInfo struct {
	Tx         database.Tx `json:"tx"`
	BlockHash  string      `json:"blockHash"`
	BlockIndex uint64      `json:"blockIndex"`
}

type peerInfo struct {
	ID       string `json:"id"`
	Remote   string `json:"remote"`
	Outbound bool   `json:"outbound"`
}

type peers struct {
	Known     []string   `json:"known"`
	Connected []peerInfo `json:"connected"`
}

type status struct {
	Status string `json:"status"`
}
