package database

// Values of the genesis block every node starts from. The block is never
// mined or validated, chains are only checked for an exact match.
const (
	genesisHash      = "91a73664bc84c0baa1fc75ea6e4aa6d1d20c5df664c724e3159aefc2e1186627"
	genesisTimestamp = 1465154705
	genesisTxID      = "816534932c2b7154836da6afc367695e6337db8a921823784c14378abed4f7d7"
)

// Genesis returns the genesis block. The genesis transaction carries no
// outputs, so nothing in it is spendable.
func Genesis() Block {
	return Block{
		Index:        0,
		Hash:         genesisHash,
		PreviousHash: "",
		Timestamp:    genesisTimestamp,
		Transactions: []Tx{
			{
				ID:     genesisTxID,
				TxIns:  []TxIn{},
				TxOuts: []TxOut{},
			},
		},
		Difficulty: 0,
		Nonce:      0,
	}
}

// IsGenesis reports whether the block is the genesis block.
func IsGenesis(b Block) bool {
	return b.Equal(Genesis())
}
