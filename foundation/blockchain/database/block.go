package database

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/bits"
	"strconv"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/signature"
)

// Block represents a group of transactions batched together and linked to
// the block before it.
type Block struct {
	Index        uint64 `json:"index"`        // Height of the block in the chain.
	Hash         string `json:"hash"`         // Hash of all the other fields.
	PreviousHash string `json:"previousHash"` // Hash of the previous block in the chain.
	Timestamp    int64  `json:"timestamp"`    // Unix seconds the block was mined.
	Transactions []Tx   `json:"data"`         // First transaction is always the coinbase.
	Difficulty   uint   `json:"difficulty"`   // Leading zero bits required in the hash.
	Nonce        uint64 `json:"nonce"`        // Value found by the POW search.
}

// ComputeHash calculates the hash of the block from its fields. The stored
// hash field is not part of the calculation.
func (b Block) ComputeHash() string {
	return ComputeHash(b.Index, b.PreviousHash, b.Timestamp, b.Transactions, b.Difficulty, b.Nonce)
}

// Equal reports whether the two blocks hold the same field values.
func (b Block) Equal(other Block) bool {
	d1, err1 := json.Marshal(b)
	d2, err2 := json.Marshal(other)
	if err1 != nil || err2 != nil {
		return false
	}

	return string(d1) == string(d2)
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%d:%s", b.Index, b.Hash)
}

// =============================================================================

// ComputeHash calculates the hash for the set of block fields.
func ComputeHash(index uint64, previousHash string, timestamp int64, txs []Tx, difficulty uint, nonce uint64) string {
	return signature.Hash(hashPrefix(index, previousHash, timestamp, txs, difficulty) + strconv.FormatUint(nonce, 10))
}

// hashPrefix returns everything in front of the nonce in the hashed string.
// The POW loop only appends the nonce on every attempt.
func hashPrefix(index uint64, previousHash string, timestamp int64, txs []Tx, difficulty uint) string {
	if txs == nil {
		txs = []Tx{}
	}

	data, err := json.Marshal(txs)
	if err != nil {
		data = []byte("[]")
	}

	return strconv.FormatUint(index, 10) +
		previousHash +
		strconv.FormatInt(timestamp, 10) +
		string(data) +
		strconv.FormatUint(uint64(difficulty), 10)
}

// MeetsDifficulty reports whether the binary form of the hex-encoded hash
// starts with the specified number of zero bits.
func MeetsDifficulty(hash string, difficulty uint) bool {
	if difficulty == 0 {
		return true
	}

	data, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	var zeros uint
	for _, b := range data {
		if b != 0 {
			zeros += uint(bits.LeadingZeros8(b))
			break
		}
		zeros += 8

		if zeros >= difficulty {
			break
		}
	}

	return zeros >= difficulty
}

// =============================================================================

// ValidateNextBlock checks the candidate extends the previous block and its
// transactions replay cleanly against the unspent set. The unspent set that
// results from adding the block is returned.
func ValidateNextBlock(candidate Block, previous Block, utxos UTXOSet) (UTXOSet, error) {
	if candidate.Index != previous.Index+1 {
		return nil, fmt.Errorf("%w: blk[%d]: index should be %d", ErrInvalidBlock, candidate.Index, previous.Index+1)
	}

	if candidate.PreviousHash != previous.Hash {
		return nil, fmt.Errorf("%w: blk[%d]: previous hash %s does not match parent %s", ErrInvalidBlock, candidate.Index, candidate.PreviousHash, previous.Hash)
	}

	if hash := candidate.ComputeHash(); hash != candidate.Hash {
		return nil, fmt.Errorf("%w: blk[%d]: hash %s should be %s", ErrInvalidBlock, candidate.Index, candidate.Hash, hash)
	}

	if !MeetsDifficulty(candidate.Hash, candidate.Difficulty) {
		return nil, fmt.Errorf("%w: blk[%d]: hash %s does not meet difficulty %d", ErrInvalidBlock, candidate.Index, candidate.Hash, candidate.Difficulty)
	}

	next, err := DeriveNext(utxos, candidate.Transactions, candidate.Index)
	if err != nil {
		return nil, fmt.Errorf("blk[%d]: %w", candidate.Index, err)
	}

	return next, nil
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	PrevBlock    Block
	Timestamp    int64 // Zero means use the current time.
	Difficulty   uint
	Transactions []Tx
	EvHandler    func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The search starts at nonce zero and
// runs until a solution is found or the context is cancelled.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	timestamp := args.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().UTC().Unix()
	}

	nb := Block{
		Index:        args.PrevBlock.Index + 1,
		PreviousHash: args.PrevBlock.Hash,
		Timestamp:    timestamp,
		Transactions: args.Transactions,
		Difficulty:   args.Difficulty,
	}

	ev("database: POW: MINING: started: blk[%d]: difficulty[%d]", nb.Index, nb.Difficulty)
	defer ev("database: POW: MINING: completed: blk[%d]", nb.Index)

	for _, tx := range nb.Transactions {
		ev("database: POW: MINING: tx[%s]", tx)
	}

	prefix := hashPrefix(nb.Index, nb.PreviousHash, nb.Timestamp, nb.Transactions, nb.Difficulty)

	for nonce := uint64(0); ; nonce++ {
		if nonce%1024 == 0 && ctx.Err() != nil {
			ev("database: POW: MINING: CANCELLED: attempts[%d]", nonce)
			return Block{}, ctx.Err()
		}

		if nonce > 0 && nonce%1_000_000 == 0 {
			ev("database: POW: MINING: attempts[%d]", nonce)
		}

		hash := signature.Hash(prefix + strconv.FormatUint(nonce, 10))
		if !MeetsDifficulty(hash, nb.Difficulty) {
			continue
		}

		nb.Nonce = nonce
		nb.Hash = hash

		ev("database: POW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", nb.PreviousHash, hash, nonce+1)

		return nb, nil
	}
}
