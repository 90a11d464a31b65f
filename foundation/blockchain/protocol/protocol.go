// Package protocol defines the messages nodes exchange to keep their
// chains and mempools in sync, and the wire format they travel in.
package protocol

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	jsoniter "github.com/json-iterator/go"
)

// ErrMalformedMessage is returned when a payload can't be decoded into
// one of the known messages.
var ErrMalformedMessage = errors.New("malformed message")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type identifies the kind of message on the wire.
type Type int

// Set of message types.
const (
	TypeQueryLatest Type = iota
	TypeQueryAll
	TypeResponseChain
	TypeQueryPool
	TypeResponsePool
)

// String implements the fmt.Stringer interface for logging.
func (t Type) String() string {
	switch t {
	case TypeQueryLatest:
		return "QUERY_LATEST"
	case TypeQueryAll:
		return "QUERY_ALL"
	case TypeResponseChain:
		return "RESPONSE_CHAIN"
	case TypeQueryPool:
		return "QUERY_POOL"
	case TypeResponsePool:
		return "RESPONSE_POOL"
	}

	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// =============================================================================

// Message is implemented by every message a node can send or receive.
type Message interface {
	Type() Type
}

// QueryLatest asks a peer for its latest block.
type QueryLatest struct{}

// QueryAll asks a peer for its full chain.
type QueryAll struct{}

// ResponseChain carries a sequence of blocks, either the latest block or
// a full chain.
type ResponseChain struct {
	Blocks []database.Block
}

// QueryPool asks a peer for its mempool.
type QueryPool struct{}

// ResponsePool carries transactions for the mempool.
type ResponsePool struct {
	Transactions []database.Tx
}

// Type implements the Message interface.
func (QueryLatest) Type() Type { return TypeQueryLatest }

// Type implements the Message interface.
func (QueryAll) Type() Type { return TypeQueryAll }

// Type implements the Message interface.
func (ResponseChain) Type() Type { return TypeResponseChain }

// Type implements the Message interface.
func (QueryPool) Type() Type { return TypeQueryPool }

// Type implements the Message interface.
func (ResponsePool) Type() Type { return TypeResponsePool }

// =============================================================================

// envelope is the wire shape of every message. The payload is carried as
// a serialized string, not a nested document.
type envelope struct {
	Type Type    `json:"type"`
	Data *string `json:"data"`
}

// Encode converts the message into its wire form.
func Encode(msg Message) ([]byte, error) {
	env := envelope{
		Type: msg.Type(),
	}

	var payload any
	switch m := msg.(type) {
	case ResponseChain:
		payload = nonNil(m.Blocks)
	case ResponsePool:
		payload = nonNil(m.Transactions)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", env.Type, err)
		}
		s := string(data)
		env.Data = &s
	}

	return json.Marshal(env)
}

// Decode converts the wire form back into a message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypeQueryLatest:
		return QueryLatest{}, nil

	case TypeQueryAll:
		return QueryAll{}, nil

	case TypeQueryPool:
		return QueryPool{}, nil

	case TypeResponseChain:
		var blocks []database.Block
		if err := decodePayload(env, &blocks); err != nil {
			return nil, err
		}
		return ResponseChain{Blocks: blocks}, nil

	case TypeResponsePool:
		var txs []database.Tx
		if err := decodePayload(env, &txs); err != nil {
			return nil, err
		}
		return ResponsePool{Transactions: txs}, nil
	}

	return nil, fmt.Errorf("%w: unknown type %d", ErrMalformedMessage, int(env.Type))
}

// =============================================================================

func decodePayload(env envelope, v any) error {
	if env.Data == nil {
		return fmt.Errorf("%w: %s: missing data", ErrMalformedMessage, env.Type)
	}

	if err := json.Unmarshal([]byte(*env.Data), v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedMessage, env.Type, err)
	}

	return nil
}

// nonNil keeps an empty payload encoded as an empty list.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
