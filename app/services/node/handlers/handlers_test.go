package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/utxochain/app/services/node/handlers"
	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/blockchain/database"
	"github.com/ardanlabs/utxochain/foundation/blockchain/gossip"
	"github.com/ardanlabs/utxochain/foundation/blockchain/p2p"
	"github.com/ardanlabs/utxochain/foundation/blockchain/state"
	"github.com/ardanlabs/utxochain/foundation/blockchain/wallet"
	"github.com/ardanlabs/utxochain/foundation/events"
	"github.com/ardanlabs/utxochain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_PublicAPI(t *testing.T) {
	mux, st := newMux(t)

	t.Log("Given the need to drive the node over HTTP.")
	{
		w := call(mux, http.MethodPost, "/v1/blocks/mine", "")
		if w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould be able to mine a block: %d %s", failed, w.Code, w.Body.String())
		}
		var block database.Block
		if err := json.Unmarshal(w.Body.Bytes(), &block); err != nil || block.Index != 1 {
			t.Fatalf("\t%s\tShould get the mined block back: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine a block.", success)

		w = call(mux, http.MethodGet, "/v1/blocks", "")
		var chain []database.Block
		if err := json.Unmarshal(w.Body.Bytes(), &chain); err != nil || len(chain) != 2 {
			t.Fatalf("\t%s\tShould list the whole chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould list the whole chain.", success)

		w = call(mux, http.MethodGet, "/v1/blocks/"+block.Hash, "")
		if w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould find the block by hash: %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould find the block by hash.", success)

		w = call(mux, http.MethodGet, "/v1/blocks/missing", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("\t%s\tShould return 404 for an unknown block: %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould return 404 for an unknown block.", success)

		w = call(mux, http.MethodGet, "/v1/balance", "")
		var bal struct {
			Balance uint64 `json:"balance"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &bal); err != nil || bal.Balance != database.BlockReward {
			t.Fatalf("\t%s\tShould report the reward as the node's balance: %s", failed, w.Body.String())
		}
		t.Logf("\t%s\tShould report the reward as the node's balance.", success)

		pk, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
		}
		to := wallet.New(pk).PublicAddress()

		w = call(mux, http.MethodPost, "/v1/tx/send", `{"address":"`+to+`","amount":20}`)
		if w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould be able to send value: %d %s", failed, w.Code, w.Body.String())
		}
		if st.QueryMempoolLength() != 1 {
			t.Fatalf("\t%s\tShould put the transaction in the mempool.", failed)
		}
		t.Logf("\t%s\tShould be able to send value.", success)

		w = call(mux, http.MethodPost, "/v1/tx/send", `{"address":"nope","amount":20}`)
		var er errs.Response
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || w.Code != http.StatusBadRequest || er.Fields["address"] == "" {
			t.Fatalf("\t%s\tShould reject a bad address with field errors: %d %s", failed, w.Code, w.Body.String())
		}
		t.Logf("\t%s\tShould reject a bad address with field errors.", success)

		w = call(mux, http.MethodPost, "/v1/tx/submit", `{"id":"x","txIns":[],"txOuts":[]}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject an invalid transaction: %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould reject an invalid transaction.", success)
	}
}

// =============================================================================

func newMux(t *testing.T) (http.Handler, *state.State) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %v", err)
	}

	st, err := state.New(state.Config{Wallet: wallet.New(pk)})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %v", err)
	}

	hub := p2p.New(p2p.Config{})
	syncer := gossip.New(gossip.Config{Ledger: st, Transport: hub})
	t.Cleanup(func() {
		syncer.Shutdown()
		hub.Shutdown()
	})

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		NS:       ns,
		Syncer:   syncer,
		Hub:      hub,
		Evts:     events.New(),
	})

	return mux, st
}

func call(mux http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}
