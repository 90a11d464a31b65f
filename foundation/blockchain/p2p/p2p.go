// Package p2p provides the websocket transport nodes use to exchange
// protocol messages. Each connection is read by its own goroutine, so
// messages from one peer are handled in the order they arrive.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ardanlabs/utxochain/foundation/blockchain/peer"
	"github.com/ardanlabs/utxochain/foundation/blockchain/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrUnknownPeer is returned when sending to a peer that is not connected.
var ErrUnknownPeer = errors.New("unknown peer")

// ErrShutdown is returned when the hub is no longer accepting connections.
var ErrShutdown = errors.New("hub is shut down")

const defaultWriteTimeout = 10 * time.Second

// HostHeader carries the host a dialing node advertises for itself, so the
// accepting node can tell which known peer an inbound connection belongs to.
const HostHeader = "X-Node-Host"

// Config represents the callbacks and settings for a Hub.
type Config struct {
	OnConnect    func(peerID string)
	OnMessage    func(peerID string, msg protocol.Message)
	OnDisconnect func(peerID string)
	Host         string // Advertised to the peers this hub dials.
	WriteTimeout time.Duration
	EvHandler    func(v string, args ...any)
}

// PeerInfo describes a live connection.
type PeerInfo struct {
	ID       string `json:"id"`
	Remote   string `json:"remote"`
	Outbound bool   `json:"outbound"`
}

// Hub manages the set of live peer connections.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	dialer   websocket.Dialer

	mu    sync.RWMutex
	conns map[string]*conn
	shut  bool

	wg sync.WaitGroup
}

// New constructs a Hub with the specified configuration.
func New(cfg Config) *Hub {
	if cfg.EvHandler == nil {
		cfg.EvHandler = func(v string, args ...any) {}
	}
	if cfg.OnConnect == nil {
		cfg.OnConnect = func(string) {}
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(string, protocol.Message) {}
	}
	if cfg.OnDisconnect == nil {
		cfg.OnDisconnect = func(string) {}
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	return &Hub{
		cfg:      cfg,
		upgrader: websocket.Upgrader{},
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		conns:    make(map[string]*conn),
	}
}

// Accept upgrades the request to a websocket connection and serves the
// peer until the connection closes.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}

	// A peer that advertises its host is recorded under the same url we
	// would dial it on, so Connected covers both directions.
	remote := r.RemoteAddr
	if host := r.Header.Get(HostHeader); host != "" {
		remote = peer.New(host).URL()
	}

	c, err := h.register(ws, remote, false)
	if err != nil {
		ws.Close()
		return err
	}

	h.serve(c)

	return nil
}

// Connect dials the peer at the websocket url and serves it in the
// background. The id assigned to the peer is returned.
func (h *Hub) Connect(ctx context.Context, url string) (string, error) {
	var header http.Header
	if h.cfg.Host != "" {
		header = http.Header{HostHeader: []string{h.cfg.Host}}
	}

	ws, _, err := h.dialer.DialContext(ctx, url, header)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", url, err)
	}

	c, err := h.register(ws, url, true)
	if err != nil {
		ws.Close()
		return "", err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.serve(c)
	}()

	return c.id, nil
}

// Connected reports whether there is a live connection to the remote. An
// inbound connection matches when the peer advertised the same host.
func (h *Hub) Connected(remote string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.conns {
		if c.remote == remote {
			return true
		}
	}

	return false
}

// Send encodes the message and writes it to the specified peer.
func (h *Hub) Send(peerID string, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	c, exists := h.conns[peerID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peerID)
	}

	return h.write(c, data)
}

// Broadcast encodes the message once and writes it to every peer. Write
// failures are logged and the failing connection is closed.
func (h *Hub) Broadcast(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.cfg.EvHandler("p2p: Broadcast: %s: ERROR: %s", msg.Type(), err)
		return
	}

	for _, c := range h.snapshot() {
		if err := h.write(c, data); err != nil {
			h.cfg.EvHandler("p2p: Broadcast: peer[%s]: %s: ERROR: %s", c.id, msg.Type(), err)
		}
	}
}

// Peers returns the live connections sorted by remote.
func (h *Hub) Peers() []PeerInfo {
	conns := h.snapshot()

	peers := make([]PeerInfo, 0, len(conns))
	for _, c := range conns {
		peers = append(peers, PeerInfo{ID: c.id, Remote: c.remote, Outbound: c.outbound})
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Remote < peers[j].Remote })

	return peers
}

// Shutdown closes every connection and waits for the outbound connection
// goroutines to finish.
func (h *Hub) Shutdown() {
	h.cfg.EvHandler("p2p: Shutdown: started")
	defer h.cfg.EvHandler("p2p: Shutdown: completed")

	h.mu.Lock()
	h.shut = true
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	h.wg.Wait()
}

// =============================================================================

// conn represents a single peer connection.
type conn struct {
	id       string
	remote   string
	outbound bool
	ws       *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

// close sends a close frame and closes the underlying connection.
func (c *conn) close() {
	c.once.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()

		c.ws.Close()
	})
}

func (h *Hub) register(ws *websocket.Conn, remote string, outbound bool) (*conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shut {
		return nil, ErrShutdown
	}

	c := conn{
		id:       uuid.NewString(),
		remote:   remote,
		outbound: outbound,
		ws:       ws,
	}
	h.conns[c.id] = &c

	h.cfg.EvHandler("p2p: register: peer[%s]: remote[%s]: outbound[%t]", c.id, remote, outbound)

	return &c, nil
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()

	c.close()
}

func (h *Hub) snapshot() []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}

	return conns
}

// serve runs the protocol for the connection until it closes. Messages
// that can't be decoded are logged and skipped.
func (h *Hub) serve(c *conn) {
	defer func() {
		h.remove(c)
		h.cfg.EvHandler("p2p: serve: peer[%s]: disconnected", c.id)
		h.cfg.OnDisconnect(c.id)
	}()

	h.cfg.OnConnect(c.id)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.cfg.EvHandler("p2p: serve: peer[%s]: read: %s", c.id, err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			h.cfg.EvHandler("p2p: serve: peer[%s]: WARNING: %s", c.id, err)
			continue
		}

		h.cfg.OnMessage(c.id, msg)
	}
}

// write sends the data to the connection. A failed write closes the
// connection, which ends its read loop and removes the peer.
func (h *Hub) write(c *conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		go c.close()
		return err
	}

	return nil
}
