// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"audioreact/internal/analysis"
	"audioreact/internal/log"
)

const (
	wsQueueSize    = 256
	wsWriteTimeout = time.Second
)

// wsFrame is the JSON message render clients receive.
type wsFrame struct {
	Seq    uint64    `json:"seq"`
	Volume float64   `json:"volume"`
	Bands  []float64 `json:"bands"`
}

// WebSocketTransport serves /ws and broadcasts snapshots to every connected
// client as JSON. Send never blocks: frames are dropped when the queue is
// full or arrive sooner than the minimum interval after the last one.
type WebSocketTransport struct {
	addr        string
	minInterval time.Duration
	logger      *log.Logger

	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
	listener  net.Listener

	sendMu   sync.Mutex // Guards lastSent and closed, and orders Send before Close.
	lastSent time.Time
	closed   bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketTransport creates a transport for addr ("host:port"). Nothing
// listens until Start.
func NewWebSocketTransport(addr string, minInterval time.Duration) *WebSocketTransport {
	return &WebSocketTransport{
		addr:        addr,
		minInterval: minInterval,
		logger:      log.New("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Render clients are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan any, wsQueueSize),
	}
}

// Start binds the listener and begins serving and broadcasting.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return err
	}
	wst.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		wst.logger.Infof("Serving WebSocket clients on ws://%s/ws", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.logger.Errorf("Server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (wst *WebSocketTransport) Addr() net.Addr {
	if wst.listener == nil {
		return nil
	}
	return wst.listener.Addr()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.logger.Warnf("Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = struct{}{}
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.logger.Infof("Client connected, total: %d", total)

	// Clients only listen; the first read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		wst.logger.Infof("Client disconnected, total: %d", total)
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for data := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.WriteJSON(data); err != nil {
				wst.logger.Warnf("Error sending to client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Send queues data for broadcast. analysis.Snapshot values are reduced to
// the seq, volume and bands clients render from.
func (wst *WebSocketTransport) Send(data any) error {
	now := time.Now()
	wst.sendMu.Lock()
	defer wst.sendMu.Unlock()

	if wst.closed {
		return net.ErrClosed
	}
	if wst.minInterval > 0 && now.Sub(wst.lastSent) < wst.minInterval {
		return nil
	}
	wst.lastSent = now

	if snap, ok := data.(analysis.Snapshot); ok {
		data = wsFrame{Seq: snap.Seq, Volume: snap.Volume, Bands: snap.Bands}
	}

	select {
	case wst.broadcast <- data:
	default:
		// Queue full, drop the frame.
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.logger.Infof("Closing server")
		if wst.server != nil {
			err = wst.server.Close()
		}

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		clear(wst.clients)
		wst.clientsMu.Unlock()

		wst.sendMu.Lock()
		wst.closed = true
		close(wst.broadcast)
		wst.sendMu.Unlock()
		wst.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
