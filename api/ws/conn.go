package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 64
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Packet is the envelope of every frame in both directions.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client is one connected editor.
type client struct {
	accountID int64
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	seq       atomic.Uint64
	closeOnce sync.Once
	logger    *zap.Logger
}

func newClient(accountID int64, conn *websocket.Conn, logger *zap.Logger) *client {
	cl := &client{
		accountID: accountID,
		conn:      conn,
		send:      make(chan []byte, sendChanBuf),
		done:      make(chan struct{}),
		logger:    logger,
	}
	go cl.writePump()
	return cl
}

// writePump drains send and pings the peer so dead connections are noticed.
func (cl *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cl.conn.Close()
	for {
		select {
		case data := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cl.logger.Warn("ws write error", zap.Int64("account_id", cl.accountID), zap.Error(err))
				cl.close()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.close()
				return
			}
		case <-cl.done:
			_ = cl.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// push queues a packet without blocking; a full buffer drops it.
func (cl *client) push(typ string, payload json.RawMessage) {
	data, err := json.Marshal(&Packet{Seq: cl.seq.Add(1), Type: typ, Payload: payload})
	if err != nil {
		return
	}
	select {
	case cl.send <- data:
	case <-cl.done:
	default:
		cl.logger.Warn("ws send buffer full, dropping packet",
			zap.Int64("account_id", cl.accountID), zap.String("type", typ))
	}
}

func (cl *client) close() {
	cl.closeOnce.Do(func() { close(cl.done) })
}

func (cl *client) setReadDeadline() {
	_ = cl.conn.SetReadDeadline(time.Now().Add(readDeadline))
}
