package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kdanilin/jamroom/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stateConn pushes room snapshots to one view connection. A slow view
// drops frames rather than stalling the session.
type stateConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *stateConn) trySend(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *stateConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// statePool fans one session's state updates out to all view connections.
type statePool struct {
	mu    sync.Mutex
	conns map[*stateConn]struct{}
}

func newStatePool() *statePool {
	return &statePool{conns: make(map[*stateConn]struct{})}
}

func (p *statePool) add(c *stateConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[c] = struct{}{}
}

func (p *statePool) remove(c *stateConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, c)
}

func (p *statePool) broadcast(rec domain.RoomRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("state marshal")
		return
	}
	p.mu.Lock()
	conns := make([]*stateConn, 0, len(p.conns))
	for c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()
	for _, c := range conns {
		if err := c.trySend(b); err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Msg("state frame dropped")
		}
	}
}

func (p *statePool) closeAll() {
	p.mu.Lock()
	conns := make([]*stateConn, 0, len(p.conns))
	for c := range p.conns {
		conns = append(conns, c)
	}
	p.conns = make(map[*stateConn]struct{})
	p.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

func (ctl *Controller) handleStateWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	conn := &stateConn{conn: ws, send: make(chan []byte, 8)}
	ctl.conns.add(conn)
	log.Info().Str("module", "adapters.http").Msg("state ws connected")

	// Send the current view immediately so the page renders without
	// waiting for the next change.
	if sess := ctl.currentSession(); sess != nil {
		if b, err := json.Marshal(sess.Snapshot()); err == nil {
			_ = conn.trySend(b)
		}
	}

	go ctl.writePump(conn)
	go ctl.readPump(conn)
}

func (ctl *Controller) writePump(c *stateConn) {
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("writePump set deadline")
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("writePump write error")
			return
		}
	}
}

// readPump exists to detect the peer going away; views never send.
func (ctl *Controller) readPump(c *stateConn) {
	defer func() {
		ctl.conns.remove(c)
		c.close()
		log.Info().Str("module", "adapters.http").Msg("state ws closed")
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
