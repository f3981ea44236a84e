/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. The engine only ever calls Send and
// Close, both of which return immediately.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan Envelope
	limiter *rate.Limiter
	log     zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(cfg *Config, conn *websocket.Conn, log zerolog.Logger) *Client {
	id := uuid.NewString()

	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan Envelope, sendQueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.rateBurst),
		log:     log.With().Str("conn", id).Logger(),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Send(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump(ctx context.Context, e *Engine, lim limits, maxMessageSize int64) {
	defer func() {
		e.Disconnect(c.id)
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Info().Err(err).Msg("CONNS: Read failed")
			}
			return
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		cmd, err := decodeCommand(data, lim)
		if err != nil {
			c.log.Info().Err(err).Msg("CONNS: Rejected frame")
			if !c.Send(Envelope{Type: EvtError, ID: cmd.ID, Error: err.Error()}) {
				return
			}
			continue
		}

		e.Submit(c.id, cmd)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.log.Info().Err(err).Msg("CONNS: Write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func serveWS(cfg *Config, e *Engine, log zerolog.Logger) httprouter.Handle {
	lim := limits{maxImageSize: cfg.maxImageSize}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			var herr websocket.HandshakeError
			if !errors.As(err, &herr) {
				log.Warn().Err(err).Str("remote", realIP(r)).Msg("CONNS: Upgrade failed")
			}
			return
		}

		c := newClient(cfg, conn, log)
		c.log.Info().Str("remote", realIP(r)).Msg("CONNS: Upgraded websocket")

		e.Connect(c)

		go c.writePump()
		c.readPump(r.Context(), e, lim, cfg.maxMessageSize)
	}
}
