/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Conn is the engine's view of one client connection.
type Conn interface {
	ID() string
	// Send queues a frame without blocking, reporting false if the
	// connection cannot take it.
	Send(Envelope) bool
	Close()
}

type binding struct {
	code     string
	playerID string
}

// Engine owns the registry and every connection binding. All state is
// mutated on the goroutine running Run; other goroutines hand work to it
// through post, and timers fire back into it the same way.
type Engine struct {
	cfg     *Config
	log     zerolog.Logger
	rooms   *Registry
	sched   scheduler
	metrics *metrics

	conns map[string]Conn
	bound map[string]binding

	inbox chan func()
	done  chan struct{}

	newID func() string
}

func newEngine(cfg *Config, log zerolog.Logger, reg prometheus.Registerer, sched scheduler) *Engine {
	return &Engine{
		cfg:     cfg,
		log:     log,
		rooms:   newRegistry(),
		sched:   sched,
		metrics: newMetrics(reg),
		conns:   make(map[string]Conn),
		bound:   make(map[string]binding),
		inbox:   make(chan func(), 1024),
		done:    make(chan struct{}),
		newID:   uuid.NewString,
	}
}

// Run processes posted work until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	var reap <-chan time.Time
	if e.cfg.roomTimeout > 0 {
		ticker := time.NewTicker(e.cfg.roomTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case f := <-e.inbox:
			f()
		case <-reap:
			e.reapIdle()
		case <-ctx.Done():
			e.shutdown()
			return
		}
	}
}

func (e *Engine) shutdown() {
	for _, code := range e.rooms.Codes() {
		e.rooms.Delete(code)
	}
	for _, c := range e.conns {
		c.Close()
	}
	close(e.done)
}

func (e *Engine) post(f func()) bool {
	select {
	case e.inbox <- f:
		return true
	case <-e.done:
		return false
	}
}

// query runs f on the engine loop and waits for it to finish.
func (e *Engine) query(f func()) bool {
	finished := make(chan struct{})
	if !e.post(func() {
		f()
		close(finished)
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-e.done:
		return false
	}
}

func (e *Engine) Connect(c Conn) {
	e.post(func() {
		e.conns[c.ID()] = c
		e.log.Info().Str("conn", c.ID()).Msg("CONNS: Connected")
	})
}

func (e *Engine) Disconnect(connID string) {
	e.post(func() {
		e.handleDisconnect(connID)
	})
}

func (e *Engine) Submit(connID string, cmd Command) {
	e.post(func() {
		e.handle(connID, cmd)
	})
}

func (e *Engine) RoomExists(code string) bool {
	var exists bool
	e.query(func() {
		_, exists = e.rooms.Get(code)
	})
	return exists
}

func (e *Engine) handle(connID string, cmd Command) {
	e.metrics.commands.WithLabelValues(string(cmd.Type)).Inc()

	var err error
	switch cmd.Type {
	case CmdCreateRoom:
		err = e.createRoom(connID, cmd)
	case CmdJoinRoom:
		err = e.joinRoom(connID, cmd)
	case CmdReconnect:
		e.reconnect(connID, cmd)
	case CmdUpdateName:
		err = e.updateName(connID, cmd)
	case CmdSubmitImages:
		err = e.submitImages(connID, cmd)
	case CmdImagesSynced:
		err = e.imagesSynced(connID, cmd)
	case CmdStartGame:
		err = e.startGame(connID, cmd)
	case CmdSubmitGuess:
		err = e.submitGuess(connID, cmd)
	case CmdNewGame:
		err = e.newGame(connID, cmd)
	default:
		err = ErrInvalidCommand
	}

	if err == nil {
		return
	}

	e.metrics.commandErrors.WithLabelValues(string(cmd.Type)).Inc()
	e.log.Info().Str("conn", connID).Str("type", string(cmd.Type)).Err(err).Msg("GAMES: Command rejected")

	e.reply(connID, cmd, errorFrame(cmd.Type, err))
}

// errorFrame answers commands that expect an ack with a failed ack, and
// everything else with a plain error frame.
func errorFrame(t CommandType, err error) Envelope {
	switch t {
	case CmdSubmitImages, CmdImagesSynced, CmdStartGame, CmdSubmitGuess:
		return Envelope{Type: EvtAck, Payload: AckPayload{Success: false}, Error: err.Error()}
	}
	return Envelope{Type: EvtError, Error: err.Error()}
}

func (e *Engine) reply(connID string, cmd Command, env Envelope) {
	env.ID = cmd.ID
	e.sendTo(connID, env)
}

func (e *Engine) ack(connID string, cmd Command) {
	e.reply(connID, cmd, Envelope{Type: EvtAck, Payload: AckPayload{Success: true}})
}

func (e *Engine) sendTo(connID string, env Envelope) {
	c, ok := e.conns[connID]
	if !ok {
		return
	}
	if !c.Send(env) {
		e.log.Warn().Str("conn", connID).Str("type", env.Type).Msg("CONNS: Outbound queue full, closing connection")
		c.Close()
		delete(e.conns, connID)
	}
}

func (e *Engine) broadcast(room *Room, env Envelope) {
	for _, p := range room.Players {
		if p.Connected {
			e.sendTo(p.connID, env)
		}
	}
}

func (e *Engine) broadcastRoom(room *Room) {
	e.broadcast(room, Envelope{Type: EvtRoomUpdated, Payload: projectRoom(room)})
}

// schedule runs fn on the engine loop after d, unless the room is gone or
// the task was cancelled or replaced in the meantime.
func (e *Engine) schedule(room *Room, name string, d time.Duration, fn func(*Room)) {
	code := room.Code
	seq := room.tasks.next()

	timer := e.sched.AfterFunc(d, func() {
		e.post(func() {
			r, ok := e.rooms.Get(code)
			if !ok {
				e.log.Info().Str("room", code).Str("task", name).Msg("ROOMS: Timer fired for closed room")
				return
			}
			if !r.tasks.claim(name, seq) {
				return
			}
			fn(r)
		})
	})

	room.tasks.put(name, seq, timer)
}

// resolve finds the room named in a command and the player bound to connID
// within it.
func (e *Engine) resolve(connID, code string) (*Room, *Player, error) {
	room, ok := e.rooms.Get(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	b, ok := e.bound[connID]
	if !ok || b.code != code {
		return room, nil, ErrPlayerNotFound
	}

	p := room.player(b.playerID)
	if p == nil {
		return room, nil, ErrPlayerNotFound
	}

	e.rooms.touch(room)

	return room, p, nil
}

func (e *Engine) deleteRoom(room *Room, reason string) {
	for _, p := range room.Players {
		if b, ok := e.bound[p.connID]; ok && b.code == room.Code {
			e.sendTo(p.connID, Envelope{Type: EvtRoomClosed, Payload: RoomClosedEvent{Code: room.Code, Reason: reason}})
			delete(e.bound, p.connID)
		}
	}

	e.rooms.Delete(room.Code)
	e.metrics.roomsActive.Set(float64(e.rooms.Len()))

	e.log.Info().Str("room", room.Code).Str("reason", reason).
		Dur("age", e.rooms.now().Sub(room.createdAt).Round(time.Second)).
		Msg("ROOMS: Closed room")
}

func (e *Engine) reapIdle() {
	cutoff := e.rooms.now().Add(-e.cfg.roomTimeout)
	for _, code := range e.rooms.idle(cutoff) {
		if room, ok := e.rooms.Get(code); ok {
			e.deleteRoom(room, "idle")
		}
	}
}
