/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	sched   *fakeScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeScheduler only fires timers when the test advances it.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) stopper {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &fakeTimer{sched: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// due pops the earliest live timer at or before limit.
func (s *fakeScheduler) due(limit time.Duration) *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *fakeTimer
	for _, t := range s.timers {
		if t.stopped || t.fired || t.at > limit {
			continue
		}
		if next == nil || t.at < next.at {
			next = t
		}
	}
	if next == nil {
		s.now = limit
		return nil
	}

	next.fired = true
	s.now = next.at
	return next
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []Envelope
	closed bool
}

func (c *fakeConn) ID() string {
	return c.id
}

func (c *fakeConn) Send(env Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames = append(c.frames, env)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) reply(id string) (Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, env := range c.frames {
		if env.ID == id {
			return env, true
		}
	}
	return Envelope{}, false
}

func (c *fakeConn) ofType(typ string) []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Envelope
	for _, env := range c.frames {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) count(typ string) int {
	return len(c.ofType(typ))
}

func (c *fakeConn) last(typ string) (Envelope, bool) {
	frames := c.ofType(typ)
	if len(frames) == 0 {
		return Envelope{}, false
	}
	return frames[len(frames)-1], true
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type testPlayer struct {
	c    *fakeConn
	id   string
	name string
}

type testEnv struct {
	t     *testing.T
	e     *Engine
	sched *fakeScheduler
	reg   *prometheus.Registry

	seq   int
	conns int
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, func(*Config) {})
}

func newTestEnvWith(t *testing.T, configure func(*Config)) *testEnv {
	t.Helper()

	cfg := defaultConfig()
	cfg.roomTimeout = 0
	configure(cfg)

	sched := &fakeScheduler{}
	reg := prometheus.NewRegistry()

	e := newEngine(cfg, zerolog.Nop(), reg, sched)

	ids := 0
	e.newID = func() string {
		ids++
		return "player-" + strconv.Itoa(ids)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(cancel)

	return &testEnv{t: t, e: e, sched: sched, reg: reg}
}

// settle waits until everything posted so far has run on the engine loop.
func (te *testEnv) settle() {
	te.t.Helper()
	require.True(te.t, te.e.query(func() {}), "engine stopped")
}

// advance moves the fake clock forward, running each due timer to
// completion before looking for the next one.
func (te *testEnv) advance(d time.Duration) {
	te.t.Helper()

	limit := te.sched.elapsed() + d
	for {
		timer := te.sched.due(limit)
		if timer == nil {
			break
		}
		timer.f()
		te.settle()
	}
}

func (te *testEnv) connect() *fakeConn {
	te.t.Helper()

	te.conns++
	c := &fakeConn{id: fmt.Sprintf("conn-%d", te.conns)}
	te.e.Connect(c)
	te.settle()
	return c
}

func (te *testEnv) disconnect(c *fakeConn) {
	te.t.Helper()

	te.e.Disconnect(c.id)
	te.settle()
}

// send submits a command through the same decoder the websocket uses and
// returns the reply correlated with it, if any.
func (te *testEnv) send(c *fakeConn, typ CommandType, payload any) Envelope {
	te.t.Helper()

	te.seq++
	id := "req-" + strconv.Itoa(te.seq)

	raw, err := json.Marshal(map[string]any{"type": typ, "id": id, "payload": payload})
	require.NoError(te.t, err)

	cmd, err := decodeCommand(raw, limits{maxImageSize: te.e.cfg.maxImageSize})
	require.NoError(te.t, err)

	te.e.Submit(c.id, cmd)
	te.settle()

	env, _ := c.reply(id)
	return env
}

// inspect runs f against the room on the engine loop.
func (te *testEnv) inspect(code string, f func(*Room)) {
	te.t.Helper()

	var found bool
	te.e.query(func() {
		var room *Room
		room, found = te.e.rooms.Get(code)
		if found {
			f(room)
		}
	})
	require.True(te.t, found, "room %s not found", code)
}

func (te *testEnv) roomExists(code string) bool {
	return te.e.RoomExists(code)
}

func (te *testEnv) create(name string) (testPlayer, string) {
	te.t.Helper()

	c := te.connect()
	env := te.send(c, CmdCreateRoom, map[string]any{"name": name})
	require.Equal(te.t, EvtRoomCreated, env.Type)

	created := env.Payload.(RoomJoinedEvent)
	return testPlayer{c: c, id: created.PlayerID, name: name}, created.Code
}

func (te *testEnv) join(code, name string) testPlayer {
	te.t.Helper()

	c := te.connect()
	env := te.send(c, CmdJoinRoom, map[string]any{"code": code, "name": name})
	require.Equal(te.t, EvtJoinedRoom, env.Type, "join failed: %s", env.Error)

	joined := env.Payload.(RoomJoinedEvent)
	return testPlayer{c: c, id: joined.PlayerID, name: name}
}

// lobby creates a room with one host and n-1 guests.
func (te *testEnv) lobby(n int) ([]testPlayer, string) {
	te.t.Helper()

	host, code := te.create("Host")
	players := []testPlayer{host}
	for i := 1; i < n; i++ {
		players = append(players, te.join(code, "Guest "+strconv.Itoa(i)))
	}
	return players, code
}

func imageSet(owner string) []string {
	images := make([]string, imagesPerPlayer)
	for i := range images {
		images[i] = fmt.Sprintf("data:image/jpeg;base64,%s-%d", owner, i)
	}
	return images
}

func (te *testEnv) submitImages(code string, p testPlayer) Envelope {
	te.t.Helper()
	return te.send(p.c, CmdSubmitImages, map[string]any{"code": code, "images": imageSet(p.id)})
}

func (te *testEnv) ackBatch(code string, p testPlayer, i int) Envelope {
	te.t.Helper()
	return te.send(p.c, CmdImagesSynced, map[string]any{"code": code, "batchIndex": i})
}

// deliverAll fires every pending batch timer.
func (te *testEnv) deliverAll(players []testPlayer) {
	te.t.Helper()
	te.advance(time.Duration(len(players)*imagesPerPlayer) * te.e.cfg.syncStagger)
}

// synced drives a lobby through image submission and sync.
func (te *testEnv) synced(n int) ([]testPlayer, string) {
	te.t.Helper()

	players, code := te.lobby(n)
	for _, p := range players {
		ack := te.submitImages(code, p)
		require.Empty(te.t, ack.Error)
	}

	te.deliverAll(players)

	deck := len(players) * imagesPerPlayer
	for _, p := range players {
		for i := 0; i < deck; i++ {
			te.ackBatch(code, p, i)
		}
	}

	return players, code
}

// playing drives a lobby all the way to round 0.
func (te *testEnv) playing(n int) ([]testPlayer, string) {
	te.t.Helper()

	players, code := te.synced(n)
	ack := te.send(players[0].c, CmdStartGame, map[string]any{"code": code})
	require.Equal(te.t, EvtAck, ack.Type)
	require.Empty(te.t, ack.Error)

	return players, code
}

func (te *testEnv) guess(code string, p testPlayer, round int, owner string) Envelope {
	te.t.Helper()
	return te.send(p.c, CmdSubmitGuess, map[string]any{"code": code, "roundIndex": round, "guessedOwnerId": owner})
}

func (te *testEnv) owner(code string, round int) string {
	te.t.Helper()

	var owner string
	te.inspect(code, func(r *Room) {
		owner = r.Deck[round].OwnerID
	})
	return owner
}
