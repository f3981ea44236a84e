/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

const defaultHostName = "Host"

func (e *Engine) newPlayer(name, connID string) *Player {
	return &Player{
		ID:        e.newID(),
		Name:      name,
		Connected: true,
		connID:    connID,
	}
}

func (e *Engine) bind(connID string, room *Room, p *Player) {
	p.connID = connID
	p.Connected = true
	e.bound[connID] = binding{code: room.Code, playerID: p.ID}
}

// unbind detaches connID from whatever player it controls, leaving that
// player in its reconnect grace period.
func (e *Engine) unbind(connID string) {
	b, ok := e.bound[connID]
	if !ok {
		return
	}
	delete(e.bound, connID)
	e.release(connID, b)
}

func (e *Engine) createRoom(connID string, cmd Command) error {
	payload := cmd.Payload.(*CreateRoomPayload)

	e.unbind(connID)

	name := payload.Name
	if name == "" {
		name = defaultHostName
	}

	code, room := e.rooms.Create()
	p := e.newPlayer(name, connID)
	room.addPlayer(p)
	e.bind(connID, room, p)

	e.metrics.roomsCreated.Inc()
	e.metrics.roomsActive.Set(float64(e.rooms.Len()))
	e.log.Info().Str("room", code).Str("player", p.ID).Msgf("ROOMS: %q created room %s", p.Name, code)

	e.reply(connID, cmd, Envelope{
		Type:    EvtRoomCreated,
		Payload: RoomJoinedEvent{Code: code, PlayerID: p.ID, Room: projectRoom(room)},
	})

	return nil
}

func (e *Engine) joinRoom(connID string, cmd Command) error {
	payload := cmd.Payload.(*JoinRoomPayload)

	room, ok := e.rooms.Get(payload.Code)
	if !ok {
		return ErrRoomNotFound
	}

	// A repeated join from a connection already seated here keeps its seat.
	if b, ok := e.bound[connID]; ok && b.code == room.Code {
		if p := room.player(b.playerID); p != nil {
			e.reply(connID, cmd, Envelope{
				Type:    EvtJoinedRoom,
				Payload: RoomJoinedEvent{Code: room.Code, PlayerID: p.ID, Room: projectRoom(room)},
			})
			return nil
		}
	}

	if room.State != StateLobby || room.syncStarted {
		return ErrGameInProgress
	}

	e.unbind(connID)

	p := e.newPlayer(payload.Name, connID)
	room.addPlayer(p)
	e.bind(connID, room, p)
	e.rooms.touch(room)

	e.log.Info().Str("room", room.Code).Str("player", p.ID).Msgf("GAMES: Player %q joined %s", p.Name, room.Code)

	e.reply(connID, cmd, Envelope{
		Type:    EvtJoinedRoom,
		Payload: RoomJoinedEvent{Code: room.Code, PlayerID: p.ID, Room: projectRoom(room)},
	})
	e.broadcastRoom(room)

	return nil
}

// reconnect never reports failure to the client; an unknown room or player
// is a stale session and only gets logged.
func (e *Engine) reconnect(connID string, cmd Command) {
	payload := cmd.Payload.(*ReconnectPayload)

	room, ok := e.rooms.Get(payload.Code)
	if !ok {
		e.log.Info().Str("conn", connID).Str("room", payload.Code).Msg("GAMES: Reconnect to unknown room ignored")
		return
	}

	p := room.player(payload.PlayerID)
	if p == nil {
		e.log.Info().Str("conn", connID).Str("room", payload.Code).Str("player", payload.PlayerID).Msg("GAMES: Reconnect for unknown player ignored")
		return
	}

	if b, ok := e.bound[connID]; ok && (b.code != room.Code || b.playerID != p.ID) {
		e.unbind(connID)
	}

	// Another live connection may still hold this player, e.g. a second tab.
	if p.connID != connID {
		delete(e.bound, p.connID)
	}

	room.tasks.cancel(graceTask(p.ID))
	e.bind(connID, room, p)
	e.rooms.touch(room)

	e.log.Info().Str("room", room.Code).Str("player", p.ID).Msgf("GAMES: Player %q reconnected to %s", p.Name, room.Code)

	resume := ReconnectedEvent{
		Code:      room.Code,
		PlayerID:  p.ID,
		Room:      projectRoom(room),
		GameState: room.State,
	}
	if room.State == StatePlaying {
		round := projectRound(room)
		resume.Round = &round
		_, resume.HasGuessed = room.Guesses[room.CurrentRound][p.ID]
	}

	e.reply(connID, cmd, Envelope{Type: EvtReconnected, Payload: resume})
	e.broadcastRoom(room)

	if room.syncStarted && !room.syncComplete {
		e.resendMissing(room, p)
	}
}

func (e *Engine) updateName(connID string, cmd Command) error {
	payload := cmd.Payload.(*UpdateNamePayload)

	b, ok := e.bound[connID]
	if !ok {
		return nil
	}

	room, ok := e.rooms.Get(b.code)
	if !ok {
		return nil
	}

	p := room.player(b.playerID)
	if p == nil {
		return nil
	}

	if room.State != StateLobby {
		e.log.Info().Str("room", room.Code).Str("player", p.ID).Msg("GAMES: Ignoring rename outside the lobby")
		return nil
	}

	p.Name = payload.Name
	e.rooms.touch(room)
	e.broadcastRoom(room)

	return nil
}

func (e *Engine) handleDisconnect(connID string) {
	delete(e.conns, connID)
	e.log.Info().Str("conn", connID).Msg("CONNS: Disconnected")
	e.unbind(connID)
}

func graceTask(playerID string) string {
	return "grace:" + playerID
}

// release starts the grace period for the player that connID controlled.
func (e *Engine) release(connID string, b binding) {
	room, ok := e.rooms.Get(b.code)
	if !ok {
		return
	}

	p := room.player(b.playerID)
	if p == nil || p.connID != connID {
		return
	}

	p.Connected = false

	e.schedule(room, graceTask(p.ID), e.cfg.disconnectGrace, func(r *Room) {
		e.expireGrace(r, b.playerID, connID)
	})

	e.broadcastRoom(room)
}

// expireGrace removes the player unless a newer connection has claimed it.
func (e *Engine) expireGrace(room *Room, playerID, connID string) {
	p := room.player(playerID)
	if p == nil {
		return
	}
	if p.connID != connID {
		e.log.Info().Str("room", room.Code).Str("player", playerID).Msg("GAMES: Grace period ended after reconnect, keeping player")
		return
	}

	e.removePlayer(room, p)
}

func (e *Engine) removePlayer(room *Room, p *Player) {
	_, hostChanged := room.removePlayer(p.ID)
	room.tasks.cancel(graceTask(p.ID))
	room.tasks.cancelPrefix(resyncPrefix(p.ID))

	e.metrics.playersRemoved.Inc()
	e.log.Info().Str("room", room.Code).Str("player", p.ID).Msgf("GAMES: Player %q left %s", p.Name, room.Code)

	if len(room.Players) == 0 {
		e.deleteRoom(room, "empty")
		return
	}

	if hostChanged {
		h := room.host()
		e.log.Info().Str("room", room.Code).Str("player", h.ID).Msgf("GAMES: %q is now host of %s", h.Name, room.Code)
	}

	e.broadcast(room, Envelope{Type: EvtPlayerLeft, Payload: PlayerLeftEvent{PlayerID: p.ID, Name: p.Name}})
	e.broadcastRoom(room)

	e.recheck(room)
}

// recheck re-evaluates the level-triggered conditions that a smaller roster
// can satisfy.
func (e *Engine) recheck(room *Room) {
	switch room.State {
	case StateLobby:
		if !room.syncStarted {
			e.maybeStartSync(room)
			return
		}
		if !room.syncComplete {
			e.broadcast(room, Envelope{Type: EvtSyncProgress, Payload: projectSyncProgress(room)})
			e.checkSyncComplete(room)
		}
	case StatePlaying:
		e.maybeResolveRound(room)
	}
}
