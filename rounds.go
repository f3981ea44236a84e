/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

const advanceTask = "advance"

func (e *Engine) startGame(connID string, cmd Command) error {
	payload := cmd.Payload.(*StartGamePayload)

	room, p, err := e.resolve(connID, payload.Code)
	if err != nil {
		return err
	}

	switch {
	case !room.isHost(p.ID):
		return ErrNotHost
	case room.State == StatePlaying:
		return ErrGameInProgress
	case !room.syncComplete:
		return ErrImagesNotSynced
	}

	for _, pl := range room.Players {
		pl.Score = 0
	}
	room.CurrentRound = 0
	room.Guesses = make(map[int]map[string]string)
	room.resolved = make(map[int]bool)
	room.State = StatePlaying

	e.log.Info().Str("room", room.Code).Int("rounds", len(room.Deck)).Msgf("GAMES: Started game in %s", room.Code)

	e.ack(connID, cmd)
	e.broadcastRoom(room)
	e.dispatchRound(room)

	return nil
}

func (e *Engine) dispatchRound(room *Room) {
	e.broadcast(room, Envelope{Type: EvtRoundStarted, Payload: projectRound(room)})
}

func (e *Engine) submitGuess(connID string, cmd Command) error {
	payload := cmd.Payload.(*SubmitGuessPayload)

	room, p, err := e.resolve(connID, payload.Code)
	if err != nil {
		return err
	}

	round := *payload.RoundIndex
	if room.State != StatePlaying || round != room.CurrentRound || room.resolved[round] {
		return ErrInvalidRound
	}

	guesses, ok := room.Guesses[round]
	if !ok {
		guesses = make(map[string]string, len(room.Players))
		room.Guesses[round] = guesses
	}
	guesses[p.ID] = payload.GuessedOwnerID

	e.reply(connID, cmd, Envelope{Type: EvtGuessReceived, Payload: GuessReceivedEvent{RoundIndex: round}})

	e.maybeResolveRound(room)

	return nil
}

// maybeResolveRound resolves the current round once every present player has
// guessed.
func (e *Engine) maybeResolveRound(room *Room) {
	round := room.CurrentRound
	if room.State != StatePlaying || room.resolved[round] {
		return
	}
	if len(room.Players) == 0 || room.guessCount(round) < len(room.Players) {
		return
	}

	e.resolveRound(room)
}

func (e *Engine) resolveRound(room *Room) {
	round := room.CurrentRound
	room.resolved[round] = true

	owner := room.Deck[round]
	guesses := room.Guesses[round]

	results := make([]GuessResult, 0, len(room.Players))
	for _, p := range room.Players {
		guessed := guesses[p.ID]
		correct := guessed == owner.OwnerID

		points := 0
		if correct {
			points = pointsPerGuess
			p.Score += points
		}

		results = append(results, GuessResult{
			PlayerID:  p.ID,
			Name:      p.Name,
			GuessedID: guessed,
			Correct:   correct,
			Points:    points,
		})
	}

	e.metrics.roundsResolved.Inc()

	e.broadcast(room, Envelope{
		Type: EvtRoundResults,
		Payload: RoundResultsEvent{
			RoundIndex:   round,
			CorrectOwner: RosterEntry{ID: owner.OwnerID, Name: owner.OwnerName},
			Results:      results,
			Scoreboard:   projectScoreboard(room.standings()),
			IsLastRound:  room.isLastRound(),
		},
	})

	e.schedule(room, advanceTask, e.cfg.roundDelay, e.advanceRound)
}

func (e *Engine) advanceRound(room *Room) {
	if room.State != StatePlaying || !room.resolved[room.CurrentRound] {
		return
	}

	if room.isLastRound() {
		e.finishGame(room)
		return
	}

	room.CurrentRound++
	e.broadcastRoom(room)
	e.dispatchRound(room)
}

func (e *Engine) finishGame(room *Room) {
	room.State = StateGameOver

	standings := room.standings()
	board := projectScoreboard(standings)

	e.metrics.gamesFinished.Inc()
	e.log.Info().Str("room", room.Code).Str("winner", standings[0].ID).Msgf("GAMES: %q won in %s", standings[0].Name, room.Code)

	e.broadcast(room, Envelope{
		Type:    EvtGameOver,
		Payload: GameOverEvent{Winner: board[0], FinalScoreboard: board},
	})
	e.broadcastRoom(room)
}

// newGame returns the room to the lobby. Requests from anyone but the host
// are dropped without a reply.
func (e *Engine) newGame(connID string, cmd Command) error {
	payload := cmd.Payload.(*NewGamePayload)

	room, p, err := e.resolve(connID, payload.Code)
	if err != nil {
		return err
	}

	if !room.isHost(p.ID) {
		e.log.Info().Str("room", room.Code).Str("player", p.ID).Msg("GAMES: Ignoring new game from non-host")
		return nil
	}

	room.tasks.cancelPrefix("batch:")
	room.tasks.cancelPrefix("resync:")
	room.tasks.cancel(advanceTask)
	room.resetForNewGame()

	e.log.Info().Str("room", room.Code).Msgf("GAMES: New game in %s", room.Code)

	e.broadcast(room, Envelope{Type: EvtNewGameStarted})
	e.broadcastRoom(room)

	return nil
}
