/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"time"
)

func batchTask(i int) string {
	return "batch:" + strconv.Itoa(i)
}

func resyncPrefix(playerID string) string {
	return "resync:" + playerID + ":"
}

func resyncTask(playerID string, i int) string {
	return resyncPrefix(playerID) + strconv.Itoa(i)
}

func (e *Engine) submitImages(connID string, cmd Command) error {
	payload := cmd.Payload.(*SubmitImagesPayload)

	room, p, err := e.resolve(connID, payload.Code)
	if err != nil {
		return err
	}

	switch {
	case room.State != StateLobby, room.syncStarted:
		return ErrGameInProgress
	case p.ImageCount() == imagesPerPlayer:
		return ErrImagesLocked
	}

	p.Images = slices.Clone(payload.Images)

	e.log.Info().Str("room", room.Code).Str("player", p.ID).Msgf("SYNC: %q submitted %d images", p.Name, len(p.Images))

	e.ack(connID, cmd)
	e.broadcastRoom(room)

	e.maybeStartSync(room)

	return nil
}

// maybeStartSync starts distribution once every present player has
// submitted a full image set.
func (e *Engine) maybeStartSync(room *Room) {
	if room.State != StateLobby || room.syncStarted || !room.allImagesSubmitted() {
		return
	}

	e.startSync(room)
}

// buildDeck pairs every image with its owner in join order, then shuffles.
func buildDeck(players []*Player, shuffle func(n int, swap func(i, j int))) []ImageRecord {
	deck := make([]ImageRecord, 0, len(players)*imagesPerPlayer)
	for _, p := range players {
		for _, img := range p.Images {
			deck = append(deck, ImageRecord{Image: img, OwnerID: p.ID, OwnerName: p.Name})
		}
	}

	shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	return deck
}

func (e *Engine) startSync(room *Room) {
	room.Deck = buildDeck(room.Players, rand.Shuffle)
	room.syncStarted = true
	room.syncComplete = false
	room.SyncProgress = make(map[string]map[int]struct{}, len(room.Players))
	for _, p := range room.Players {
		room.SyncProgress[p.ID] = make(map[int]struct{}, len(room.Deck))
	}

	e.log.Info().Str("room", room.Code).Int("batches", len(room.Deck)).Msgf("SYNC: Distributing %d images in %s", len(room.Deck), room.Code)

	e.broadcastRoom(room)
	e.broadcast(room, Envelope{Type: EvtSyncProgress, Payload: projectSyncProgress(room)})

	for i := range room.Deck {
		e.schedule(room, batchTask(i), time.Duration(i)*e.cfg.syncStagger, func(r *Room) {
			e.sendBatch(r, i)
		})
	}
}

func batchEvent(room *Room, i int) Envelope {
	return Envelope{
		Type: EvtSyncImageBatch,
		Payload: SyncImageBatchEvent{
			BatchIndex:   i,
			TotalBatches: len(room.Deck),
			Image:        room.Deck[i].Image,
		},
	}
}

func (e *Engine) sendBatch(room *Room, i int) {
	if !room.syncStarted || i >= len(room.Deck) {
		return
	}

	e.broadcast(room, batchEvent(room, i))
	e.metrics.batchesSent.Inc()
}

// resendMissing re-streams to one player every batch it has not acknowledged
// and that is not still waiting on its first broadcast.
func (e *Engine) resendMissing(room *Room, p *Player) {
	acked := room.SyncProgress[p.ID]
	if acked == nil {
		acked = make(map[int]struct{}, len(room.Deck))
		room.SyncProgress[p.ID] = acked
	}

	k := 0
	for i := range room.Deck {
		if _, ok := acked[i]; ok || room.tasks.has(batchTask(i)) {
			continue
		}

		playerID := p.ID
		e.schedule(room, resyncTask(playerID, i), time.Duration(k)*e.cfg.syncStagger, func(r *Room) {
			e.resendBatch(r, playerID, i)
		})
		k++
	}

	if k > 0 {
		e.log.Info().Str("room", room.Code).Str("player", p.ID).Msgf("SYNC: Resending %d images to %q", k, p.Name)
	}
}

func (e *Engine) resendBatch(room *Room, playerID string, i int) {
	p := room.player(playerID)
	if p == nil || !p.Connected || !room.syncStarted || room.syncComplete || i >= len(room.Deck) {
		return
	}

	e.sendTo(p.connID, batchEvent(room, i))
	e.metrics.batchesSent.Inc()
}

func (e *Engine) imagesSynced(connID string, cmd Command) error {
	payload := cmd.Payload.(*ImagesSyncedPayload)

	room, p, err := e.resolve(connID, payload.Code)
	if err != nil {
		return err
	}

	idx := *payload.BatchIndex
	if !room.syncStarted || idx >= len(room.Deck) {
		return ErrInvalidBatch
	}

	acked, ok := room.SyncProgress[p.ID]
	if !ok {
		acked = make(map[int]struct{}, len(room.Deck))
		room.SyncProgress[p.ID] = acked
	}
	acked[idx] = struct{}{}
	room.tasks.cancel(resyncTask(p.ID, idx))

	e.ack(connID, cmd)

	if room.syncComplete {
		return nil
	}

	e.broadcast(room, Envelope{Type: EvtSyncProgress, Payload: projectSyncProgress(room)})
	e.checkSyncComplete(room)

	return nil
}

// checkSyncComplete emits sync-complete the first time every present player
// holds the whole deck.
func (e *Engine) checkSyncComplete(room *Room) {
	if room.syncComplete || !room.allSynced() {
		return
	}

	room.syncComplete = true
	room.tasks.cancelPrefix("resync:")
	e.metrics.syncsCompleted.Inc()

	e.log.Info().Str("room", room.Code).Msgf("SYNC: All images delivered in %s", room.Code)

	e.broadcast(room, Envelope{Type: EvtSyncComplete})
	e.broadcastRoom(room)
}
