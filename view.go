/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// RoomView is the room as every client may see it: no connection ids and no
// image payloads.
type RoomView struct {
	Code         string       `json:"code"`
	GameState    GameState    `json:"gameState"`
	Players      []PlayerView `json:"players"`
	CurrentRound int          `json:"currentRound"`
	TotalRounds  int          `json:"totalRounds"`
	SyncStarted  bool         `json:"syncStarted"`
	SyncComplete bool         `json:"syncComplete"`
}

type PlayerView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsHost     bool   `json:"isHost"`
	ImageCount int    `json:"imageCount"`
	Score      int    `json:"score"`
	Connected  bool   `json:"connected"`
}

func projectRoom(r *Room) RoomView {
	players := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerView{
			ID:         p.ID,
			Name:       p.Name,
			IsHost:     p.IsHost,
			ImageCount: p.ImageCount(),
			Score:      p.Score,
			Connected:  p.Connected,
		})
	}

	return RoomView{
		Code:         r.Code,
		GameState:    r.State,
		Players:      players,
		CurrentRound: r.CurrentRound,
		TotalRounds:  len(r.Deck),
		SyncStarted:  r.syncStarted,
		SyncComplete: r.syncComplete,
	}
}

func projectRoster(r *Room) []RosterEntry {
	roster := make([]RosterEntry, 0, len(r.Players))
	for _, p := range r.Players {
		roster = append(roster, RosterEntry{ID: p.ID, Name: p.Name})
	}
	return roster
}

func projectScoreboard(players []*Player) []ScoreEntry {
	board := make([]ScoreEntry, 0, len(players))
	for _, p := range players {
		board = append(board, ScoreEntry{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return board
}

func projectSyncProgress(r *Room) SyncProgressEvent {
	players := make([]PlayerSync, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerSync{
			ID:     p.ID,
			Name:   p.Name,
			Synced: r.syncedCount(p.ID),
			Total:  len(r.Deck),
		})
	}
	return SyncProgressEvent{Progress: r.syncPercent(), Players: players}
}

// projectRound is the round-started payload for the current round.
func projectRound(r *Room) RoundStartedEvent {
	return RoundStartedEvent{
		Image:       r.Deck[r.CurrentRound].Image,
		RoundIndex:  r.CurrentRound,
		TotalRounds: len(r.Deck),
		Players:     projectRoster(r),
	}
}
