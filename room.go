/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"slices"
	"time"
)

const (
	imagesPerPlayer = 10
	pointsPerGuess  = 100
)

type GameState string

const (
	StateLobby    GameState = "LOBBY"
	StatePlaying  GameState = "PLAYING"
	StateGameOver GameState = "GAME_OVER"
)

// Player is identified by ID for the lifetime of the room. connID is the
// connection currently bound to it, and changes on every reconnect.
type Player struct {
	ID        string
	Name      string
	IsHost    bool
	Images    []string
	Score     int
	Connected bool

	connID string
}

func (p *Player) ImageCount() int {
	return len(p.Images)
}

// ImageRecord is one deck entry. The owner's name is captured when the deck
// is built so later renames do not change attribution.
type ImageRecord struct {
	Image     string
	OwnerID   string
	OwnerName string
}

type Room struct {
	Code    string
	Players []*Player
	State   GameState

	Deck         []ImageRecord
	CurrentRound int

	// SyncProgress maps player ID to the set of acknowledged batch indices.
	SyncProgress map[string]map[int]struct{}
	syncStarted  bool
	syncComplete bool

	// Guesses maps round index to player ID to guessed owner ID.
	Guesses  map[int]map[string]string
	resolved map[int]bool

	tasks      *taskSet
	createdAt  time.Time
	lastActive time.Time
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		Code:         code,
		State:        StateLobby,
		SyncProgress: make(map[string]map[int]struct{}),
		Guesses:      make(map[int]map[string]string),
		resolved:     make(map[int]bool),
		tasks:        newTaskSet(),
		createdAt:    now,
		lastActive:   now,
	}
}

func (r *Room) player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) host() *Player {
	for _, p := range r.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func (r *Room) isHost(playerID string) bool {
	h := r.host()
	return h != nil && h.ID == playerID
}

func (r *Room) addPlayer(p *Player) {
	p.IsHost = len(r.Players) == 0
	r.Players = append(r.Players, p)
}

// removePlayer drops the player from the roster and hands the host role to
// the earliest remaining player when needed. It reports whether the host
// changed.
func (r *Room) removePlayer(id string) (removed *Player, hostChanged bool) {
	idx := slices.IndexFunc(r.Players, func(p *Player) bool { return p.ID == id })
	if idx < 0 {
		return nil, false
	}

	removed = r.Players[idx]
	r.Players = slices.Delete(r.Players, idx, idx+1)
	delete(r.SyncProgress, id)

	if removed.IsHost && len(r.Players) > 0 {
		r.Players[0].IsHost = true
		hostChanged = true
	}
	removed.IsHost = false

	return removed, hostChanged
}

// allImagesSubmitted is the level-triggered sync start condition.
func (r *Room) allImagesSubmitted() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if p.ImageCount() != imagesPerPlayer {
			return false
		}
	}
	return true
}

func (r *Room) syncedCount(playerID string) int {
	return len(r.SyncProgress[playerID])
}

// allSynced is the level-triggered sync completion condition.
func (r *Room) allSynced() bool {
	if len(r.Deck) == 0 || len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if r.syncedCount(p.ID) < len(r.Deck) {
			return false
		}
	}
	return true
}

// syncPercent is round(100 × Σ synced / (deck length × player count)).
func (r *Room) syncPercent() int {
	total := len(r.Deck) * len(r.Players)
	if total == 0 {
		return 0
	}

	synced := 0
	for _, p := range r.Players {
		synced += min(r.syncedCount(p.ID), len(r.Deck))
	}

	return (200*synced + total) / (2 * total)
}

// guessCount counts guesses for the round from players still in the room.
func (r *Room) guessCount(round int) int {
	guesses := r.Guesses[round]
	n := 0
	for _, p := range r.Players {
		if _, ok := guesses[p.ID]; ok {
			n++
		}
	}
	return n
}

func (r *Room) isLastRound() bool {
	return r.CurrentRound == len(r.Deck)-1
}

// standings returns the players sorted by score, highest first. Equal scores
// keep join order, so the earliest joined player wins ties.
func (r *Room) standings() []*Player {
	out := slices.Clone(r.Players)
	slices.SortStableFunc(out, func(a, b *Player) int {
		return b.Score - a.Score
	})
	return out
}

// resetForNewGame returns the room to a fresh lobby, keeping the roster.
func (r *Room) resetForNewGame() {
	r.State = StateLobby
	r.Deck = nil
	r.CurrentRound = 0
	r.SyncProgress = make(map[string]map[int]struct{})
	r.syncStarted = false
	r.syncComplete = false
	r.Guesses = make(map[int]map[string]string)
	r.resolved = make(map[int]bool)

	for _, p := range r.Players {
		p.Score = 0
		p.Images = nil
	}
}
