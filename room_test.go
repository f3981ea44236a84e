/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomWith(names ...string) *Room {
	room := newRoom("ABCDEF", time.Now())
	for i, name := range names {
		room.addPlayer(&Player{ID: "p" + strconv.Itoa(i), Name: name, Connected: true})
	}
	return room
}

func hostCount(r *Room) int {
	n := 0
	for _, p := range r.Players {
		if p.IsHost {
			n++
		}
	}
	return n
}

func TestRoomHostFailover(t *testing.T) {
	t.Parallel()

	room := roomWith("Ann", "Bob", "Cat")
	require.True(t, room.isHost("p0"))

	_, changed := room.removePlayer("p1")
	assert.False(t, changed)
	assert.True(t, room.isHost("p0"))
	assert.Equal(t, 1, hostCount(room))

	removed, changed := room.removePlayer("p0")
	require.NotNil(t, removed)
	assert.True(t, changed)
	assert.False(t, removed.IsHost)
	assert.True(t, room.isHost("p2"))
	assert.Equal(t, 1, hostCount(room))

	removed, _ = room.removePlayer("missing")
	assert.Nil(t, removed)
}

func TestRoomSyncPercent(t *testing.T) {
	t.Parallel()

	room := roomWith("Ann", "Bob", "Cat")
	assert.Equal(t, 0, room.syncPercent())

	room.Deck = make([]ImageRecord, 30)
	for _, p := range room.Players {
		room.SyncProgress[p.ID] = make(map[int]struct{})
	}

	room.SyncProgress["p0"][0] = struct{}{}
	// 1/90 rounds to 1.
	assert.Equal(t, 1, room.syncPercent())

	for i := range 30 {
		room.SyncProgress["p0"][i] = struct{}{}
	}
	// 30/90 rounds to 33.
	assert.Equal(t, 33, room.syncPercent())
	assert.False(t, room.allSynced())

	for i := range 30 {
		room.SyncProgress["p1"][i] = struct{}{}
		room.SyncProgress["p2"][i] = struct{}{}
	}
	assert.Equal(t, 100, room.syncPercent())
	assert.True(t, room.allSynced())
}

func TestRoomGuessCountIgnoresDepartedPlayers(t *testing.T) {
	t.Parallel()

	room := roomWith("Ann", "Bob")
	room.Guesses[0] = map[string]string{"p0": "p1", "p1": "p0", "gone": "p0"}

	assert.Equal(t, 2, room.guessCount(0))
	assert.Equal(t, 0, room.guessCount(1))
}

func TestRoomStandingsBreakTiesByJoinOrder(t *testing.T) {
	t.Parallel()

	room := roomWith("Ann", "Bob", "Cat", "Dan")
	room.Players[0].Score = 100
	room.Players[1].Score = 300
	room.Players[2].Score = 100
	room.Players[3].Score = 300

	standings := room.standings()

	ids := make([]string, 0, len(standings))
	for _, p := range standings {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p1", "p3", "p0", "p2"}, ids)
	assert.Equal(t, "p0", room.Players[0].ID, "standings must not reorder the roster")
}

func TestBuildDeckPreservesOwnership(t *testing.T) {
	t.Parallel()

	room := roomWith("Ann", "Bob", "Cat")
	want := make(map[ImageRecord]int)
	for _, p := range room.Players {
		p.Images = imageSet(p.ID)
		for _, img := range p.Images {
			want[ImageRecord{Image: img, OwnerID: p.ID, OwnerName: p.Name}]++
		}
	}

	r := rand.New(rand.NewPCG(1, 2))
	deck := buildDeck(room.Players, r.Shuffle)
	require.Len(t, deck, 3*imagesPerPlayer)

	got := make(map[ImageRecord]int)
	for _, rec := range deck {
		got[rec]++
	}
	assert.Equal(t, want, got)

	inOrder := buildDeck(room.Players, func(int, func(i, j int)) {})
	assert.NotEqual(t, inOrder, deck)
}

func TestRoomResetForNewGame(t *testing.T) {
	t.Parallel()

	room := roomWith("Ann", "Bob")
	room.State = StateGameOver
	room.Deck = make([]ImageRecord, 20)
	room.CurrentRound = 19
	room.syncStarted = true
	room.syncComplete = true
	room.Guesses[19] = map[string]string{"p0": "p1"}
	room.resolved[19] = true
	for _, p := range room.Players {
		p.Score = 500
		p.Images = imageSet(p.ID)
	}

	room.resetForNewGame()

	assert.Equal(t, StateLobby, room.State)
	assert.Empty(t, room.Deck)
	assert.Zero(t, room.CurrentRound)
	assert.False(t, room.syncStarted)
	assert.False(t, room.syncComplete)
	assert.Empty(t, room.Guesses)
	assert.Empty(t, room.resolved)
	require.Len(t, room.Players, 2)
	for _, p := range room.Players {
		assert.Zero(t, p.Score)
		assert.Zero(t, p.ImageCount())
	}
	assert.True(t, room.isHost("p0"))
}
