/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRoomHidesPrivateState(t *testing.T) {
	t.Parallel()

	room := roomWith("Ann", "Bob")
	room.Players[0].connID = "conn-secret"
	room.Players[0].Images = []string{"data:image/jpeg;base64,private"}

	raw, err := json.Marshal(projectRoom(room))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "conn-secret")
	assert.NotContains(t, string(raw), "private")
	assert.Contains(t, string(raw), `"imageCount":1`)
}

func TestProjectSyncProgress(t *testing.T) {
	t.Parallel()

	room := roomWith("Ann", "Bob")
	room.Deck = make([]ImageRecord, 4)
	room.SyncProgress["p0"] = map[int]struct{}{0: {}, 1: {}, 2: {}, 3: {}}
	room.SyncProgress["p1"] = map[int]struct{}{2: {}}

	progress := projectSyncProgress(room)

	// 5 of 8 rounds to 63.
	assert.Equal(t, 63, progress.Progress)
	assert.Equal(t, []PlayerSync{
		{ID: "p0", Name: "Ann", Synced: 4, Total: 4},
		{ID: "p1", Name: "Bob", Synced: 1, Total: 4},
	}, progress.Players)
}
