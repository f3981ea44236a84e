/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomCode(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for range 500 {
		code := randomCode()
		require.Len(t, code, codeLength)
		assert.True(t, validCode(code), "code %q uses characters outside the alphabet", code)
		assert.False(t, strings.ContainsAny(code, "IL01O"), "code %q contains an ambiguous character", code)
		seen[code] = struct{}{}
	}

	assert.Greater(t, len(seen), 490)
}

func TestValidCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want bool
	}{
		{"ABCDEF", true},
		{"XYZ234", true},
		{"ABCDE", false},
		{"ABCDEFG", false},
		{"ABCDE1", false},
		{"ABCDEO", false},
		{"abcdef", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, validCode(tt.code))
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ABCDEF", normalizeCode(" abcdef\n"))
}

func TestRegistryCreateRetriesOnCollision(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	reg.newCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}

	first, _ := reg.Create()
	second, _ := reg.Create()

	assert.Equal(t, "AAAAAA", first)
	assert.Equal(t, "BBBBBB", second)
	assert.Equal(t, 2, reg.Len())
	assert.ElementsMatch(t, []string{"AAAAAA", "BBBBBB"}, reg.Codes())
}

func TestRegistryDeleteStopsTasks(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	code, room := reg.Create()

	sched := &fakeScheduler{}
	timer := sched.AfterFunc(time.Minute, func() {})
	room.tasks.put("advance", room.tasks.next(), timer)

	reg.Delete(code)

	_, ok := reg.Get(code)
	assert.False(t, ok)
	assert.Equal(t, 0, sched.pending())
	assert.Equal(t, 0, len(room.tasks.pending))

	reg.Delete(code)
}

func TestRegistryIdle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	reg := newRegistry()
	reg.now = func() time.Time { return now }

	stale, _ := reg.Create()

	now = now.Add(time.Hour)
	fresh, freshRoom := reg.Create()
	reg.touch(freshRoom)

	idle := reg.idle(now.Add(-30 * time.Minute))

	assert.Equal(t, []string{stale}, idle)
	assert.NotContains(t, idle, fresh)
}
