/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"strings"
	"time"
)

const (
	codeLength = 6

	// codeAlphabet leaves out I, L, O, 0 and 1.
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// Registry owns every Room in the process. It is only touched from the
// engine loop, so it carries no lock of its own.
type Registry struct {
	rooms   map[string]*Room
	newCode func() string
	now     func() time.Time
}

func newRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		newCode: randomCode,
		now:     time.Now,
	}
}

// randomCode draws codeLength characters from codeAlphabet using crypto/rand,
// rejecting bytes that would bias the draw.
func randomCode() string {
	const limit = 256 - 256%len(codeAlphabet)

	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(out) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == codeLength {
				break
			}
		}
	}
	return string(out)
}

func validCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// normalizeCode accepts codes typed in lower case.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create allocates a room under a code no active room is using.
func (reg *Registry) Create() (string, *Room) {
	code := reg.newCode()
	for {
		if _, exists := reg.rooms[code]; !exists {
			break
		}
		code = reg.newCode()
	}

	room := newRoom(code, reg.now())
	reg.rooms[code] = room
	return code, room
}

func (reg *Registry) Get(code string) (*Room, bool) {
	room, ok := reg.rooms[code]
	return room, ok
}

// Delete removes the room and stops every timer it owns.
func (reg *Registry) Delete(code string) {
	room, ok := reg.rooms[code]
	if !ok {
		return
	}
	room.tasks.cancelAll()
	delete(reg.rooms, code)
}

func (reg *Registry) Len() int {
	return len(reg.rooms)
}

func (reg *Registry) Codes() []string {
	codes := make([]string, 0, len(reg.rooms))
	for code := range reg.rooms {
		codes = append(codes, code)
	}
	return codes
}

func (reg *Registry) touch(room *Room) {
	room.lastActive = reg.now()
}

// idle returns the codes of rooms with no activity since cutoff.
func (reg *Registry) idle(cutoff time.Time) []string {
	var codes []string
	for code, room := range reg.rooms {
		if room.lastActive.Before(cutoff) {
			codes = append(codes, code)
		}
	}
	return codes
}
