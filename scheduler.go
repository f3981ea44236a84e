/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"time"
)

// scheduler starts timers. The engine wraps every callback so that it runs on
// the engine loop, never on the timer goroutine.
type scheduler interface {
	AfterFunc(d time.Duration, f func()) stopper
}

type stopper interface {
	Stop() bool
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

type task struct {
	seq   uint64
	timer stopper
}

// taskSet holds the named timers owned by one room. Scheduling a name that
// is already pending stops the older timer first.
type taskSet struct {
	seq     uint64
	pending map[string]task
}

func newTaskSet() *taskSet {
	return &taskSet{pending: make(map[string]task)}
}

func (ts *taskSet) next() uint64 {
	ts.seq++
	return ts.seq
}

func (ts *taskSet) put(name string, seq uint64, timer stopper) {
	ts.cancel(name)
	ts.pending[name] = task{seq: seq, timer: timer}
}

// claim reports whether the task with this name and sequence number is still
// the live one, and forgets it if so.
func (ts *taskSet) claim(name string, seq uint64) bool {
	t, ok := ts.pending[name]
	if !ok || t.seq != seq {
		return false
	}
	delete(ts.pending, name)
	return true
}

func (ts *taskSet) cancel(name string) {
	if t, ok := ts.pending[name]; ok {
		t.timer.Stop()
		delete(ts.pending, name)
	}
}

func (ts *taskSet) cancelPrefix(prefix string) {
	for name, t := range ts.pending {
		if strings.HasPrefix(name, prefix) {
			t.timer.Stop()
			delete(ts.pending, name)
		}
	}
}

func (ts *taskSet) cancelAll() {
	for name, t := range ts.pending {
		t.timer.Stop()
		delete(ts.pending, name)
	}
}

func (ts *taskSet) has(name string) bool {
	_, ok := ts.pending[name]
	return ok
}
