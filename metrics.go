/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	roomsActive    prometheus.Gauge
	roomsCreated   prometheus.Counter
	playersRemoved prometheus.Counter
	batchesSent    prometheus.Counter
	syncsCompleted prometheus.Counter
	roundsResolved prometheus.Counter
	gamesFinished  prometheus.Counter
	commands       *prometheus.CounterVec
	commandErrors  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "photoparty",
			Name:      "rooms_active",
			Help:      "Rooms currently held in memory.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "photoparty",
			Name:      "rooms_created_total",
			Help:      "Rooms created since start.",
		}),
		playersRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "photoparty",
			Name:      "players_removed_total",
			Help:      "Players removed after their reconnect grace period ran out.",
		}),
		batchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "photoparty",
			Name:      "sync_batches_sent_total",
			Help:      "Image batches sent during sync, counting resends.",
		}),
		syncsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "photoparty",
			Name:      "sync_completed_total",
			Help:      "Rooms that finished image sync.",
		}),
		roundsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "photoparty",
			Name:      "rounds_resolved_total",
			Help:      "Rounds scored.",
		}),
		gamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "photoparty",
			Name:      "games_finished_total",
			Help:      "Games that reached game over.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoparty",
			Name:      "commands_total",
			Help:      "Client commands handled, by type.",
		}, []string{"type"}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoparty",
			Name:      "command_errors_total",
			Help:      "Client commands rejected, by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.roomsActive,
		m.roomsCreated,
		m.playersRemoved,
		m.batchesSent,
		m.syncsCompleted,
		m.roundsResolved,
		m.gamesFinished,
		m.commands,
		m.commandErrors,
	)

	return m
}
