// Package metrics exposes Prometheus instrumentation for the chat service.
// Collectors are registered at package load so every component shares one
// set regardless of how many server instances a process creates.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parley"

var (
	// ActiveConnections tracks the number of attached client connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "connections_active",
		Help:      "Number of currently attached client connections.",
	})

	// FramesReceived counts inbound reads that produced a logical line.
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "frames_received_total",
		Help:      "Total inbound frames read from clients.",
	})

	// ActiveRooms tracks the number of rooms with at least one member.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rooms",
		Name:      "rooms_active",
		Help:      "Number of rooms with at least one member.",
	})

	// Commands counts processed commands by name.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "commands_total",
		Help:      "Total commands processed, labeled by command.",
	}, []string{"command"})

	// CommandFailures counts commands that were refused, by name.
	CommandFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "command_failures_total",
		Help:      "Total commands refused, labeled by command.",
	}, []string{"command"})

	// MessagesRelayed counts chat lines fanned out to room members.
	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "messages_relayed_total",
		Help:      "Total chat messages relayed to room members.",
	})

	// AdminRequests counts admin HTTP requests by route.
	AdminRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total admin HTTP requests, labeled by route.",
	}, []string{"route"})
)

// ConnectionOpened records a new attached connection.
func ConnectionOpened() {
	ActiveConnections.Inc()
}

// ConnectionClosed records a detached connection.
func ConnectionClosed() {
	ActiveConnections.Dec()
}

// FrameReceived records one inbound frame.
func FrameReceived() {
	FramesReceived.Inc()
}

// SetActiveRooms records the current room count.
func SetActiveRooms(n int) {
	ActiveRooms.Set(float64(n))
}

// CommandProcessed records a handled command.
func CommandProcessed(command string) {
	Commands.WithLabelValues(command).Inc()
}

// CommandFailed records a refused command.
func CommandFailed(command string) {
	CommandFailures.WithLabelValues(command).Inc()
}

// MessageRelayed records one fanned-out chat line.
func MessageRelayed() {
	MessagesRelayed.Inc()
}

// AdminRequest records one admin HTTP request.
func AdminRequest(route string) {
	AdminRequests.WithLabelValues(route).Inc()
}
