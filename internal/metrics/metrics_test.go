package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveConnections)

	ConnectionOpened()
	ConnectionOpened()
	ConnectionClosed()

	after := testutil.ToFloat64(ActiveConnections)
	if after-before != 1 {
		t.Errorf("Expected gauge delta of 1, got %v", after-before)
	}
	ConnectionClosed()
}

func TestCommandCounters(t *testing.T) {
	before := testutil.ToFloat64(Commands.WithLabelValues("host"))
	CommandProcessed("host")
	after := testutil.ToFloat64(Commands.WithLabelValues("host"))
	if after-before != 1 {
		t.Errorf("Expected command counter delta of 1, got %v", after-before)
	}

	before = testutil.ToFloat64(CommandFailures.WithLabelValues("join"))
	CommandFailed("join")
	after = testutil.ToFloat64(CommandFailures.WithLabelValues("join"))
	if after-before != 1 {
		t.Errorf("Expected failure counter delta of 1, got %v", after-before)
	}
}

func TestRoomGauge(t *testing.T) {
	SetActiveRooms(3)
	if got := testutil.ToFloat64(ActiveRooms); got != 3 {
		t.Errorf("Expected room gauge of 3, got %v", got)
	}
	SetActiveRooms(0)
	if got := testutil.ToFloat64(ActiveRooms); got != 0 {
		t.Errorf("Expected room gauge of 0, got %v", got)
	}
}
