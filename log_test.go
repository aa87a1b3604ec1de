package caliper

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLoggerAffectsAlreadyConstructedCoordinator(t *testing.T) {
	defer SetLogger(nil)

	c := newCoordinator(NewConfig())
	c.init() // logs through the no-op logger; nothing observable yet.

	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))

	c.Shutdown()

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected SetLogger, called after construction, to be picked up by the existing coordinator; got %d entries", len(entries))
	}
}

func TestSetLoggerNilRestoresNoop(t *testing.T) {
	defer SetLogger(nil)

	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))
	SetLogger(nil)

	c := newCoordinator(NewConfig())
	c.Shutdown()

	if len(logs.All()) != 0 {
		t.Errorf("expected no log entries after restoring the no-op logger, got %d", len(logs.All()))
	}
}
