package caliper

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// currentLogger holds the process-wide log sink. It is read through a
// pointer, not snapshotted by value, so a SetLogger call takes effect
// immediately for every Coordinator already holding a pkgLogger -
// including the singleton returned by an earlier Instance() call.
var currentLogger atomic.Pointer[zap.SugaredLogger]

func init() {
	currentLogger.Store(zap.NewNop().Sugar())
}

// SetLogger installs the *zap.Logger used for the coordinator's log
// lines (severity-0 failures, verbosity-gated init/teardown notices).
// Passing nil restores the no-op logger. Safe to call at any time,
// including after Instance() has already constructed the singleton.
func SetLogger(l *zap.Logger) {
	if l == nil {
		currentLogger.Store(zap.NewNop().Sugar())
		return
	}
	currentLogger.Store(l.Sugar())
}

// pkgLogger is the logger value every Coordinator holds. It forwards
// each call through currentLogger rather than caching a logger at
// construction time, so it always reflects the most recent SetLogger.
type pkgLogger struct{}

func (pkgLogger) Infof(template string, args ...interface{}) {
	currentLogger.Load().Infof(template, args...)
}

func (pkgLogger) Errorf(template string, args ...interface{}) {
	currentLogger.Load().Errorf(template, args...)
}
