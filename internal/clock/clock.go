// Package clock provides the time source used by liveness timers so that
// tests can drive expiry deterministically with a fake clock.
package clock

import (
	cfclock "code.cloudfoundry.org/clock"
)

type (
	// Clock is the time source.
	Clock = cfclock.Clock
	// Timer is a single-shot timer created by a Clock.
	Timer = cfclock.Timer
)

// NewFunc returns the default clock. Override in tests for determinism.
var NewFunc = cfclock.NewClock

// New returns a clock produced by NewFunc.
func New() Clock { return NewFunc() }
