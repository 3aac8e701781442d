package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock supplies the current time to services.
type Clock interface {
	Now() time.Time
}

// Module provides the system clock to Fx.
var Module = fx.Provide(NewSystem)

type systemClock struct{}

// NewSystem returns a clock backed by time.Now in UTC.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// NewFixed returns a clock that always reports t.
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}
