package clock

import "github.com/jonboulle/clockwork"

// Clock is the scheduling surface the engine depends on. Tests drive it with
// a clockwork fake clock.
type Clock = clockwork.Clock

func NewReal() Clock {
	return clockwork.NewRealClock()
}
