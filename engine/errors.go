package engine

import "fmt"

// TickError is returned when a tick would violate a state invariant
// (negative fuel, a position collision, tire wear or lap progress out of
// range). These are internal bugs: they abort the tick with this
// structured error and are never silently recovered.
type TickError struct {
	Tick      uint64
	Seed      uint64
	DriverCode string
	Invariant string
	Detail    string
}

func (e *TickError) Error() string {
	if e.DriverCode != "" {
		return fmt.Sprintf("tick %d (seed %d): invariant %q violated for %s: %s",
			e.Tick, e.Seed, e.Invariant, e.DriverCode, e.Detail)
	}
	return fmt.Sprintf("tick %d (seed %d): invariant %q violated: %s",
		e.Tick, e.Seed, e.Invariant, e.Detail)
}

func newTickError(s *RaceState, invariant, driverCode, detail string) *TickError {
	return &TickError{
		Tick:       s.Meta.Tick,
		Seed:       s.Meta.Seed,
		DriverCode: driverCode,
		Invariant:  invariant,
		Detail:     detail,
	}
}
