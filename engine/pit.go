package engine

// pitServiceTicks converts a track's PitLossSeconds into a tick
// count at the fixed TickDurationMs cadence.
func pitServiceTicks(pitLossSeconds float64) int {
	ticks := int(pitLossSeconds * 1000.0 / TickDurationMs)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// armPitStop marks car to box the next time it crosses the line, and
// pre-selects the compound it will fit so the choice is made once, at arm
// time, rather than re-derived when the stop is serviced.
func armPitStop(car *Car, ctx RaceContext, lapsRemaining int) {
	car.pitBoxArmed = true
	car.nextCompound = chooseCompound(ctx, car.Tire.Compound, lapsRemaining)
}

// chooseCompound picks the shortest-lived dry compound (ascending
// durability order) whose estimated stint life still plausibly covers the
// laps remaining, falling back to the most durable compound available.
// Wet-weather compounds are left to reactToWeather.
func chooseCompound(ctx RaceContext, current string, lapsRemaining int) string {
	for _, name := range ctx.CompoundOrder {
		if name == current || isWetCompound(name) {
			continue
		}
		c, ok := ctx.Compounds[name]
		if !ok || c.WearPerLap <= 0 {
			continue
		}
		estimatedLife := 1.0 / c.WearPerLap
		if estimatedLife >= float64(lapsRemaining) {
			return name
		}
	}
	if len(ctx.CompoundOrder) > 0 {
		return ctx.CompoundOrder[len(ctx.CompoundOrder)-1]
	}
	return current
}

// enterPitLane transitions a car that has just crossed the line with an
// armed pit stop into service.
func enterPitLane(s *RaceState, car *Car, ctx RaceContext) {
	car.Status = InPit
	car.InPitLane = true
	car.pitBoxArmed = false
	car.pitTicksRemaining = pitServiceTicks(ctx.Track.PitLossSeconds)
}

// servicePitStops advances every car currently in the pit lane by one
// tick of service time, and releases any car whose service has completed.
func servicePitStops(s *RaceState, ctx RaceContext) {
	for i := range s.Cars {
		car := &s.Cars[i]
		if car.Status != InPit {
			continue
		}
		car.pitTicksRemaining--
		if car.pitTicksRemaining > 0 {
			continue
		}
		car.Tire = TireState{Compound: car.nextCompound, AgeLaps: 0, Wear: 0}
		car.nextCompound = ""
		car.Status = Racing
		car.InPitLane = false
		car.PitStops++
		s.appendEvent(Event{
			Tick:        s.Meta.Tick,
			Lap:         car.Lap,
			Type:        EventPitStop,
			Description: car.DriverCode + " pits, fits " + car.Tire.Compound,
			Payload: map[string]interface{}{
				"driver":   car.DriverCode,
				"compound": car.Tire.Compound,
			},
		})
	}
}
