package engine

// Tick advances state by one simulated step of TickDurationMs and returns
// the resulting state, the events emitted during this step, and an error
// if and only if an invariant was violated. Tick is pure: given the same
// state, ctx, controls, and rng position, it always produces the same
// result, and it performs no I/O.
//
// Steps run in the fixed order the determinism invariant requires:
//  1. command ingestion
//  2. race-director events (manual, then any auto-triggered by incidents)
//  3. per-car pace computation
//  4. progress update (lap/sector advance, pit-lane entry)
//  5. pit-stop service
//  6. overtake resolution
//  7. incident rolls (auto-escalation to safety car, local yellow)
//  7b. scheduled race-control auto-clears (yellow clear-lap, VSC end)
//  8. weather drift (and the strategy reaction to a condition change)
//  9. classification
func Tick(state *RaceState, ctx RaceContext, controls Controls, rng *Rand) (*RaceState, []Event, error) {
	s := state.Clone()
	eventsBefore := len(s.Events)
	s.Meta.Tick++
	s.Meta.SimTimeMs += TickDurationMs

	lapsRemaining := func(car *Car) int {
		r := s.Meta.LapsTotal - car.Lap
		if r < 1 {
			r = 1
		}
		return r
	}

	// 1. command ingestion
	for _, cmd := range controls.DriverCommands {
		car := s.CarByDriver(cmd.Driver)
		if car == nil || car.Status == DNF {
			continue
		}
		switch cmd.Cmd {
		case CommandBoxThisLap:
			car.ActiveCommand = cmd.Cmd
			armPitStop(car, ctx, lapsRemaining(car))
		case CommandPush, CommandConserve:
			car.ActiveCommand = cmd.Cmd
			mode := ModePush
			if cmd.Cmd == CommandConserve {
				mode = ModeConserve
			}
			if car.DrivingMode != mode {
				car.DrivingMode = mode
				s.appendEvent(Event{
					Tick:        s.Meta.Tick,
					Lap:         car.Lap,
					Type:        EventModeChange,
					Description: car.DriverCode + " switches to " + string(mode),
					Payload:     map[string]interface{}{"driver": car.DriverCode, "mode": string(mode)},
				})
			}
		}
	}

	// 2a. manual race-director events
	applyDirectorEvents(s, controls.DirectorEvents)

	// 3. per-car pace computation, 4. progress update
	lapLenMeters := ctx.Track.LengthMeters()
	tickSeconds := TickDurationMs / 1000.0
	for i := range s.Cars {
		car := &s.Cars[i]
		if car.Status != Racing {
			continue
		}

		wasDRSActive := car.DRSActive
		car.DRSActive = s.RaceControl == Green && car.IntervalToAhead >= 0 && car.IntervalToAhead < 1.0
		if car.DRSActive && !wasDRSActive {
			s.appendEvent(Event{
				Tick:        s.Meta.Tick,
				Lap:         car.Lap,
				Type:        EventDRSEnabled,
				Description: car.DriverCode + " has DRS",
				Payload:     map[string]interface{}{"driver": car.DriverCode},
			})
		}

		compound := ctx.Compounds[car.Tire.Compound]
		var speedMPS float64
		switch s.RaceControl {
		case SafetyCar:
			speedMPS = safetyCarPaceMPS(ctx.Track, car.GapToLeader)
		case VSC:
			speedMPS = vscPaceMPS(ctx.Track)
		case RedFlag:
			speedMPS = 0
		default:
			speedMPS = effectivePace(car, ctx.Track, compound, s.Weather.Condition, s.RaceControl, car.IntervalToAhead)
		}
		car.SpeedKPH = speedMPS * 3.6

		metersGained := speedMPS * tickSeconds
		car.LapProgress += metersGained / lapLenMeters
		car.Tire.Wear += compound.WearPerLap * (metersGained / lapLenMeters) * controls.Macros.TireDeg
		if car.Tire.Wear > 1.0 {
			car.Tire.Wear = 1.0
		}
		car.FuelKg -= (metersGained / lapLenMeters) * 1.65
		if car.FuelKg < 0 {
			car.FuelKg = 0
		}

		if car.LapProgress >= 1.0 {
			car.LapProgress -= 1.0
			car.Tire.AgeLaps++
			car.Lap++
			car.Sector = 0

			car.LastLapTime = float64(s.Meta.Tick-car.lapStartTick) * tickSeconds
			car.lapStartTick = s.Meta.Tick
			if car.Lap > 1 && (car.BestLapTime == 0 || car.LastLapTime < car.BestLapTime) {
				car.BestLapTime = car.LastLapTime
				if s.Stats.FastestLapTime == 0 || car.LastLapTime < s.Stats.FastestLapTime {
					s.Stats.FastestLapTime = car.LastLapTime
					s.Stats.FastestLapDriver = car.DriverCode
					s.appendEvent(Event{
						Tick:        s.Meta.Tick,
						Lap:         car.Lap,
						Type:        EventFastestLap,
						Description: car.DriverCode + " sets the fastest lap",
						Payload:     map[string]interface{}{"driver": car.DriverCode, "time": car.LastLapTime},
					})
				}
			}

			if car.pitBoxArmed {
				enterPitLane(s, car, ctx)
			}
		} else {
			car.Sector = int(car.LapProgress * 3)
			if car.Sector > 2 {
				car.Sector = 2
			}
		}
	}

	// 5. pit-stop service
	servicePitStops(s, ctx)

	// 6. overtake resolution
	resolveOvertakes(s, ctx, rng)

	// 7. incident rolls
	if s.RaceControl != RedFlag {
		triggeredSafetyCar := rollIncidents(s, ctx, controls.Macros, rng)
		if triggeredSafetyCar && legalTransition(s.RaceControl, SafetyCar) {
			setRaceControl(s, SafetyCar)
		}
	}

	// 7b. scheduled race-control auto-clears (local yellow clear-lap,
	// VSC scheduled end)
	applyAutoClears(s)

	// 8. weather drift
	driftWeather(s, controls.Macros, rng)
	reactToWeather(s, ctx)

	// 9. classification
	classify(s, ctx.Track)

	if err := checkInvariants(s); err != nil {
		return nil, nil, err
	}

	return s, append([]Event(nil), s.Events[eventsBefore:]...), nil
}

// checkInvariants validates the state produced by a tick before it is
// returned to the caller. Any violation indicates a bug in Tick itself,
// never a caller error, and aborts with a structured TickError.
func checkInvariants(s *RaceState) error {
	seen := make(map[string]bool, len(s.Cars))
	for i := range s.Cars {
		car := &s.Cars[i]
		if seen[car.DriverCode] {
			return newTickError(s, "duplicate_driver", car.DriverCode, "driver code appears twice in field")
		}
		seen[car.DriverCode] = true

		if car.FuelKg < 0 {
			return newTickError(s, "negative_fuel", car.DriverCode, "fuel went negative")
		}
		if car.Tire.Wear < 0 || car.Tire.Wear > 1.0 {
			return newTickError(s, "tire_wear_out_of_range", car.DriverCode, "tire wear outside [0,1]")
		}
		if car.Status != DNF && (car.Lap < 0 || car.LapProgress < 0 || car.LapProgress >= 1.0) {
			return newTickError(s, "invalid_progress", car.DriverCode, "lap progress outside [0,1)")
		}
	}

	positions := make(map[int]bool, len(s.Cars))
	for i := range s.Cars {
		p := s.Cars[i].Position
		if p == 0 {
			continue
		}
		if positions[p] {
			return newTickError(s, "duplicate_position", s.Cars[i].DriverCode, "two cars share a classified position")
		}
		positions[p] = true
	}

	return nil
}
