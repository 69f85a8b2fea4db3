package engine

// incidentTickScale converts a track's per-lap base incident rate into a
// roughly equivalent per-tick probability, assuming a lap takes on the
// order of a minute (600 ticks) to complete.
const incidentTickScale = 1.0 / 600.0

// severeIncidentFraction is the share of incidents that end a car's race
// outright rather than costing it a brush of tire wear.
const severeIncidentFraction = 0.35

// autoSafetyCarChance is the base probability that a severe incident draws
// a safety car; otherwise the retirement changes no race-control state.
const autoSafetyCarChance = 0.5

// yellowEscalationChance is the base probability that a non-severe
// (yellow-triggering) incident is itself serious enough to draw a safety
// car rather than just a local yellow.
const yellowEscalationChance = 0.15

func weatherIncidentFactor(weather Weather) float64 {
	switch weather {
	case Intermediate:
		return 1.6
	case Wet:
		return 2.4
	default:
		return 1.0
	}
}

func tireWearIncidentFactor(wear float64) float64 {
	return 1.0 + wear*wear
}

// rollIncidents gives every racing car an independent chance of an
// incident this tick, scaled by track risk, weather, tire wear, and the
// Aggression macro. An
// incident is either a DNF (rarer) or a yellow-triggering event that costs
// the car tire wear and, unless race control is already showing something
// more severe, throws a local yellow; either branch may escalate straight
// to an automatic safety car, subject to the SCProbability macro.
func rollIncidents(s *RaceState, ctx RaceContext, macros Macros, rng *Rand) (triggeredSafetyCar bool) {
	for i := range s.Cars {
		car := &s.Cars[i]
		if car.Status != Racing {
			continue
		}

		prob := ctx.Track.BaseIncidentRate * incidentTickScale
		prob *= weatherIncidentFactor(s.Weather.Condition)
		prob *= tireWearIncidentFactor(car.Tire.Wear)
		prob *= macros.Aggression
		if rng.Float64() >= prob {
			continue
		}

		if rng.Float64() < severeIncidentFraction {
			car.Status = DNF
			car.InPitLane = false
			s.appendEvent(Event{
				Tick:        s.Meta.Tick,
				Lap:         car.Lap,
				Type:        EventDNF,
				Description: car.DriverCode + " retires",
				Payload:     map[string]interface{}{"driver": car.DriverCode},
			})
			if rng.Float64() < autoSafetyCarChance*macros.SCProbability {
				triggeredSafetyCar = true
			}
			continue
		}

		car.Tire.Wear += 0.05
		if car.Tire.Wear > 1.0 {
			car.Tire.Wear = 1.0
		}

		if rng.Float64() < yellowEscalationChance*macros.SCProbability {
			triggeredSafetyCar = true
			continue
		}
		if s.RaceControl == Green {
			setRaceControl(s, Yellow)
		}
	}
	return triggeredSafetyCar
}
