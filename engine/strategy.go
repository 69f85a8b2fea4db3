package engine

// wetCompounds names the compounds conventionally suited to
// non-dry conditions; by construction these share their names with the
// Weather values they're meant for.
var wetCompounds = map[string]bool{
	string(Intermediate): true,
	string(Wet):          true,
}

func isWetCompound(name string) bool {
	return wetCompounds[name]
}

// reactToWeather auto-arms a pit stop for any racing car whose fitted
// compound is no longer suited to the current track condition and that
// doesn't already have a stop armed: a dry compound once the track turns
// INTERMEDIATE or WET, or a wet compound once it dries back out. The car's
// DrivingMode is left as it is, since compound choice and pace mode are
// independent strategy axes; its ActiveCommand becomes BOX_THIS_LAP.
func reactToWeather(s *RaceState, ctx RaceContext) {
	for i := range s.Cars {
		car := &s.Cars[i]
		if car.Status != Racing || car.pitBoxArmed {
			continue
		}

		desired := weatherSuitedCompound(ctx, s.Weather.Condition, car.Tire.Compound)
		if desired == "" || desired == car.Tire.Compound {
			continue
		}

		car.pitBoxArmed = true
		car.nextCompound = desired
		car.ActiveCommand = CommandBoxThisLap
	}
}

// weatherSuitedCompound returns the compound a car should switch to given
// the current weather and its present compound, or "" if its current
// compound is already suited. Dry reverts to the first dry compound in
// CompoundOrder (the shortest-lived one); INTERMEDIATE/WET pick the matching
// compound directly when the catalog carries one.
func weatherSuitedCompound(ctx RaceContext, weather Weather, current string) string {
	switch weather {
	case Wet:
		if current == string(Wet) {
			return ""
		}
		if _, ok := ctx.Compounds[string(Wet)]; ok {
			return string(Wet)
		}
	case Intermediate:
		if isWetCompound(current) {
			return ""
		}
		if _, ok := ctx.Compounds[string(Intermediate)]; ok {
			return string(Intermediate)
		}
	default:
		if !isWetCompound(current) {
			return ""
		}
		for _, name := range ctx.CompoundOrder {
			if !isWetCompound(name) {
				return name
			}
		}
	}
	return ""
}
