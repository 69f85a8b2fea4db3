package engine

import "fmt"

// weatherDriftIntervalTicks gates how often the weather is allowed to
// evolve; checking every tick would make RainProbability's random walk
// dominate the outcome rather than drift it gradually.
const weatherDriftIntervalTicks = 600

func weatherFromProbability(p float64) Weather {
	switch {
	case p >= 0.66:
		return Wet
	case p >= 0.33:
		return Intermediate
	default:
		return Dry
	}
}

// driftWeather evolves the track's rain probability and, if it has
// crossed into a new band, transitions the active condition. A non-empty
// macros.WeatherOverride (set by the predictor to explore a fixed weather
// path across ensemble members) short-circuits the random walk and steers
// the track directly toward the requested condition.
func driftWeather(s *RaceState, macros Macros, rng *Rand) {
	if s.Meta.Tick-s.control.WeatherDriftTick < weatherDriftIntervalTicks {
		return
	}
	s.control.WeatherDriftTick = s.Meta.Tick

	if macros.WeatherOverride != "" && s.Weather.Condition != macros.WeatherOverride {
		transitionWeather(s, macros.WeatherOverride)
		return
	}

	s.Weather.RainProbability += (rng.Float64() - 0.5) * 0.1
	if s.Weather.RainProbability < 0 {
		s.Weather.RainProbability = 0
	}
	if s.Weather.RainProbability > 1 {
		s.Weather.RainProbability = 1
	}

	if target := weatherFromProbability(s.Weather.RainProbability); target != s.Weather.Condition {
		transitionWeather(s, target)
	}
}

// transitionWeather applies a race-director-forced or naturally-drifted
// weather change.
func transitionWeather(s *RaceState, to Weather) {
	from := s.Weather.Condition
	s.Weather.Condition = to
	s.appendEvent(Event{
		Tick:        s.Meta.Tick,
		Lap:         leadLap(s),
		Type:        EventWeatherChange,
		Description: fmt.Sprintf("weather changes from %s to %s", from, to),
		Payload:     map[string]interface{}{"from": string(from), "to": string(to)},
	})
}

// leadLap returns the furthest lap any car has reached, used to annotate
// events that aren't scoped to one car.
func leadLap(s *RaceState) int {
	lap := 0
	for i := range s.Cars {
		if s.Cars[i].Lap > lap {
			lap = s.Cars[i].Lap
		}
	}
	return lap
}
