package engine

import (
	"sort"

	"racesim/catalog"
)

// noCarAheadGapSeconds is the sentinel interval recorded for the race
// leader, who has no car ahead to draft or run dirty air behind.
const noCarAheadGapSeconds = 999.0

// carMeters returns a car's total distance covered, laps plus partial lap,
// in meters; shared by classify and overtake resolution so both agree on
// what "ahead" means.
func carMeters(car *Car, lapLenMeters float64) float64 {
	return float64(car.Lap)*lapLenMeters + car.LapProgress*lapLenMeters
}

// classify recomputes Position, GapToLeader, and IntervalToAhead for every
// non-DNF car by sorting on (lap desc, lap_progress desc), and marks the
// race finished once the leader completes the scheduled lap count. It is
// unexported and runs only as step 9 of Tick; callers such as the
// predictor read the Position values it leaves on the final state.
func classify(s *RaceState, track catalog.Track) {
	order := make([]int, 0, len(s.Cars))
	dnf := make([]int, 0)
	for i := range s.Cars {
		if s.Cars[i].Status == DNF {
			dnf = append(dnf, i)
		} else {
			order = append(order, i)
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := &s.Cars[order[a]], &s.Cars[order[b]]
		if ca.Lap != cb.Lap {
			return ca.Lap > cb.Lap
		}
		return ca.LapProgress > cb.LapProgress
	})

	lapLenMeters := track.LengthMeters()
	refPace := basePaceMPS(track)
	if refPace <= 0 {
		refPace = 1
	}

	var leaderTotalMeters float64
	if len(order) > 0 {
		leaderTotalMeters = carMeters(&s.Cars[order[0]], lapLenMeters)
	}

	for pos, idx := range order {
		car := &s.Cars[idx]
		car.Position = pos + 1
		totalMeters := carMeters(car, lapLenMeters)
		car.GapToLeader = (leaderTotalMeters - totalMeters) / refPace

		if pos == 0 {
			car.IntervalToAhead = noCarAheadGapSeconds
			continue
		}
		aheadMeters := carMeters(&s.Cars[order[pos-1]], lapLenMeters)
		car.IntervalToAhead = (aheadMeters - totalMeters) / refPace
	}

	// DNF cars are tail-sorted after all classified cars, in their order
	// in s.Cars (grid order), not the order they retired.
	nextPos := len(order) + 1
	for _, idx := range dnf {
		s.Cars[idx].Position = nextPos
		s.Cars[idx].IntervalToAhead = noCarAheadGapSeconds
		nextPos++
	}

	if len(order) > 0 && s.Cars[order[0]].Lap >= s.Meta.LapsTotal {
		s.IsFinished = true
	}
}
