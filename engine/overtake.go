package engine

import "sort"

// closeContestSeconds is the gap threshold under which a car catching the
// one ahead is treated as a contested move subject to the overtake-
// difficulty roll, rather than a clean pass (e.g. lapping a retiring car).
const closeContestSeconds = 1.2

// overtakeMarginMeters is how far behind the defender an unsuccessful
// attacker is held back for this tick, so the pass doesn't silently
// re-resolve on the very next classification.
const overtakeMarginMeters = 0.25

// resolveOvertakes walks the field in the order of the previous tick's
// classification and, for every pair where the trailing car has drawn
// ahead of the car in front purely from this tick's pace update, rolls
// whether the move completes.
// A successful roll lets the pass stand and emits an OVERTAKE event; a
// failed roll holds the attacker just behind the defender for this tick.
func resolveOvertakes(s *RaceState, ctx RaceContext, rng *Rand) {
	lapLen := ctx.Track.LengthMeters()

	order := make([]int, 0, len(s.Cars))
	for i := range s.Cars {
		if s.Cars[i].Status == Racing {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Cars[order[a]].Position < s.Cars[order[b]].Position
	})

	for pos := 1; pos < len(order); pos++ {
		defender := &s.Cars[order[pos-1]]
		attacker := &s.Cars[order[pos]]

		defMeters := carMeters(defender, lapLen)
		atkMeters := carMeters(attacker, lapLen)
		if atkMeters <= defMeters {
			continue
		}

		// Only contest the move if the two were already running close;
		// otherwise this is a clean pass of a backmarker or a car that
		// just pitted, and stands without a roll.
		if attacker.IntervalToAhead > closeContestSeconds || attacker.IntervalToAhead < 0 {
			emitOvertake(s, attacker, defender)
			continue
		}

		if attemptOvertake(attacker, defender, ctx, rng) {
			emitOvertake(s, attacker, defender)
			continue
		}

		holdBackMeters := defMeters - overtakeMarginMeters
		if holdBackMeters < 0 {
			holdBackMeters = 0
		}
		attacker.Lap = int(holdBackMeters / lapLen)
		attacker.LapProgress = (holdBackMeters - float64(attacker.Lap)*lapLen) / lapLen
	}
}

// attemptOvertake rolls whether a contested pass completes. Higher
// attacker aggression and DRS favor the move; track overtake difficulty
// and defender aggression resist it.
func attemptOvertake(attacker, defender *Car, ctx RaceContext, rng *Rand) bool {
	prob := 0.5
	prob += (attacker.Aggression - defender.Aggression) * 0.3
	prob -= ctx.Track.OvertakeDifficulty * 0.4
	if attacker.DRSActive {
		prob += 0.2
	}
	if prob < 0.05 {
		prob = 0.05
	}
	if prob > 0.95 {
		prob = 0.95
	}
	return rng.Float64() < prob
}

func emitOvertake(s *RaceState, attacker, defender *Car) {
	s.appendEvent(Event{
		Tick:        s.Meta.Tick,
		Lap:         attacker.Lap,
		Type:        EventOvertake,
		Description: attacker.DriverCode + " passes " + defender.DriverCode,
		Payload: map[string]interface{}{
			"attacker": attacker.DriverCode,
			"defender": defender.DriverCode,
		},
	})
}
