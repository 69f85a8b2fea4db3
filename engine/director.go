package engine

// vscDurationTicks is how long a deployed virtual safety car runs before
// it auto-clears to green, absent an explicit director override.
const vscDurationTicks = 900

// legalTransition reports whether race control may move from 'from' to
// 'to'. RED_FLAG is reachable from any state (race stoppage); leaving it
// requires an explicit GREEN injection (a restart), never an automatic
// clear. SAFETY_CAR may not clear directly to GREEN before its minimum
// dwell has elapsed; applyDirectorEvents enforces that separately since it depends on
// lap count, not just flag identity.
func legalTransition(from, to RaceControlState) bool {
	if to == RedFlag {
		return true
	}
	switch from {
	case Green:
		return to == Yellow || to == VSC || to == SafetyCar
	case Yellow:
		return to == Green || to == VSC || to == SafetyCar
	case VSC:
		return to == Green || to == SafetyCar
	case SafetyCar:
		return to == Green
	case RedFlag:
		return to == Green
	default:
		return false
	}
}

// applyDirectorEvents processes manual race-director injections in order,
// applying only legal transitions; an illegal request is simply ignored
// rather than erroring, since a stale client command (e.g. "end VSC"
// arriving after it already ended) is not a state invariant violation.
func applyDirectorEvents(s *RaceState, events []DirectorEvent) {
	for _, ev := range events {
		switch ev.Type {
		case InjectWeatherChange:
			if w := Weather(ev.Value); w == Dry || w == Intermediate || w == Wet {
				transitionWeather(s, w)
			}
			continue
		}

		var target RaceControlState
		switch ev.Type {
		case InjectVSC:
			target = VSC
		case InjectSafetyCar:
			target = SafetyCar
		case InjectRedFlag:
			target = RedFlag
		case InjectGreen:
			target = Green
		default:
			continue
		}

		if s.RaceControl == SafetyCar && target == Green && !safetyCarMayClear(s, s.control.SafetyCarDeployedLap) {
			continue
		}
		if !legalTransition(s.RaceControl, target) {
			continue
		}
		setRaceControl(s, target)
	}
}

// setRaceControl performs the transition and records its bookkeeping and
// event.
func setRaceControl(s *RaceState, to RaceControlState) {
	from := s.RaceControl
	s.RaceControl = to

	switch to {
	case SafetyCar:
		s.control.SafetyCarDeployedLap = leadLap(s)
		s.appendEvent(Event{Tick: s.Meta.Tick, Lap: leadLap(s), Type: EventSafetyCarDeployed, Description: "safety car deployed"})
	case VSC:
		s.control.VSCEndTick = s.Meta.Tick + vscDurationTicks
		s.appendEvent(Event{Tick: s.Meta.Tick, Lap: leadLap(s), Type: EventVSCDeployed, Description: "virtual safety car deployed"})
	case RedFlag:
		s.appendEvent(Event{Tick: s.Meta.Tick, Lap: leadLap(s), Type: EventRedFlag, Description: "red flag"})
	case Yellow:
		s.control.YellowClearLap = leadLap(s) + 1
	case Green:
		if from == SafetyCar {
			s.appendEvent(Event{Tick: s.Meta.Tick, Lap: leadLap(s), Type: EventSafetyCarEnding, Description: "safety car in this lap"})
		}
		if from == VSC {
			s.appendEvent(Event{Tick: s.Meta.Tick, Lap: leadLap(s), Type: EventVSCEnding, Description: "virtual safety car ending"})
		}
	}
}

// safetyCarMayClear reports whether a deployed safety car has served its
// minimum dwell and may legally be waved in on a director's GREEN request.
func safetyCarMayClear(s *RaceState, deployedLap int) bool {
	return leadLap(s)-deployedLap >= SafetyCarMinDwellLaps
}

// applyAutoClears checks the scheduled ends of non-director-cleared
// race-control states: a local yellow clears once the field has run past
// the lap it was thrown on, and a virtual safety car clears once its
// scheduled duration has elapsed. Neither emits an event of its own; the
// GREEN transition from VSC already emits VSC_ENDING.
func applyAutoClears(s *RaceState) {
	switch s.RaceControl {
	case Yellow:
		if leadLap(s) >= s.control.YellowClearLap {
			setRaceControl(s, Green)
		}
	case VSC:
		if s.Meta.Tick >= s.control.VSCEndTick {
			setRaceControl(s, Green)
		}
	}
}
