package engine

import "racesim/catalog"

// RaceContext bundles the static catalog data a tick needs alongside the
// mutable RaceState: the track it's run at and the compounds available to
// fit. It never changes across a race's ticks.
type RaceContext struct {
	Track     catalog.Track
	Compounds map[string]catalog.Compound
	// CompoundOrder lists compound names ascending by MinStintLaps, used to
	// pick the shortest compound that can plausibly reach the end of the
	// race during an automatic pit strategy decision.
	CompoundOrder []string
}

// NewRaceContext builds a RaceContext from catalog lookups.
func NewRaceContext(track catalog.Track, compounds []catalog.Compound, order []string) RaceContext {
	byName := make(map[string]catalog.Compound, len(compounds))
	for _, c := range compounds {
		byName[c.Name] = c
	}
	return RaceContext{Track: track, Compounds: byName, CompoundOrder: order}
}
